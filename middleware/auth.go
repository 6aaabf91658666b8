// middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// ServiceAuthMiddleware validates the Bearer token on operator/admin
// routes. The token is injected from config so tests can run without
// ambient environment state.
func ServiceAuthMiddleware(expectedToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			log.WithField("path", c.Path()).Warn("missing Authorization header on operator route")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication token missing",
			})
		}

		// Parse "Bearer <token>"; tolerate a raw token value
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token != expectedToken {
			log.WithField("path", c.Path()).Warn("invalid operator token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid authentication token",
			})
		}

		return c.Next()
	}
}
