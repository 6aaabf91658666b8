// handlers/play.go
package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"prize-redemption-system/services"
)

// SetupPlayRoutes registers play settlement. Settlement is invoked by the
// game backend after a play transaction confirms, so it sits behind the
// service token.
func SetupPlayRoutes(app *fiber.App, settlements *services.SettlementService, serviceToken string) {
	app.Post("/api/v1/plays/settle", settleHandler(settlements, serviceToken))
}

func settleHandler(settlements *services.SettlementService, serviceToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("X-Service-Token") != serviceToken {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid service token"})
		}

		var req struct {
			GameID     string `json:"gameId"`
			UserWallet string `json:"userWallet"`
			SessionID  string `json:"sessionId"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.GameID == "" || req.UserWallet == "" || req.SessionID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "gameId, userWallet and sessionId are required"})
		}

		result, err := settlements.Settle(c.Context(), req.GameID, req.UserWallet, req.SessionID)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrGameInactive):
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "game is not active"})
			case errors.Is(err, services.ErrPlayAlreadySettled):
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "play session already settled"})
			}
			log.WithError(err).Error("play settlement failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "settlement failed"})
		}
		return c.JSON(result)
	}
}
