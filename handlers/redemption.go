// handlers/redemption.go
package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"prize-redemption-system/middleware"
	"prize-redemption-system/models"
	"prize-redemption-system/repository"
	"prize-redemption-system/services"
)

// SetupRedemptionRoutes registers the redemption surface.
//
// The carrier webhook is unauthenticated because the current carrier
// contract sends no signature header — anyone who learns a shipmentId can
// forge status updates. Known gap; fixing it needs a carrier-specific HMAC
// scheme agreed with the provider.
func SetupRedemptionRoutes(
	app *fiber.App,
	redemptions *services.RedemptionService,
	webhooks *services.WebhookService,
	repos *repository.Repositories,
	operatorToken string,
) {
	app.Post("/api/v1/redemptions", redeemHandler(redemptions))
	app.Get("/api/v1/redemptions/:id", statusHandler(repos))
	app.Post("/webhooks/carrier", carrierWebhookHandler(webhooks))

	admin := app.Group("/api/v1/admin", middleware.ServiceAuthMiddleware(operatorToken))
	admin.Post("/redemptions/:id/retry", retryHandler(webhooks))
}

// statusForCode maps the engine's stable error codes onto HTTP statuses.
func statusForCode(code services.RedemptionErrorCode) int {
	switch code {
	case services.ErrCodeNotFound:
		return fiber.StatusNotFound
	case services.ErrCodeAlreadyRedeemed:
		return fiber.StatusConflict
	case services.ErrCodeOwnershipMismatch:
		return fiber.StatusForbidden
	case services.ErrCodeInvalidSignature:
		return fiber.StatusUnauthorized
	case services.ErrCodeShippingDecryptFailed:
		return fiber.StatusBadRequest
	case services.ErrCodeBurnFailed:
		return fiber.StatusBadGateway
	default:
		// PostBurnBookingFailed and Internal — server-side trouble, but the
		// distinct code travels in the body for operational tooling
		return fiber.StatusInternalServerError
	}
}

func redeemHandler(redemptions *services.RedemptionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.RedemptionRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.NftMint == "" || req.UserWallet == "" || req.Signature == "" ||
			req.Message == "" || req.Timestamp == 0 || req.EncryptedShippingData == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing required fields"})
		}

		result, redErr := redemptions.Redeem(c.Context(), &req)
		if redErr != nil {
			return c.Status(statusForCode(redErr.Code)).JSON(fiber.Map{
				"error":     redErr.Message,
				"code":      redErr.Code,
				"retryable": redErr.Retryable,
			})
		}
		return c.Status(fiber.StatusCreated).JSON(result)
	}
}

func statusHandler(repos *repository.Repositories) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rec, err := repos.Redemptions.GetByID(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "redemption not found"})
			}
			log.WithError(err).Error("redemption status lookup failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		}
		return c.JSON(rec)
	}
}

func carrierWebhookHandler(webhooks *services.WebhookService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var evt models.CarrierWebhookEvent
		if err := c.BodyParser(&evt); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid webhook body"})
		}
		if evt.ShipmentID == "" || evt.Status == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "shipmentId and status are required"})
		}
		if err := webhooks.ApplyCarrierEvent(c.Context(), &evt); err != nil {
			log.WithError(err).Error("carrier webhook processing failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook processing failed"})
		}
		// carriers retry on non-2xx; dropped/duplicate events are still OK
		return c.SendStatus(fiber.StatusOK)
	}
}

func retryHandler(webhooks *services.WebhookService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			EncryptedShippingData string `json:"encryptedShippingData"`
		}
		if err := c.BodyParser(&req); err != nil || req.EncryptedShippingData == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "encryptedShippingData is required"})
		}

		rec, err := webhooks.RetryRedemption(c.Context(), c.Params("id"), req.EncryptedShippingData)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrRedemptionNotFound):
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "redemption not found"})
			case errors.Is(err, services.ErrRetryNotAllowed):
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "only failed redemptions can be retried"})
			}
			var decErr *services.DecryptionError
			if errors.As(err, &decErr) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "shipping data could not be decrypted"})
			}
			log.WithError(err).Error("redemption retry failed")
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "retry booking failed"})
		}
		return c.JSON(rec)
	}
}
