// services/webhook_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"prize-redemption-system/metrics"
	"prize-redemption-system/models"
	"prize-redemption-system/repository"
)

var (
	ErrRedemptionNotFound = errors.New("redemption not found")
	ErrRetryNotAllowed    = errors.New("only failed redemptions can be retried")
)

// WebhookService advances the redemption state machine from carrier
// webhooks and handles operator-invoked retries. Webhook application is
// idempotent and forward-only; it may run concurrently with retries on the
// same record, which the status-guarded repository writes make safe.
type WebhookService struct {
	repos    *repository.Repositories
	vault    *EncryptionVault
	carrier  CarrierClient
	notifier Notifier
}

func NewWebhookService(repos *repository.Repositories, vault *EncryptionVault, carrier CarrierClient, notifier Notifier) *WebhookService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &WebhookService{repos: repos, vault: vault, carrier: carrier, notifier: notifier}
}

// ApplyCarrierEvent ingests one webhook event. Unknown shipment ids are
// logged and dropped — carriers replay stale and foreign events, so this is
// not an error.
func (s *WebhookService) ApplyCarrierEvent(ctx context.Context, evt *models.CarrierWebhookEvent) error {
	logger := log.WithFields(log.Fields{
		"shipment_id": evt.ShipmentID,
		"status":      evt.Status,
	})

	rec, err := s.repos.Redemptions.GetByShipmentID(ctx, evt.ShipmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Info("webhook for unknown shipment dropped")
			metrics.WebhookEventsTotal.WithLabelValues(evt.Status, "unknown_shipment").Inc()
			return nil
		}
		return fmt.Errorf("failed to load redemption for webhook: %w", err)
	}

	if !rec.CanTransitionTo(evt.Status) {
		// replayed or regressive event — applying it once and applying it
		// twice must end in the same state
		logger.WithField("current", rec.Status).Debug("webhook transition skipped")
		metrics.WebhookEventsTotal.WithLabelValues(evt.Status, "skipped").Inc()
		return nil
	}

	var applied bool
	switch evt.Status {
	case models.RedemptionStatusShipped:
		shippedAt := time.Now()
		if evt.ShippedAt != nil {
			shippedAt = *evt.ShippedAt
		}
		applied, err = s.repos.Redemptions.MarkShipped(ctx, rec.ID, evt.TrackingNumber, shippedAt)
	case models.RedemptionStatusDelivered:
		deliveredAt := time.Now()
		if evt.DeliveredAt != nil {
			deliveredAt = *evt.DeliveredAt
		}
		applied, err = s.repos.Redemptions.MarkDelivered(ctx, rec.ID, deliveredAt, deliveredAt.Add(models.DataRetentionPeriod))
		if err == nil && applied {
			s.notifier.PrizeDelivered(rec.UserWallet, rec.ID)
		}
	case models.RedemptionStatusFailed:
		applied, err = s.repos.Redemptions.MarkFailed(ctx, rec.ID, "carrier reported shipment failure")
	default:
		logger.Warn("webhook with unrecognized status dropped")
		metrics.WebhookEventsTotal.WithLabelValues(evt.Status, "unrecognized").Inc()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply webhook transition: %w", err)
	}

	disposition := "applied"
	if !applied {
		// a concurrent writer advanced the record between our read and the
		// guarded update — same end state, nothing lost
		disposition = "lost_race"
	}
	metrics.WebhookEventsTotal.WithLabelValues(evt.Status, disposition).Inc()
	logger.WithField("redemption_id", rec.ID).Info("carrier webhook processed")
	return nil
}

// RetryRedemption re-attempts shipment booking for a failed redemption.
// The original shipping data was never retained, so the operator must
// supply a freshly encrypted payload from new user input. The decrypted
// address is dropped when this call returns.
func (s *WebhookService) RetryRedemption(ctx context.Context, redemptionID, encryptedShipping string) (*models.RedemptionRecord, error) {
	rec, err := s.repos.Redemptions.GetByID(ctx, redemptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRedemptionNotFound
		}
		return nil, err
	}
	if rec.Status != models.RedemptionStatusFailed {
		return nil, ErrRetryNotAllowed
	}

	shipping, err := s.vault.Decrypt(encryptedShipping)
	if err != nil {
		return nil, err
	}

	prize, err := s.repos.Prizes.GetByID(ctx, rec.PrizeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prize for retry: %w", err)
	}

	shipment, err := s.carrier.CreateShipment(ctx, shipping, PackageForPrize(prize))
	if err != nil {
		return nil, fmt.Errorf("retry booking failed: %w", err)
	}

	ok, err := s.repos.Redemptions.RetryToProcessing(ctx, rec.ID, shipment.ID, shipment.Carrier, shipment.TrackingNumber, shipment.TrackingURL, shipment.EstimatedDelivery)
	if err != nil {
		return nil, err
	}
	if !ok {
		// a webhook or another operator moved the record first
		return nil, ErrRetryNotAllowed
	}

	log.WithFields(log.Fields{
		"redemption_id": rec.ID,
		"retry_count":   rec.RetryCount + 1,
	}).Info("failed redemption retried")

	return s.repos.Redemptions.GetByID(ctx, redemptionID)
}
