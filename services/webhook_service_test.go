package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"prize-redemption-system/models"
	"prize-redemption-system/repository"
)

type webhookFixture struct {
	repos   *repository.Repositories
	service *WebhookService
	vault   *EncryptionVault
	carrier *fakeCarrier
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	repos := repository.NewInMemoryRepositories()
	prizeRepo := repos.Prizes.(*repository.InMemoryPrizeRepo)
	prizeRepo.SeedGame(&models.Game{ID: "game-1", Name: "Gachapon Alpha", IsActive: true, TotalSupplyRemaining: 5})
	prizeRepo.SeedPrize(&models.Prize{
		ID: "prize-1", GameID: "game-1", Name: "Plush Kraken",
		ProbabilityBP: 5000, SupplyRemaining: 5, PhysicalSKU: "KRAKEN-01",
		WeightGrams: 300,
	})

	vault, err := NewEncryptionVault(testKey(t))
	if err != nil {
		t.Fatal(err)
	}
	carrier := &fakeCarrier{}
	return &webhookFixture{
		repos:   repos,
		service: NewWebhookService(repos, vault, carrier, nil),
		vault:   vault,
		carrier: carrier,
	}
}

func (fx *webhookFixture) seedRecord(t *testing.T, status string) *models.RedemptionRecord {
	t.Helper()
	rec := &models.RedemptionRecord{
		ID:             uuid.NewString(),
		NftMint:        "Mint" + uuid.NewString(),
		UserWallet:     "WalletAAA",
		PrizeID:        "prize-1",
		ShipmentID:     "ship-" + uuid.NewString(),
		Carrier:        "carrier-x",
		TrackingNumber: "TRACK123",
		Status:         status,
		BurnTx:         "burn-tx-signature",
		RedeemedAt:     time.Now(),
	}
	if status == models.RedemptionStatusFailed {
		rec.FailureReason = "carrier reported shipment failure"
	}
	if err := fx.repos.Redemptions.Create(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	return rec
}

func (fx *webhookFixture) reload(t *testing.T, id string) *models.RedemptionRecord {
	t.Helper()
	rec, err := fx.repos.Redemptions.GetByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestApplyCarrierEvent_ShippedThenDelivered(t *testing.T) {
	fx := newWebhookFixture(t)
	rec := fx.seedRecord(t, models.RedemptionStatusProcessing)

	shippedAt := time.Now().Add(-2 * time.Hour)
	err := fx.service.ApplyCarrierEvent(context.Background(), &models.CarrierWebhookEvent{
		ShipmentID:     rec.ShipmentID,
		Status:         models.RedemptionStatusShipped,
		TrackingNumber: "TRACK456",
		ShippedAt:      &shippedAt,
	})
	if err != nil {
		t.Fatal(err)
	}
	got := fx.reload(t, rec.ID)
	if got.Status != models.RedemptionStatusShipped {
		t.Fatalf("status = %s, want shipped", got.Status)
	}
	if got.TrackingNumber != "TRACK456" {
		t.Errorf("tracking number not updated: %s", got.TrackingNumber)
	}
	if got.ShippedAt == nil || !got.ShippedAt.Equal(shippedAt) {
		t.Errorf("shipped_at = %v, want %v", got.ShippedAt, shippedAt)
	}

	deliveredAt := time.Now()
	err = fx.service.ApplyCarrierEvent(context.Background(), &models.CarrierWebhookEvent{
		ShipmentID:  rec.ShipmentID,
		Status:      models.RedemptionStatusDelivered,
		DeliveredAt: &deliveredAt,
	})
	if err != nil {
		t.Fatal(err)
	}
	got = fx.reload(t, rec.ID)
	if got.Status != models.RedemptionStatusDelivered {
		t.Fatalf("status = %s, want delivered", got.Status)
	}
	if got.DataDeletionScheduledAt == nil {
		t.Fatal("delivered record must schedule data deletion")
	}
	wantPurge := deliveredAt.Add(models.DataRetentionPeriod)
	if !got.DataDeletionScheduledAt.Equal(wantPurge) {
		t.Errorf("deletion scheduled at %v, want %v", got.DataDeletionScheduledAt, wantPurge)
	}
}

func TestApplyCarrierEvent_IdempotentReplay(t *testing.T) {
	fx := newWebhookFixture(t)
	rec := fx.seedRecord(t, models.RedemptionStatusProcessing)

	evt := &models.CarrierWebhookEvent{
		ShipmentID: rec.ShipmentID,
		Status:     models.RedemptionStatusShipped,
	}
	if err := fx.service.ApplyCarrierEvent(context.Background(), evt); err != nil {
		t.Fatal(err)
	}
	first := fx.reload(t, rec.ID)

	// carriers replay events; applying the same one again must be a no-op
	if err := fx.service.ApplyCarrierEvent(context.Background(), evt); err != nil {
		t.Fatal(err)
	}
	second := fx.reload(t, rec.ID)
	if second.Status != first.Status || !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Errorf("replayed event changed the record: %+v vs %+v", first, second)
	}
}

func TestApplyCarrierEvent_RegressionRejected(t *testing.T) {
	fx := newWebhookFixture(t)
	rec := fx.seedRecord(t, models.RedemptionStatusDelivered)

	for _, status := range []string{
		models.RedemptionStatusProcessing,
		models.RedemptionStatusShipped,
		models.RedemptionStatusFailed,
	} {
		err := fx.service.ApplyCarrierEvent(context.Background(), &models.CarrierWebhookEvent{
			ShipmentID: rec.ShipmentID,
			Status:     status,
		})
		if err != nil {
			t.Fatal(err)
		}
		if got := fx.reload(t, rec.ID); got.Status != models.RedemptionStatusDelivered {
			t.Errorf("delivered record regressed to %s on %s event", got.Status, status)
		}
	}
}

func TestApplyCarrierEvent_ProcessingEventIsNoOp(t *testing.T) {
	fx := newWebhookFixture(t)

	// "processing" is the initial state; a carrier echoing it back must
	// never move a record, whatever state it is in
	for _, status := range []string{
		models.RedemptionStatusProcessing,
		models.RedemptionStatusShipped,
		models.RedemptionStatusDelivered,
		models.RedemptionStatusFailed,
	} {
		rec := fx.seedRecord(t, status)
		err := fx.service.ApplyCarrierEvent(context.Background(), &models.CarrierWebhookEvent{
			ShipmentID: rec.ShipmentID,
			Status:     models.RedemptionStatusProcessing,
		})
		if err != nil {
			t.Fatal(err)
		}
		if got := fx.reload(t, rec.ID); got.Status != status {
			t.Errorf("processing event moved a %s record to %s", status, got.Status)
		}
	}
}

func TestApplyCarrierEvent_UnknownShipmentDropped(t *testing.T) {
	fx := newWebhookFixture(t)

	err := fx.service.ApplyCarrierEvent(context.Background(), &models.CarrierWebhookEvent{
		ShipmentID: "ship-nobody-knows",
		Status:     models.RedemptionStatusShipped,
	})
	if err != nil {
		t.Errorf("unknown shipment must be dropped without error, got %v", err)
	}
}

func TestApplyCarrierEvent_FailureFromTransit(t *testing.T) {
	fx := newWebhookFixture(t)
	rec := fx.seedRecord(t, models.RedemptionStatusShipped)

	err := fx.service.ApplyCarrierEvent(context.Background(), &models.CarrierWebhookEvent{
		ShipmentID: rec.ShipmentID,
		Status:     models.RedemptionStatusFailed,
	})
	if err != nil {
		t.Fatal(err)
	}
	got := fx.reload(t, rec.ID)
	if got.Status != models.RedemptionStatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.FailureReason == "" {
		t.Error("failed record must carry a failure reason")
	}
}

func TestRetryRedemption_Success(t *testing.T) {
	fx := newWebhookFixture(t)
	rec := fx.seedRecord(t, models.RedemptionStatusFailed)

	encrypted, err := fx.vault.Encrypt(testShipping())
	if err != nil {
		t.Fatal(err)
	}
	got, err := fx.service.RetryRedemption(context.Background(), rec.ID, encrypted)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if got.Status != models.RedemptionStatusProcessing {
		t.Errorf("status = %s, want processing", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", got.RetryCount)
	}
	if got.ShipmentID != "ship-001" {
		t.Errorf("shipment id not replaced: %s", got.ShipmentID)
	}
	if got.FailureReason != "" {
		t.Errorf("failure reason must be cleared, got %q", got.FailureReason)
	}
	if fx.carrier.bookings != 1 {
		t.Errorf("carrier bookings = %d, want 1", fx.carrier.bookings)
	}
}

func TestRetryRedemption_OnlyFromFailed(t *testing.T) {
	fx := newWebhookFixture(t)
	encrypted, err := fx.vault.Encrypt(testShipping())
	if err != nil {
		t.Fatal(err)
	}

	for _, status := range []string{
		models.RedemptionStatusProcessing,
		models.RedemptionStatusShipped,
		models.RedemptionStatusDelivered,
	} {
		rec := fx.seedRecord(t, status)
		if _, err := fx.service.RetryRedemption(context.Background(), rec.ID, encrypted); !errors.Is(err, ErrRetryNotAllowed) {
			t.Errorf("retry from %s: err = %v, want ErrRetryNotAllowed", status, err)
		}
	}

	if _, err := fx.service.RetryRedemption(context.Background(), "no-such-id", encrypted); !errors.Is(err, ErrRedemptionNotFound) {
		t.Errorf("retry of unknown id: err = %v, want ErrRedemptionNotFound", err)
	}
}

func TestRetryRedemption_BadPayloadLeavesRecordFailed(t *testing.T) {
	fx := newWebhookFixture(t)
	rec := fx.seedRecord(t, models.RedemptionStatusFailed)

	var decErr *DecryptionError
	if _, err := fx.service.RetryRedemption(context.Background(), rec.ID, "garbage"); !errors.As(err, &decErr) {
		t.Fatalf("err = %v, want DecryptionError", err)
	}
	if got := fx.reload(t, rec.ID); got.Status != models.RedemptionStatusFailed {
		t.Errorf("record must stay failed after a bad retry payload, status = %s", got.Status)
	}
	if fx.carrier.bookings != 0 {
		t.Error("no booking may be attempted with an undecryptable payload")
	}
}
