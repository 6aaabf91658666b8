// repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"prize-redemption-system/models"
)

var (
	ErrNotFound = errors.New("record not found")
)

// PrizeRepository reads the game/prize catalog and enforces supply
// atomically.
type PrizeRepository interface {
	GetGame(ctx context.Context, gameID string) (*models.Game, error)
	GetByID(ctx context.Context, id string) (*models.Prize, error)
	// ListDrawable returns the active game's prizes with remaining supply,
	// ordered by prize index — the stable draw order the engine requires.
	ListDrawable(ctx context.Context, gameID string) ([]models.Prize, error)
	// DecrementSupply atomically decrements supply_remaining if it is still
	// positive; returns false when supply ran out concurrently.
	DecrementSupply(ctx context.Context, prizeID string) (bool, error)
	// DecrementGameSupply decrements the game-wide counter and deactivates
	// the game when it reaches zero. Returns the remaining supply.
	DecrementGameSupply(ctx context.Context, gameID string) (uint, error)
}

// PlayRepository persists play sessions. Settle is the exactly-once gate.
type PlayRepository interface {
	Create(ctx context.Context, play *models.PlayRecord) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.PlayRecord, error)
	// Settle moves a pending play to completed with its outcome; returns
	// false if the session was already settled (or unknown).
	Settle(ctx context.Context, sessionID string, prizeID *string, roll uint16, finalizeTx string) (bool, error)
	SetNftMint(ctx context.Context, sessionID, mint string) error
}

// NftRepository owns the two redemption invariants: at most one in-flight
// redemption per mint, and a one-way is_redeemed transition.
type NftRepository interface {
	GetByMint(ctx context.Context, mint string) (*models.Nft, error)
	Create(ctx context.Context, nft *models.Nft) error
	// ClaimForRedemption is the concurrency gate: it succeeds for exactly
	// one caller while the mint is unredeemed and unclaimed. The losing
	// caller must be answered as if the mint were already redeemed.
	ClaimForRedemption(ctx context.Context, mint string, now time.Time) (bool, error)
	// ReleaseClaim undoes ClaimForRedemption after a pre-burn failure.
	ReleaseClaim(ctx context.Context, mint string) error
	// MarkRedeemed flips is_redeemed false→true exactly once.
	MarkRedeemed(ctx context.Context, mint, burnTx string) (bool, error)
	// ReleaseStaleClaims frees claims older than cutoff (crashed calls).
	ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int64, error)
}

// RedemptionRepository persists PII-free redemption outcomes. All status
// mutations are guarded by the current status so concurrent webhook and
// retry writers cannot regress the state machine.
type RedemptionRepository interface {
	Create(ctx context.Context, rec *models.RedemptionRecord) error
	GetByID(ctx context.Context, id string) (*models.RedemptionRecord, error)
	GetByShipmentID(ctx context.Context, shipmentID string) (*models.RedemptionRecord, error)
	GetByMint(ctx context.Context, mint string) (*models.RedemptionRecord, error)
	// MarkShipped: processing → shipped.
	MarkShipped(ctx context.Context, id string, trackingNumber string, shippedAt time.Time) (bool, error)
	// MarkDelivered: processing|shipped → delivered, schedules data deletion.
	MarkDelivered(ctx context.Context, id string, deliveredAt, deletionAt time.Time) (bool, error)
	// MarkFailed: any non-terminal status → failed.
	MarkFailed(ctx context.Context, id, reason string) (bool, error)
	// RetryToProcessing: failed → processing with a fresh booking,
	// incrementing retry_count.
	RetryToProcessing(ctx context.Context, id, shipmentID, carrier, trackingNumber, trackingURL string, estimatedDelivery *time.Time) (bool, error)
	// PurgeExpired hard-deletes records whose data-deletion schedule has
	// passed; returns the number removed.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Repositories bundles the four stores the engine depends on.
type Repositories struct {
	Prizes      PrizeRepository
	Plays       PlayRepository
	Nfts        NftRepository
	Redemptions RedemptionRepository
}
