// repository/inmemory.go
package repository

import (
	"context"
	"sync"
	"time"

	"prize-redemption-system/models"
)

// NewInMemoryRepositories returns map-backed stores with the same CAS
// semantics as the gorm implementations. Used by tests and local runs
// without Postgres.
func NewInMemoryRepositories() *Repositories {
	return &Repositories{
		Prizes:      &InMemoryPrizeRepo{games: map[string]*models.Game{}, prizes: map[string]*models.Prize{}},
		Plays:       &memPlayRepo{plays: map[string]*models.PlayRecord{}},
		Nfts:        &memNftRepo{nfts: map[string]*models.Nft{}},
		Redemptions: &memRedemptionRepo{byID: map[string]*models.RedemptionRecord{}},
	}
}

// --- Prizes ---

type InMemoryPrizeRepo struct {
	mu     sync.Mutex
	games  map[string]*models.Game
	prizes map[string]*models.Prize
}

// SeedGame and SeedPrize exist for tests and local bootstrap.
func (r *InMemoryPrizeRepo) SeedGame(game *models.Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *game
	r.games[game.ID] = &cp
}

func (r *InMemoryPrizeRepo) SeedPrize(prize *models.Prize) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *prize
	r.prizes[prize.ID] = &cp
}

func (r *InMemoryPrizeRepo) GetGame(_ context.Context, gameID string) (*models.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	game, ok := r.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *game
	return &cp, nil
}

func (r *InMemoryPrizeRepo) GetByID(_ context.Context, id string) (*models.Prize, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prize, ok := r.prizes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *prize
	return &cp, nil
}

func (r *InMemoryPrizeRepo) ListDrawable(_ context.Context, gameID string) ([]models.Prize, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Prize
	for _, p := range r.prizes {
		if p.GameID == gameID && p.SupplyRemaining > 0 {
			out = append(out, *p)
		}
	}
	// stable draw order
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].PrizeIndex > out[j].PrizeIndex; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out, nil
}

func (r *InMemoryPrizeRepo) DecrementSupply(_ context.Context, prizeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prize, ok := r.prizes[prizeID]
	if !ok || prize.SupplyRemaining == 0 {
		return false, nil
	}
	prize.SupplyRemaining--
	return true, nil
}

func (r *InMemoryPrizeRepo) DecrementGameSupply(_ context.Context, gameID string) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	game, ok := r.games[gameID]
	if !ok {
		return 0, ErrNotFound
	}
	if game.TotalSupplyRemaining > 0 {
		game.TotalSupplyRemaining--
	}
	if game.TotalSupplyRemaining == 0 {
		game.IsActive = false
	}
	return game.TotalSupplyRemaining, nil
}

// --- Plays ---

type memPlayRepo struct {
	mu    sync.Mutex
	plays map[string]*models.PlayRecord // keyed by session id
}

func (r *memPlayRepo) Create(_ context.Context, play *models.PlayRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *play
	r.plays[play.SessionID] = &cp
	return nil
}

func (r *memPlayRepo) GetBySessionID(_ context.Context, sessionID string) (*models.PlayRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	play, ok := r.plays[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *play
	return &cp, nil
}

func (r *memPlayRepo) Settle(_ context.Context, sessionID string, prizeID *string, roll uint16, finalizeTx string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	play, ok := r.plays[sessionID]
	if !ok || play.Status != models.PlayStatusPending {
		return false, nil
	}
	play.Status = models.PlayStatusCompleted
	play.PrizeID = prizeID
	play.RollBP = roll
	play.FinalizeTx = finalizeTx
	return true, nil
}

func (r *memPlayRepo) SetNftMint(_ context.Context, sessionID, mint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if play, ok := r.plays[sessionID]; ok {
		m := mint
		play.NftMint = &m
	}
	return nil
}

// --- Nfts ---

type memNftRepo struct {
	mu   sync.Mutex
	nfts map[string]*models.Nft
}

func (r *memNftRepo) GetByMint(_ context.Context, mint string) (*models.Nft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nft, ok := r.nfts[mint]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *nft
	return &cp, nil
}

func (r *memNftRepo) Create(_ context.Context, nft *models.Nft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *nft
	r.nfts[nft.MintAddress] = &cp
	return nil
}

func (r *memNftRepo) ClaimForRedemption(_ context.Context, mint string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nft, ok := r.nfts[mint]
	if !ok || nft.IsRedeemed || nft.ClaimedAt != nil {
		return false, nil
	}
	t := now
	nft.ClaimedAt = &t
	return true, nil
}

func (r *memNftRepo) ReleaseClaim(_ context.Context, mint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if nft, ok := r.nfts[mint]; ok && !nft.IsRedeemed {
		nft.ClaimedAt = nil
	}
	return nil
}

func (r *memNftRepo) MarkRedeemed(_ context.Context, mint, burnTx string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nft, ok := r.nfts[mint]
	if !ok || nft.IsRedeemed {
		return false, nil
	}
	nft.IsRedeemed = true
	tx := burnTx
	nft.RedemptionTx = &tx
	return true, nil
}

func (r *memNftRepo) ReleaseStaleClaims(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var released int64
	for _, nft := range r.nfts {
		if !nft.IsRedeemed && nft.ClaimedAt != nil && nft.ClaimedAt.Before(cutoff) {
			nft.ClaimedAt = nil
			released++
		}
	}
	return released, nil
}

// --- Redemptions ---

type memRedemptionRepo struct {
	mu   sync.Mutex
	byID map[string]*models.RedemptionRecord
}

func (r *memRedemptionRepo) Create(_ context.Context, rec *models.RedemptionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.byID[rec.ID] = &cp
	return nil
}

func (r *memRedemptionRepo) GetByID(_ context.Context, id string) (*models.RedemptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *memRedemptionRepo) GetByShipmentID(_ context.Context, shipmentID string) (*models.RedemptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.byID {
		if rec.ShipmentID == shipmentID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRedemptionRepo) GetByMint(_ context.Context, mint string) (*models.RedemptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.byID {
		if rec.NftMint == mint {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRedemptionRepo) MarkShipped(_ context.Context, id string, trackingNumber string, shippedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok || rec.Status != models.RedemptionStatusProcessing {
		return false, nil
	}
	rec.Status = models.RedemptionStatusShipped
	t := shippedAt
	rec.ShippedAt = &t
	if trackingNumber != "" {
		rec.TrackingNumber = trackingNumber
	}
	return true, nil
}

func (r *memRedemptionRepo) MarkDelivered(_ context.Context, id string, deliveredAt, deletionAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	if rec.Status != models.RedemptionStatusProcessing && rec.Status != models.RedemptionStatusShipped {
		return false, nil
	}
	rec.Status = models.RedemptionStatusDelivered
	d := deliveredAt
	rec.DeliveredAt = &d
	del := deletionAt
	rec.DataDeletionScheduledAt = &del
	return true, nil
}

func (r *memRedemptionRepo) MarkFailed(_ context.Context, id, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	if rec.Status == models.RedemptionStatusDelivered || rec.Status == models.RedemptionStatusFailed {
		return false, nil
	}
	rec.Status = models.RedemptionStatusFailed
	rec.FailureReason = reason
	return true, nil
}

func (r *memRedemptionRepo) RetryToProcessing(_ context.Context, id, shipmentID, carrier, trackingNumber, trackingURL string, estimatedDelivery *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok || rec.Status != models.RedemptionStatusFailed {
		return false, nil
	}
	rec.Status = models.RedemptionStatusProcessing
	rec.FailureReason = ""
	rec.ShipmentID = shipmentID
	rec.Carrier = carrier
	rec.TrackingNumber = trackingNumber
	rec.TrackingURL = trackingURL
	rec.EstimatedDelivery = estimatedDelivery
	rec.RetryCount++
	return true, nil
}

func (r *memRedemptionRepo) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var purged int64
	for id, rec := range r.byID {
		if rec.DataDeletionScheduledAt != nil && !rec.DataDeletionScheduledAt.After(now) {
			delete(r.byID, id)
			purged++
		}
	}
	return purged, nil
}
