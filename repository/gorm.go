// repository/gorm.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"prize-redemption-system/models"
)

// NewGormRepositories wires all four stores onto one gorm connection.
func NewGormRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Prizes:      &gormPrizeRepo{db: db},
		Plays:       &gormPlayRepo{db: db},
		Nfts:        &gormNftRepo{db: db},
		Redemptions: &gormRedemptionRepo{db: db},
	}
}

// --- Prizes ---

type gormPrizeRepo struct {
	db *gorm.DB
}

func (r *gormPrizeRepo) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	var game models.Game
	if err := r.db.WithContext(ctx).First(&game, "id = ?", gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &game, nil
}

func (r *gormPrizeRepo) GetByID(ctx context.Context, id string) (*models.Prize, error) {
	var prize models.Prize
	if err := r.db.WithContext(ctx).First(&prize, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &prize, nil
}

func (r *gormPrizeRepo) ListDrawable(ctx context.Context, gameID string) ([]models.Prize, error) {
	var prizes []models.Prize
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND supply_remaining > 0", gameID).
		Order("prize_index ASC").
		Find(&prizes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load drawable prizes: %w", err)
	}
	return prizes, nil
}

func (r *gormPrizeRepo) DecrementSupply(ctx context.Context, prizeID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Prize{}).
		Where("id = ? AND supply_remaining > 0", prizeID).
		UpdateColumn("supply_remaining", gorm.Expr("supply_remaining - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormPrizeRepo) DecrementGameSupply(ctx context.Context, gameID string) (uint, error) {
	res := r.db.WithContext(ctx).Model(&models.Game{}).
		Where("id = ? AND total_supply_remaining > 0", gameID).
		UpdateColumn("total_supply_remaining", gorm.Expr("total_supply_remaining - 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	game, err := r.GetGame(ctx, gameID)
	if err != nil {
		return 0, err
	}
	if game.TotalSupplyRemaining == 0 && game.IsActive {
		// sold out — deactivate, same as the on-chain program
		r.db.WithContext(ctx).Model(&models.Game{}).
			Where("id = ?", gameID).
			UpdateColumn("is_active", false)
	}
	return game.TotalSupplyRemaining, nil
}

// --- Plays ---

type gormPlayRepo struct {
	db *gorm.DB
}

func (r *gormPlayRepo) Create(ctx context.Context, play *models.PlayRecord) error {
	return r.db.WithContext(ctx).Create(play).Error
}

func (r *gormPlayRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.PlayRecord, error) {
	var play models.PlayRecord
	if err := r.db.WithContext(ctx).First(&play, "session_id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &play, nil
}

func (r *gormPlayRepo) Settle(ctx context.Context, sessionID string, prizeID *string, roll uint16, finalizeTx string) (bool, error) {
	// status guard makes settlement exactly-once under concurrent callers
	res := r.db.WithContext(ctx).Model(&models.PlayRecord{}).
		Where("session_id = ? AND status = ?", sessionID, models.PlayStatusPending).
		Updates(map[string]interface{}{
			"status":      models.PlayStatusCompleted,
			"prize_id":    prizeID,
			"roll_bp":     roll,
			"finalize_tx": finalizeTx,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormPlayRepo) SetNftMint(ctx context.Context, sessionID, mint string) error {
	return r.db.WithContext(ctx).Model(&models.PlayRecord{}).
		Where("session_id = ?", sessionID).
		UpdateColumn("nft_mint", mint).Error
}

// --- Nfts ---

type gormNftRepo struct {
	db *gorm.DB
}

func (r *gormNftRepo) GetByMint(ctx context.Context, mint string) (*models.Nft, error) {
	var nft models.Nft
	if err := r.db.WithContext(ctx).First(&nft, "mint_address = ?", mint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &nft, nil
}

func (r *gormNftRepo) Create(ctx context.Context, nft *models.Nft) error {
	return r.db.WithContext(ctx).Create(nft).Error
}

func (r *gormNftRepo) ClaimForRedemption(ctx context.Context, mint string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Nft{}).
		Where("mint_address = ? AND is_redeemed = ? AND claimed_at IS NULL", mint, false).
		UpdateColumn("claimed_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormNftRepo) ReleaseClaim(ctx context.Context, mint string) error {
	return r.db.WithContext(ctx).Model(&models.Nft{}).
		Where("mint_address = ? AND is_redeemed = ?", mint, false).
		UpdateColumn("claimed_at", nil).Error
}

func (r *gormNftRepo) MarkRedeemed(ctx context.Context, mint, burnTx string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Nft{}).
		Where("mint_address = ? AND is_redeemed = ?", mint, false).
		Updates(map[string]interface{}{
			"is_redeemed":   true,
			"redemption_tx": burnTx,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormNftRepo) ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Nft{}).
		Where("is_redeemed = ? AND claimed_at IS NOT NULL AND claimed_at < ?", false, cutoff).
		UpdateColumn("claimed_at", nil)
	return res.RowsAffected, res.Error
}

// --- Redemptions ---

type gormRedemptionRepo struct {
	db *gorm.DB
}

func (r *gormRedemptionRepo) Create(ctx context.Context, rec *models.RedemptionRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *gormRedemptionRepo) getBy(ctx context.Context, query string, arg string) (*models.RedemptionRecord, error) {
	var rec models.RedemptionRecord
	if err := r.db.WithContext(ctx).First(&rec, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *gormRedemptionRepo) GetByID(ctx context.Context, id string) (*models.RedemptionRecord, error) {
	return r.getBy(ctx, "id = ?", id)
}

func (r *gormRedemptionRepo) GetByShipmentID(ctx context.Context, shipmentID string) (*models.RedemptionRecord, error) {
	return r.getBy(ctx, "shipment_id = ?", shipmentID)
}

func (r *gormRedemptionRepo) GetByMint(ctx context.Context, mint string) (*models.RedemptionRecord, error) {
	return r.getBy(ctx, "nft_mint = ?", mint)
}

func (r *gormRedemptionRepo) MarkShipped(ctx context.Context, id string, trackingNumber string, shippedAt time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":     models.RedemptionStatusShipped,
		"shipped_at": shippedAt,
	}
	if trackingNumber != "" {
		updates["tracking_number"] = trackingNumber
	}
	res := r.db.WithContext(ctx).Model(&models.RedemptionRecord{}).
		Where("id = ? AND status = ?", id, models.RedemptionStatusProcessing).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRedemptionRepo) MarkDelivered(ctx context.Context, id string, deliveredAt, deletionAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.RedemptionRecord{}).
		Where("id = ? AND status IN ?", id, []string{models.RedemptionStatusProcessing, models.RedemptionStatusShipped}).
		Updates(map[string]interface{}{
			"status":                     models.RedemptionStatusDelivered,
			"delivered_at":               deliveredAt,
			"data_deletion_scheduled_at": deletionAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRedemptionRepo) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.RedemptionRecord{}).
		Where("id = ? AND status NOT IN ?", id, []string{models.RedemptionStatusDelivered, models.RedemptionStatusFailed}).
		Updates(map[string]interface{}{
			"status":         models.RedemptionStatusFailed,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRedemptionRepo) RetryToProcessing(ctx context.Context, id, shipmentID, carrier, trackingNumber, trackingURL string, estimatedDelivery *time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.RedemptionRecord{}).
		Where("id = ? AND status = ?", id, models.RedemptionStatusFailed).
		Updates(map[string]interface{}{
			"status":             models.RedemptionStatusProcessing,
			"failure_reason":     "",
			"shipment_id":        shipmentID,
			"carrier":            carrier,
			"tracking_number":    trackingNumber,
			"tracking_url":       trackingURL,
			"estimated_delivery": estimatedDelivery,
			"retry_count":        gorm.Expr("retry_count + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRedemptionRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("data_deletion_scheduled_at IS NOT NULL AND data_deletion_scheduled_at <= ?", now).
		Delete(&models.RedemptionRecord{})
	return res.RowsAffected, res.Error
}
