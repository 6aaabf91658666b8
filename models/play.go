// models/play.go
package models

import "time"

const (
	PlayStatusPending   = "pending"
	PlayStatusCompleted = "completed"
	PlayStatusFailed    = "failed"
)

// PlayRecord is one finalized spin of the machine. SessionID is the unique
// play-session key generated at play time; settlement is keyed on it so a
// session is settled exactly once. PrizeID is set at most once, by
// settlement, and never mutated afterward except for the NFT mint reference
// a later redemption fills in.
type PlayRecord struct {
	ID         string  `json:"id" gorm:"primaryKey"`
	SessionID  string  `json:"session_id" gorm:"uniqueIndex;not null"`
	GameID     string  `json:"game_id" gorm:"index;not null"`
	UserWallet string  `json:"user_wallet" gorm:"index;not null"`
	PrizeID    *string `json:"prize_id"` // nil = lose outcome
	NftMint    *string `json:"nft_mint"` // minted on win

	Status     string `json:"status" gorm:"default:'pending'"`
	FinalizeTx string `json:"finalize_tx"`
	RollBP     uint16 `json:"-" gorm:"column:roll_bp"` // audit only, never client-visible

	PlayedAt  time.Time `json:"played_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsWin reports whether settlement selected a prize.
func (p *PlayRecord) IsWin() bool {
	return p.PrizeID != nil
}
