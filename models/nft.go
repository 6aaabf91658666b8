// models/nft.go
package models

import "time"

// Nft is a prize NFT minted on a winning play. IsRedeemed is one-way: once
// true, the mint is permanently ineligible for redemption. ClaimedAt marks
// an in-flight redemption holding the mint; it is cleared on pre-burn
// failure and left set once the mint is redeemed.
type Nft struct {
	MintAddress  string     `json:"mint_address" gorm:"primaryKey"`
	PrizeID      string     `json:"prize_id" gorm:"index;not null"`
	GameID       string     `json:"game_id" gorm:"index"`
	CurrentOwner string     `json:"current_owner" gorm:"index"`
	IsRedeemed   bool       `json:"is_redeemed" gorm:"default:false"`
	RedemptionTx *string    `json:"redemption_tx"`
	ClaimedAt    *time.Time `json:"-"`

	MintedAt  time.Time `json:"minted_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
