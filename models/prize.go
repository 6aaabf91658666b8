// models/prize.go
package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	PrizeTierCommon    = "common"
	PrizeTierUncommon  = "uncommon"
	PrizeTierRare      = "rare"
	PrizeTierLegendary = "legendary"
)

// MaxPrizesPerGame mirrors the on-chain program limit.
const MaxPrizesPerGame = 16

// TotalProbabilityBasisPoints is the full probability space of a draw.
// A game whose prizes sum to less than this keeps the remainder as a
// "lose" outcome (house edge).
const TotalProbabilityBasisPoints = 10000

type Game struct {
	ID          string `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"not null"`
	Description string `json:"description"`

	// 🎛️ Game state — deactivated automatically when total supply runs out
	IsActive             bool   `json:"is_active" gorm:"default:false"`
	TokenCostPerPlay     uint64 `json:"token_cost_per_play"`
	TotalPlays           uint64 `json:"total_plays" gorm:"default:0"`
	TotalSupplyRemaining uint   `json:"total_supply_remaining" gorm:"default:0"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	Prizes []Prize `json:"prizes" gorm:"foreignKey:GameID"`
}

// Prize is a draw candidate plus the physical-fulfillment data the carrier
// needs. ProbabilityBP is in basis points (1 bp = 0.01%); per game the sum
// over all prizes must not exceed 10000.
type Prize struct {
	ID          string `json:"id" gorm:"primaryKey"`
	GameID      string `json:"game_id" gorm:"index;not null"`
	PrizeIndex  int    `json:"prize_index"` // stable draw order within the game
	Name        string `json:"name" gorm:"not null"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	MetadataURI string `json:"metadata_uri"`
	Tier        string `json:"tier" gorm:"default:'common'"`

	ProbabilityBP   uint16 `json:"probability_bp"`
	SupplyTotal     uint   `json:"supply_total"`
	SupplyRemaining uint   `json:"supply_remaining"`

	// 📦 Physical fulfillment
	PhysicalSKU      string `json:"physical_sku"`
	CostUSDCents     uint32 `json:"cost_usd_cents"`
	WeightGrams      uint32 `json:"weight_grams"`
	LengthHundredths uint32 `json:"length_hundredths"` // cm * 100
	WidthHundredths  uint32 `json:"width_hundredths"`
	HeightHundredths uint32 `json:"height_hundredths"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasSupply reports whether the prize can still enter a draw pool.
func (p *Prize) HasSupply() bool {
	return p.SupplyRemaining > 0
}
