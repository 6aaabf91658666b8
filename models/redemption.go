// models/redemption.go
package models

import "time"

const (
	RedemptionStatusProcessing = "processing"
	RedemptionStatusShipped    = "shipped"
	RedemptionStatusDelivered  = "delivered"
	RedemptionStatusFailed     = "failed"
)

// DataRetentionPeriod — delivered redemption records are purged this long
// after delivery.
const DataRetentionPeriod = 90 * 24 * time.Hour

// RedemptionRecord is the durable, PII-free outcome of a redemption. Status
// only moves forward (processing → shipped → delivered); the single backward
// transition failed → processing happens via an operator retry.
type RedemptionRecord struct {
	ID         string `json:"id" gorm:"primaryKey"`
	NftMint    string `json:"nft_mint" gorm:"uniqueIndex;not null"`
	UserWallet string `json:"user_wallet" gorm:"index;not null"`
	PrizeID    string `json:"prize_id" gorm:"index;not null"`

	// 🚚 Carrier booking — ShipmentID keys webhook updates
	ShipmentID        string     `json:"shipment_id" gorm:"index"`
	Carrier           string     `json:"carrier"`
	TrackingNumber    string     `json:"tracking_number"`
	TrackingURL       string     `json:"tracking_url,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`

	Status        string `json:"status" gorm:"default:'processing';index"`
	FailureReason string `json:"failure_reason,omitempty"`
	RetryCount    int    `json:"retry_count" gorm:"default:0"`
	BurnTx        string `json:"burn_tx"`

	RedeemedAt              time.Time  `json:"redeemed_at"`
	ShippedAt               *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt             *time.Time `json:"delivered_at,omitempty"`
	DataDeletionScheduledAt *time.Time `json:"data_deletion_scheduled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// statusRank orders the forward-only state machine. failed sits outside the
// happy path and is handled separately.
var statusRank = map[string]int{
	RedemptionStatusProcessing: 0,
	RedemptionStatusShipped:    1,
	RedemptionStatusDelivered:  2,
}

// CanTransitionTo reports whether moving from the record's current status to
// next is a legal forward transition for webhook-driven updates.
// delivered is terminal; failed is reachable from any non-terminal state.
func (r *RedemptionRecord) CanTransitionTo(next string) bool {
	if r.Status == next {
		return false // idempotent replay, nothing to do
	}
	if r.Status == RedemptionStatusDelivered {
		return false
	}
	if next == RedemptionStatusFailed {
		return r.Status != RedemptionStatusFailed
	}
	curRank, ok := statusRank[r.Status]
	if !ok {
		// current status is failed — webhooks never resurrect a failed
		// record, only an operator retry does
		return false
	}
	nextRank, ok := statusRank[next]
	if !ok {
		return false
	}
	return nextRank > curRank
}

// CarrierWebhookEvent is the inbound carrier status callback, keyed by
// shipment id. Unauthenticated in the current carrier contract.
type CarrierWebhookEvent struct {
	ShipmentID     string     `json:"shipmentId"`
	Status         string     `json:"status"` // processing|shipped|delivered|failed
	TrackingNumber string     `json:"trackingNumber,omitempty"`
	ShippedAt      *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
}

// RedemptionRequest is the inbound claim as submitted by the wallet client.
type RedemptionRequest struct {
	NftMint               string `json:"nftMint"`
	UserWallet            string `json:"userWallet"`
	Signature             string `json:"signature"`
	Message               string `json:"message"`
	Timestamp             int64  `json:"timestamp"` // epoch ms
	EncryptedShippingData string `json:"encryptedShippingData"`
}

// RedemptionResult is the success payload returned to the client.
type RedemptionResult struct {
	Success           bool       `json:"success"`
	RedemptionID      string     `json:"redemptionId"`
	TrackingNumber    string     `json:"trackingNumber"`
	TrackingURL       string     `json:"trackingUrl,omitempty"`
	Carrier           string     `json:"carrier"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
	BurnTransaction   string     `json:"burnTransaction"`
}
