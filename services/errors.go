// services/errors.go
package services

import "fmt"

// RedemptionErrorCode is the stable, client-visible discriminator for a
// failed redemption.
type RedemptionErrorCode string

const (
	ErrCodeNotFound              RedemptionErrorCode = "NOT_FOUND"
	ErrCodeAlreadyRedeemed       RedemptionErrorCode = "ALREADY_REDEEMED"
	ErrCodeOwnershipMismatch     RedemptionErrorCode = "OWNERSHIP_MISMATCH"
	ErrCodeInvalidSignature      RedemptionErrorCode = "INVALID_SIGNATURE"
	ErrCodeShippingDecryptFailed RedemptionErrorCode = "SHIPPING_DECRYPT_FAILED"
	ErrCodeBurnFailed            RedemptionErrorCode = "BURN_FAILED"
	ErrCodePostBurnBookingFailed RedemptionErrorCode = "POST_BURN_BOOKING_FAILED"
	ErrCodeInternal              RedemptionErrorCode = "INTERNAL"
)

// RedemptionError carries a stable code, a PII-free human message and a
// retryability hint. PostBurnBookingFailed is the distinguished degraded
// outcome: the asset is burned, the shipment is not booked, and operations
// must pick it up manually.
type RedemptionError struct {
	Code      RedemptionErrorCode
	Message   string
	Retryable bool
}

func (e *RedemptionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func errNotFound() *RedemptionError {
	return &RedemptionError{Code: ErrCodeNotFound, Message: "NFT not found", Retryable: false}
}

func errAlreadyRedeemed() *RedemptionError {
	return &RedemptionError{Code: ErrCodeAlreadyRedeemed, Message: "NFT has already been redeemed", Retryable: false}
}

func errOwnershipMismatch() *RedemptionError {
	return &RedemptionError{Code: ErrCodeOwnershipMismatch, Message: "wallet does not own this NFT", Retryable: false}
}

// errInvalidSignature covers freshness, template and cryptographic
// failures alike, so callers cannot probe which check failed.
func errInvalidSignature() *RedemptionError {
	return &RedemptionError{Code: ErrCodeInvalidSignature, Message: "invalid redemption signature", Retryable: false}
}

func errShippingDecryptFailed() *RedemptionError {
	return &RedemptionError{Code: ErrCodeShippingDecryptFailed, Message: "shipping data could not be decrypted", Retryable: true}
}

func errBurnFailed() *RedemptionError {
	return &RedemptionError{Code: ErrCodeBurnFailed, Message: "NFT burn did not complete, please retry", Retryable: true}
}

func errPostBurnBookingFailed() *RedemptionError {
	return &RedemptionError{
		Code:      ErrCodePostBurnBookingFailed,
		Message:   "NFT was burned but shipment booking failed; support will arrange fulfillment manually",
		Retryable: false,
	}
}

func errInternal() *RedemptionError {
	return &RedemptionError{Code: ErrCodeInternal, Message: "internal error", Retryable: true}
}
