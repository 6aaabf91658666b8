// services/signature_verifier.go
package services

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	log "github.com/sirupsen/logrus"
)

const (
	// MaxSignatureAge bounds how old a signed claim may be — the replay
	// window.
	MaxSignatureAge = 5 * time.Minute
	// MaxClockSkew tolerates client clocks slightly ahead of ours.
	MaxClockSkew = 30 * time.Second
)

// redemptionMessageFormat is the canonical template wallet clients sign.
// It must match the client byte-for-byte or every signature fails.
const redemptionMessageFormat = `Gachapon Prize Redemption

NFT Mint: %s
Wallet: %s
Timestamp: %d

I confirm that I own this NFT and authorize its permanent burn in exchange for physical shipment of the prize.`

// BuildRedemptionMessage renders the canonical message for a claim. Binding
// the mint and wallet into the signed bytes prevents a captured signature
// from being replayed against a different mint or action.
func BuildRedemptionMessage(nftMint, wallet string, timestampMs int64) string {
	return fmt.Sprintf(redemptionMessageFormat, nftMint, wallet, timestampMs)
}

// SignatureVerifier validates wallet-signed redemption claims. All checks
// short-circuit on first failure and callers only ever see a single boolean,
// so a rejected caller cannot learn which check failed.
type SignatureVerifier struct {
	replayCache ReplayCache
	now         func() time.Time
}

// NewSignatureVerifier builds a verifier. replayCache may be nil (freshness
// window only); now may be nil to use the wall clock — tests inject both.
func NewSignatureVerifier(replayCache ReplayCache, now func() time.Time) *SignatureVerifier {
	if now == nil {
		now = time.Now
	}
	return &SignatureVerifier{replayCache: replayCache, now: now}
}

// Verify runs the three checks in order: freshness, canonical message,
// Ed25519 signature — then consults the replay cache. The reason for a
// rejection is logged (never with claim contents) but not returned.
func (v *SignatureVerifier) Verify(ctx context.Context, wallet, nftMint, signatureB58, message string, timestampMs int64) bool {
	now := v.now()

	// 1. Freshness window
	age := now.Sub(time.UnixMilli(timestampMs))
	if age > MaxSignatureAge {
		log.WithField("age_ms", age.Milliseconds()).Debug("redemption signature expired")
		return false
	}
	if age < -MaxClockSkew {
		log.WithField("skew_ms", (-age).Milliseconds()).Debug("redemption signature timestamp in the future")
		return false
	}

	// 2. Canonical message, exact bytes
	if message != BuildRedemptionMessage(nftMint, wallet, timestampMs) {
		log.Debug("redemption message does not match canonical template")
		return false
	}

	// 3. Ed25519 against the wallet public key
	pubKey, err := base58.Decode(wallet)
	if err != nil || len(pubKey) != ed25519.PublicKeySize {
		log.Debug("redemption wallet is not a valid ed25519 public key")
		return false
	}
	sig, err := base58.Decode(signatureB58)
	if err != nil || len(sig) != ed25519.SignatureSize {
		log.Debug("redemption signature is not a valid ed25519 signature")
		return false
	}
	if !ed25519.Verify(ed25519.PublicKey(pubKey), []byte(message), sig) {
		log.Debug("redemption signature verification failed")
		return false
	}

	// 4. Replay cache — a structurally valid signature is single-use inside
	// the freshness window
	if v.replayCache != nil {
		seen, err := v.replayCache.SeenAndRemember(ctx, signatureB58, MaxSignatureAge+MaxClockSkew)
		if err != nil {
			// cache outage: fall back to the freshness window alone rather
			// than blocking all redemptions
			log.WithError(err).Warn("replay cache unavailable, relying on freshness window")
		} else if seen {
			log.Debug("redemption signature replayed")
			return false
		}
	}

	return true
}
