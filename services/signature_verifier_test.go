package services

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/mr-tron/base58"
)

type signedClaim struct {
	wallet    string
	mint      string
	signature string
	message   string
	timestamp int64
}

// signClaim produces a structurally valid claim signed with a fresh keypair.
func signClaim(t *testing.T, mint string, timestampMs int64) signedClaim {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	wallet := base58.Encode(pub)
	message := BuildRedemptionMessage(mint, wallet, timestampMs)
	sig := ed25519.Sign(priv, []byte(message))
	return signedClaim{
		wallet:    wallet,
		mint:      mint,
		signature: base58.Encode(sig),
		message:   message,
		timestamp: timestampMs,
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestVerify_ValidClaim(t *testing.T) {
	now := time.Now()
	claim := signClaim(t, "MintAAA", now.UnixMilli())
	v := NewSignatureVerifier(nil, fixedClock(now))
	if !v.Verify(context.Background(), claim.wallet, claim.mint, claim.signature, claim.message, claim.timestamp) {
		t.Error("valid claim rejected")
	}
}

func TestVerify_FreshnessWindow(t *testing.T) {
	now := time.Now()
	v := NewSignatureVerifier(nil, fixedClock(now))

	// 301s old — outside the 5 minute window
	stale := signClaim(t, "MintAAA", now.Add(-301*time.Second).UnixMilli())
	if v.Verify(context.Background(), stale.wallet, stale.mint, stale.signature, stale.message, stale.timestamp) {
		t.Error("claim 301s old must be rejected")
	}

	// 299s old — inside the window
	fresh := signClaim(t, "MintAAA", now.Add(-299*time.Second).UnixMilli())
	if !v.Verify(context.Background(), fresh.wallet, fresh.mint, fresh.signature, fresh.message, fresh.timestamp) {
		t.Error("claim 299s old must be accepted")
	}

	// 31s in the future — beyond tolerated skew
	future := signClaim(t, "MintAAA", now.Add(31*time.Second).UnixMilli())
	if v.Verify(context.Background(), future.wallet, future.mint, future.signature, future.message, future.timestamp) {
		t.Error("claim 31s in the future must be rejected")
	}

	// 29s in the future — tolerated skew
	skewed := signClaim(t, "MintAAA", now.Add(29*time.Second).UnixMilli())
	if !v.Verify(context.Background(), skewed.wallet, skewed.mint, skewed.signature, skewed.message, skewed.timestamp) {
		t.Error("claim 29s in the future must be accepted")
	}
}

func TestVerify_TamperedMessage(t *testing.T) {
	now := time.Now()
	claim := signClaim(t, "MintAAA", now.UnixMilli())
	v := NewSignatureVerifier(nil, fixedClock(now))

	// flip one character; the raw signature is still a valid signature of
	// the ORIGINAL message
	tampered := []byte(claim.message)
	tampered[0] ^= 0x01
	if v.Verify(context.Background(), claim.wallet, claim.mint, claim.signature, string(tampered), claim.timestamp) {
		t.Error("tampered message must be rejected")
	}
}

func TestVerify_MessageBoundToMint(t *testing.T) {
	now := time.Now()
	claim := signClaim(t, "MintAAA", now.UnixMilli())
	v := NewSignatureVerifier(nil, fixedClock(now))

	// same signature presented for a different mint
	if v.Verify(context.Background(), claim.wallet, "MintBBB", claim.signature, claim.message, claim.timestamp) {
		t.Error("signature must not transfer to another mint")
	}
}

func TestVerify_WrongKey(t *testing.T) {
	now := time.Now()
	claim := signClaim(t, "MintAAA", now.UnixMilli())
	other := signClaim(t, "MintAAA", now.UnixMilli())
	v := NewSignatureVerifier(nil, fixedClock(now))

	// other wallet's signature over its own message, presented as claim's
	msg := BuildRedemptionMessage("MintAAA", claim.wallet, claim.timestamp)
	if v.Verify(context.Background(), claim.wallet, "MintAAA", other.signature, msg, claim.timestamp) {
		t.Error("signature from a different key must be rejected")
	}
}

func TestVerify_MalformedEncodings(t *testing.T) {
	now := time.Now()
	claim := signClaim(t, "MintAAA", now.UnixMilli())
	v := NewSignatureVerifier(nil, fixedClock(now))

	if v.Verify(context.Background(), "not!!base58", claim.mint, claim.signature, claim.message, claim.timestamp) {
		t.Error("invalid wallet encoding must be rejected")
	}
	if v.Verify(context.Background(), claim.wallet, claim.mint, "0OIl", claim.message, claim.timestamp) {
		t.Error("invalid signature encoding must be rejected")
	}
}

func TestVerify_ReplayRejected(t *testing.T) {
	now := time.Now()
	claim := signClaim(t, "MintAAA", now.UnixMilli())
	v := NewSignatureVerifier(NewMemoryReplayCache(), fixedClock(now))

	if !v.Verify(context.Background(), claim.wallet, claim.mint, claim.signature, claim.message, claim.timestamp) {
		t.Fatal("first presentation must pass")
	}
	if v.Verify(context.Background(), claim.wallet, claim.mint, claim.signature, claim.message, claim.timestamp) {
		t.Error("second presentation of the same signature must be rejected")
	}
}
