// services/redemption_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"prize-redemption-system/metrics"
	"prize-redemption-system/models"
	"prize-redemption-system/repository"
)

const postBurnFailureReason = "post-burn booking failure"

// RedemptionService orchestrates a redemption: claim the mint, prove
// ownership and signature, decrypt the address, burn the NFT, book the
// shipment, persist a PII-free record. Everything before the burn is safe
// to reject; once the burn lands the mint is gone and the only question is
// whether the shipment got booked.
type RedemptionService struct {
	repos    *repository.Repositories
	verifier *SignatureVerifier
	vault    *EncryptionVault
	chain    ChainClient
	carrier  CarrierClient
	notifier Notifier

	// BurnTimeout bounds the burn submission; ConfirmAttempts /
	// ConfirmInterval drive the landing check after an ambiguous result.
	BurnTimeout     time.Duration
	ConfirmAttempts int
	ConfirmInterval time.Duration
}

func NewRedemptionService(
	repos *repository.Repositories,
	verifier *SignatureVerifier,
	vault *EncryptionVault,
	chain ChainClient,
	carrier CarrierClient,
	notifier Notifier,
) *RedemptionService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &RedemptionService{
		repos:           repos,
		verifier:        verifier,
		vault:           vault,
		chain:           chain,
		carrier:         carrier,
		notifier:        notifier,
		BurnTimeout:     60 * time.Second,
		ConfirmAttempts: 3,
		ConfirmInterval: 2 * time.Second,
	}
}

// Redeem runs the full pipeline for one claim. The decrypted shipping data
// never leaves this call: it is handed to the carrier client and goes out
// of scope on every return path, success or failure.
func (s *RedemptionService) Redeem(ctx context.Context, req *models.RedemptionRequest) (*models.RedemptionResult, *RedemptionError) {
	result, redErr := s.redeem(ctx, req)
	outcome := "success"
	if redErr != nil {
		outcome = string(redErr.Code)
	}
	metrics.RedemptionsTotal.WithLabelValues(outcome).Inc()
	return result, redErr
}

func (s *RedemptionService) redeem(ctx context.Context, req *models.RedemptionRequest) (*models.RedemptionResult, *RedemptionError) {
	logger := log.WithFields(log.Fields{
		"mint":   req.NftMint,
		"wallet": req.UserWallet,
	})

	// 1. Mint lookup + one-way redemption gate
	nft, err := s.repos.Nfts.GetByMint(ctx, req.NftMint)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errNotFound()
		}
		logger.WithError(err).Error("nft lookup failed")
		return nil, errInternal()
	}
	if nft.IsRedeemed {
		return nil, errAlreadyRedeemed()
	}

	// Claim the mint so concurrent calls cannot both proceed; the loser is
	// answered as already redeemed.
	claimed, err := s.repos.Nfts.ClaimForRedemption(ctx, req.NftMint, time.Now())
	if err != nil {
		logger.WithError(err).Error("redemption claim failed")
		return nil, errInternal()
	}
	if !claimed {
		return nil, errAlreadyRedeemed()
	}
	release := func() {
		if err := s.repos.Nfts.ReleaseClaim(context.Background(), req.NftMint); err != nil {
			logger.WithError(err).Error("failed to release redemption claim")
		}
	}

	// 2. On-chain ownership
	owner, err := s.chain.GetOwner(ctx, req.NftMint)
	if err != nil {
		logger.WithError(err).Warn("on-chain owner lookup failed")
		release()
		return nil, errInternal()
	}
	if owner != req.UserWallet {
		release()
		return nil, errOwnershipMismatch()
	}

	// 3. Signature gate — uniform rejection, no oracle
	if !s.verifier.Verify(ctx, req.UserWallet, req.NftMint, req.Signature, req.Message, req.Timestamp) {
		release()
		return nil, errInvalidSignature()
	}

	// 4. Decrypt shipping data. Nothing has been mutated on chain yet, so
	// every failure up to here rejects cleanly.
	shipping, err := s.vault.Decrypt(req.EncryptedShippingData)
	if err != nil {
		release()
		return nil, errShippingDecryptFailed()
	}

	prize, err := s.repos.Prizes.GetByID(ctx, nft.PrizeID)
	if err != nil {
		logger.WithError(err).Error("prize lookup failed")
		release()
		return nil, errInternal()
	}

	// 5. Burn. A submission error is ambiguous: the transaction may have
	// landed anyway, so resolve what actually happened before answering.
	// The claim is released only on confirmed non-landing; an unresolved
	// burn keeps the claim held (the stale-claim sweep frees it later) so
	// nothing can resubmit a burn that might still land.
	burnCtx, cancel := context.WithTimeout(ctx, s.BurnTimeout)
	burnSig, err := s.chain.Burn(burnCtx, req.NftMint, req.UserWallet)
	cancel()
	if err != nil {
		logger.WithError(err).Warn("burn submission failed")
		sig, landed, confirmed := s.resolveAmbiguousBurn(ctx, req.NftMint)
		switch {
		case landed:
			burnSig = sig
		case confirmed:
			release()
			return nil, errBurnFailed()
		default:
			return nil, errBurnFailed()
		}
	} else if landed, confirmed := s.confirmLanded(ctx, burnSig); !landed {
		logger.WithField("burn_tx", burnSig).Warn("burn transaction did not land")
		if confirmed {
			release()
		}
		return nil, errBurnFailed()
	}

	// ---- irreversibility boundary: the NFT is gone from here on ----

	logger = logger.WithField("burn_tx", burnSig)
	if ok, err := s.repos.Nfts.MarkRedeemed(ctx, req.NftMint, burnSig); err != nil || !ok {
		// the claim is ours, so this only fails on a store outage; the burn
		// already happened, keep going and persist what we can
		logger.WithError(err).Error("failed to mark nft redeemed after burn")
	}

	// 6. Book the shipment
	shipment, bookErr := s.carrier.CreateShipment(ctx, shipping, PackageForPrize(prize))
	now := time.Now()
	if bookErr != nil {
		// Distinguished degraded outcome: asset burned, no booking. The
		// record preserves the user's intent for manual fulfillment; the
		// address itself is deliberately NOT preserved.
		logger.WithError(bookErr).Error("post-burn shipment booking failed, manual fulfillment required")
		rec := &models.RedemptionRecord{
			ID:            uuid.NewString(),
			NftMint:       req.NftMint,
			UserWallet:    req.UserWallet,
			PrizeID:       prize.ID,
			Status:        models.RedemptionStatusFailed,
			FailureReason: postBurnFailureReason,
			BurnTx:        burnSig,
			RedeemedAt:    now,
		}
		if err := s.repos.Redemptions.Create(ctx, rec); err != nil {
			logger.WithError(err).Error("failed to persist degraded redemption record")
		}
		return nil, errPostBurnBookingFailed()
	}

	rec := &models.RedemptionRecord{
		ID:                uuid.NewString(),
		NftMint:           req.NftMint,
		UserWallet:        req.UserWallet,
		PrizeID:           prize.ID,
		ShipmentID:        shipment.ID,
		Carrier:           shipment.Carrier,
		TrackingNumber:    shipment.TrackingNumber,
		TrackingURL:       shipment.TrackingURL,
		EstimatedDelivery: shipment.EstimatedDelivery,
		Status:            models.RedemptionStatusProcessing,
		BurnTx:            burnSig,
		RedeemedAt:        now,
	}
	if err := s.repos.Redemptions.Create(ctx, rec); err != nil {
		// The burn is final and the shipment is booked; failing the call now
		// would lose the user's only copy of the tracking number.
		logger.WithError(err).Error("failed to persist redemption record after booking")
	}

	s.notifier.RedemptionConfirmed(req.UserWallet, rec.ID, shipment.TrackingNumber)
	logger.WithField("redemption_id", rec.ID).Info("redemption completed")

	return &models.RedemptionResult{
		Success:           true,
		RedemptionID:      rec.ID,
		TrackingNumber:    shipment.TrackingNumber,
		TrackingURL:       shipment.TrackingURL,
		Carrier:           shipment.Carrier,
		EstimatedDelivery: shipment.EstimatedDelivery,
		BurnTransaction:   burnSig,
	}, nil
}

// confirmLanded polls the signature status a few times. confirmed reports
// whether the final answer is authoritative: (false, true) is confirmed
// absent, (false, false) means the status could not be established and the
// transaction must be assumed in flight.
func (s *RedemptionService) confirmLanded(ctx context.Context, txSig string) (landed, confirmed bool) {
	queryOK := false
	for attempt := 0; attempt < s.ConfirmAttempts; attempt++ {
		landed, err := s.chain.IsTransactionLanded(ctx, txSig)
		if err == nil && landed {
			return true, true
		}
		queryOK = err == nil
		if attempt < s.ConfirmAttempts-1 {
			select {
			case <-ctx.Done():
				return false, false
			case <-time.After(s.ConfirmInterval):
			}
		}
	}
	return false, queryOK
}

// resolveAmbiguousBurn decides what a failed burn submission actually did.
// The signer records burns by mint, so its recorded signature lets us check
// landing even when the submission call itself returned nothing.
func (s *RedemptionService) resolveAmbiguousBurn(ctx context.Context, mint string) (sig string, landed, confirmed bool) {
	recorded, err := s.chain.BurnStatus(ctx, mint)
	if err != nil {
		log.WithError(err).WithField("mint", mint).Warn("burn status lookup failed, burn outcome unresolved")
		return "", false, false
	}
	if recorded == "" {
		// the signer never got as far as submitting
		return "", false, true
	}
	landed, confirmed = s.confirmLanded(ctx, recorded)
	return recorded, landed, confirmed
}
