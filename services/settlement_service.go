// services/settlement_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"prize-redemption-system/metrics"
	"prize-redemption-system/models"
	"prize-redemption-system/repository"
)

var (
	ErrGameInactive       = errors.New("game is not active")
	ErrPlayAlreadySettled = errors.New("play session already settled")
)

// SettlementResult is the outcome of one settled play. SelectedPrize nil is
// a first-class lose outcome, not an error. NftMint is the prize NFT minted
// by the finalize transaction; the redemption flow looks it up by this
// address later.
type SettlementResult struct {
	SelectedPrize        *models.Prize `json:"selectedPrize,omitempty"`
	NftMint              string        `json:"nftMint,omitempty"`
	TransactionSignature string        `json:"transactionSignature"`
	SessionID            string        `json:"sessionId"`
}

// SettlementService turns a completed play into a win/lose outcome. The
// roll comes from crypto/rand, never from the client; the on-chain
// finalize (co-signed by the backend authority) is the hard exactly-once
// arbiter for a session, the play-record CAS mirrors it locally.
type SettlementService struct {
	repos  *repository.Repositories
	engine *WeightedDrawEngine
	chain  ChainClient
}

func NewSettlementService(repos *repository.Repositories, engine *WeightedDrawEngine, chain ChainClient) *SettlementService {
	return &SettlementService{repos: repos, engine: engine, chain: chain}
}

// Settle finalizes the play session for gameID/userWallet.
func (s *SettlementService) Settle(ctx context.Context, gameID, userWallet, sessionID string) (*SettlementResult, error) {
	game, err := s.repos.Prizes.GetGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load game: %w", err)
	}
	if !game.IsActive {
		return nil, ErrGameInactive
	}

	play, err := s.repos.Plays.GetBySessionID(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to load play session: %w", err)
		}
		play = &models.PlayRecord{
			ID:         uuid.NewString(),
			SessionID:  sessionID,
			GameID:     gameID,
			UserWallet: userWallet,
			Status:     models.PlayStatusPending,
			PlayedAt:   time.Now(),
		}
		if err := s.repos.Plays.Create(ctx, play); err != nil {
			return nil, fmt.Errorf("failed to create play record: %w", err)
		}
	}
	if play.Status != models.PlayStatusPending {
		return nil, ErrPlayAlreadySettled
	}

	candidates, err := s.repos.Prizes.ListDrawable(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.ValidateCandidates(candidates); err != nil {
		return nil, err
	}

	roll, err := SecureRoll()
	if err != nil {
		return nil, err
	}
	selected := s.engine.Draw(candidates, roll)

	var prizeID *string
	if selected != nil {
		prizeID = &selected.ID
	}

	// The program checks supply and session state itself, so a concurrent
	// settlement or a just-exhausted prize fails here and the play stays
	// pending for a fresh attempt.
	txSig, nftMint, err := s.chain.FinalizePlay(ctx, gameID, sessionID, roll)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize play on chain: %w", err)
	}
	if selected == nil {
		nftMint = ""
	}

	settled, err := s.repos.Plays.Settle(ctx, sessionID, prizeID, roll, txSig)
	if err != nil {
		return nil, fmt.Errorf("failed to settle play record: %w", err)
	}
	if !settled {
		return nil, ErrPlayAlreadySettled
	}

	result := "lose"
	if selected != nil {
		result = "win"
		// Persist the minted NFT so redemption can find it by mint address.
		if nftMint == "" {
			log.WithField("session_id", sessionID).Error("finalize reported a win but no minted nft")
		} else {
			if err := s.repos.Nfts.Create(ctx, &models.Nft{
				MintAddress:  nftMint,
				PrizeID:      selected.ID,
				GameID:       gameID,
				CurrentOwner: userWallet,
				MintedAt:     time.Now(),
			}); err != nil {
				log.WithError(err).WithField("mint", nftMint).Error("failed to persist minted nft")
			}
			if err := s.repos.Plays.SetNftMint(ctx, sessionID, nftMint); err != nil {
				log.WithError(err).WithField("session_id", sessionID).Warn("failed to record nft mint on play")
			}
		}
		// mirror the on-chain supply decrement locally
		if ok, err := s.repos.Prizes.DecrementSupply(ctx, selected.ID); err != nil || !ok {
			log.WithError(err).WithField("prize_id", selected.ID).Warn("local prize supply out of sync with chain")
		}
		if _, err := s.repos.Prizes.DecrementGameSupply(ctx, gameID); err != nil {
			log.WithError(err).WithField("game_id", gameID).Warn("failed to decrement game supply")
		}
	}
	metrics.PlaysSettledTotal.WithLabelValues(result).Inc()

	log.WithFields(log.Fields{
		"session_id": sessionID,
		"game_id":    gameID,
		"result":     result,
	}).Info("play settled")

	return &SettlementResult{
		SelectedPrize:        selected,
		NftMint:              nftMint,
		TransactionSignature: txSig,
		SessionID:            sessionID,
	}, nil
}
