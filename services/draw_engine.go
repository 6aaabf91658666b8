// services/draw_engine.go
package services

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"prize-redemption-system/models"
)

// WeightedDrawEngine selects a prize from basis-point probabilities. Given
// the same candidate ordering and the same roll it always returns the same
// result, so outcomes are reproducible in tests without mocking randomness.
type WeightedDrawEngine struct{}

func NewWeightedDrawEngine() *WeightedDrawEngine {
	return &WeightedDrawEngine{}
}

// Draw walks the candidates in the caller-supplied order accumulating
// probability mass and returns the first candidate whose bucket contains
// roll. A nil return is a lose outcome, not an error: when the summed
// probabilities cover less than 10000 bp, rolls landing in the remainder
// win nothing. Candidates must already be filtered for remaining supply.
func (e *WeightedDrawEngine) Draw(candidates []models.Prize, roll uint16) *models.Prize {
	var cumulative uint32
	for i := range candidates {
		bp := candidates[i].ProbabilityBP
		if bp == 0 {
			continue
		}
		cumulative += uint32(bp)
		if uint32(roll) < cumulative {
			prize := candidates[i]
			return &prize
		}
	}
	return nil
}

// ValidateCandidates rejects candidate sets whose probability mass exceeds
// the full space. Anything below 10000 bp is allowed — the remainder is the
// house edge.
func (e *WeightedDrawEngine) ValidateCandidates(candidates []models.Prize) error {
	var total uint32
	for i := range candidates {
		total += uint32(candidates[i].ProbabilityBP)
	}
	if total > models.TotalProbabilityBasisPoints {
		return fmt.Errorf("prize probabilities sum to %d bp, exceeding %d", total, models.TotalProbabilityBasisPoints)
	}
	return nil
}

// SecureRoll draws a uniform roll in [0, 10000) from crypto/rand. The roll
// must never be derived from client-supplied input.
func SecureRoll() (uint16, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(models.TotalProbabilityBasisPoints))
	if err != nil {
		return 0, fmt.Errorf("failed to draw random roll: %w", err)
	}
	return uint16(n.Int64()), nil
}
