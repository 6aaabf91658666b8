package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"prize-redemption-system/models"
	"prize-redemption-system/repository"
)

func newSettlementFixture(t *testing.T) (*SettlementService, *repository.Repositories) {
	t.Helper()
	repos := repository.NewInMemoryRepositories()
	prizeRepo := repos.Prizes.(*repository.InMemoryPrizeRepo)
	prizeRepo.SeedGame(&models.Game{ID: "game-1", Name: "Gachapon Alpha", IsActive: true, TotalSupplyRemaining: 10})
	prizeRepo.SeedPrize(&models.Prize{
		ID: "prize-a", GameID: "game-1", Name: "Plush Kraken", PrizeIndex: 0,
		ProbabilityBP: 5000, SupplyRemaining: 5, PhysicalSKU: "KRAKEN-01",
	})
	prizeRepo.SeedPrize(&models.Prize{
		ID: "prize-b", GameID: "game-1", Name: "Enamel Pin", PrizeIndex: 1,
		ProbabilityBP: 3000, SupplyRemaining: 5, PhysicalSKU: "PIN-01",
	})
	chain := &fakeChain{landed: true}
	return NewSettlementService(repos, NewWeightedDrawEngine(), chain), repos
}

func TestSettle_CompletesSession(t *testing.T) {
	service, repos := newSettlementFixture(t)

	result, err := service.Settle(context.Background(), "game-1", "WalletAAA", "session-1")
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if result.TransactionSignature != "finalize-tx-signature" {
		t.Errorf("unexpected tx signature %q", result.TransactionSignature)
	}

	play, err := repos.Plays.GetBySessionID(context.Background(), "session-1")
	if err != nil {
		t.Fatal(err)
	}
	if play.Status != models.PlayStatusCompleted {
		t.Errorf("play status = %s, want completed", play.Status)
	}
	if result.SelectedPrize != nil {
		if play.PrizeID == nil || *play.PrizeID != result.SelectedPrize.ID {
			t.Errorf("play prize %v does not match result %s", play.PrizeID, result.SelectedPrize.ID)
		}
		if result.NftMint == "" {
			t.Error("winning settlement must report the minted nft")
		}
	} else {
		if play.PrizeID != nil {
			t.Errorf("losing play must record no prize, got %v", *play.PrizeID)
		}
		if result.NftMint != "" {
			t.Errorf("losing settlement must not report a mint, got %s", result.NftMint)
		}
	}
}

func TestSettle_WinPersistsMintedNft(t *testing.T) {
	service, repos := newSettlementFixture(t)

	for i := 0; i < 200; i++ {
		sessionID := "session-mint-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		result, err := service.Settle(context.Background(), "game-1", "WalletAAA", sessionID)
		if err != nil {
			t.Fatalf("settle failed: %v", err)
		}
		if result.SelectedPrize == nil {
			continue
		}

		nft, err := repos.Nfts.GetByMint(context.Background(), result.NftMint)
		if err != nil {
			t.Fatalf("minted nft not persisted: %v", err)
		}
		if nft.PrizeID != result.SelectedPrize.ID || nft.CurrentOwner != "WalletAAA" || nft.GameID != "game-1" {
			t.Errorf("nft row wrong: %+v", nft)
		}
		if nft.IsRedeemed {
			t.Error("freshly minted nft must not be redeemed")
		}

		play, err := repos.Plays.GetBySessionID(context.Background(), sessionID)
		if err != nil {
			t.Fatal(err)
		}
		if play.NftMint == nil || *play.NftMint != result.NftMint {
			t.Errorf("play does not reference the minted nft: %v", play.NftMint)
		}
		return
	}
	t.Fatal("no win in 200 settlements with 80% win probability")
}

// A prize won through settlement must be redeemable with no manual data
// fixup in between.
func TestSettleThenRedeem_WonPrizeIsRedeemable(t *testing.T) {
	repos := repository.NewInMemoryRepositories()
	prizeRepo := repos.Prizes.(*repository.InMemoryPrizeRepo)
	prizeRepo.SeedGame(&models.Game{ID: "game-1", Name: "Gachapon Alpha", IsActive: true, TotalSupplyRemaining: 100})
	prizeRepo.SeedPrize(&models.Prize{
		ID: "prize-a", GameID: "game-1", Name: "Plush Kraken", PrizeIndex: 0,
		ProbabilityBP: 9000, SupplyRemaining: 100, PhysicalSKU: "KRAKEN-01",
	})

	chain := &fakeChain{landed: true}
	settlements := NewSettlementService(repos, NewWeightedDrawEngine(), chain)

	var mint string
	for i := 0; i < 200 && mint == ""; i++ {
		sessionID := "session-e2e-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		result, err := settlements.Settle(context.Background(), "game-1", "WalletAAA", sessionID)
		if err != nil {
			t.Fatalf("settle failed: %v", err)
		}
		mint = result.NftMint
	}
	if mint == "" {
		t.Fatal("no win in 200 settlements with 90% win probability")
	}

	vault, err := NewEncryptionVault(testKey(t))
	if err != nil {
		t.Fatal(err)
	}
	redemptions := NewRedemptionService(repos, NewSignatureVerifier(nil, nil), vault, chain, &fakeCarrier{}, nil)
	redemptions.ConfirmAttempts = 1
	redemptions.ConfirmInterval = time.Millisecond

	ts := time.Now().UnixMilli()
	claim := signClaim(t, mint, ts)
	chain.mu.Lock()
	chain.owner = claim.wallet
	chain.mu.Unlock()
	encrypted, err := vault.Encrypt(testShipping())
	if err != nil {
		t.Fatal(err)
	}

	result, redErr := redemptions.Redeem(context.Background(), &models.RedemptionRequest{
		NftMint:               mint,
		UserWallet:            claim.wallet,
		Signature:             claim.signature,
		Message:               claim.message,
		Timestamp:             ts,
		EncryptedShippingData: encrypted,
	})
	if redErr != nil {
		t.Fatalf("redeeming a settled win failed: %v", redErr)
	}
	if !result.Success || result.TrackingNumber == "" {
		t.Errorf("unexpected redemption result: %+v", result)
	}
}

func TestSettle_ExactlyOncePerSession(t *testing.T) {
	service, _ := newSettlementFixture(t)

	if _, err := service.Settle(context.Background(), "game-1", "WalletAAA", "session-1"); err != nil {
		t.Fatalf("first settle failed: %v", err)
	}
	if _, err := service.Settle(context.Background(), "game-1", "WalletAAA", "session-1"); !errors.Is(err, ErrPlayAlreadySettled) {
		t.Fatalf("second settle: err = %v, want ErrPlayAlreadySettled", err)
	}
}

func TestSettle_InactiveGame(t *testing.T) {
	service, repos := newSettlementFixture(t)
	prizeRepo := repos.Prizes.(*repository.InMemoryPrizeRepo)
	prizeRepo.SeedGame(&models.Game{ID: "game-dead", Name: "Retired", IsActive: false})

	if _, err := service.Settle(context.Background(), "game-dead", "WalletAAA", "session-1"); !errors.Is(err, ErrGameInactive) {
		t.Fatalf("err = %v, want ErrGameInactive", err)
	}
	if _, err := service.Settle(context.Background(), "game-unknown", "WalletAAA", "session-2"); err == nil {
		t.Fatal("unknown game must not settle")
	}
}

func TestSettle_WinDecrementsSupply(t *testing.T) {
	service, repos := newSettlementFixture(t)

	// the draw is uniform over 10000, so a win shows up quickly; stop at the
	// first one and check the supply mirror
	for i := 0; i < 200; i++ {
		sessionID := "session-win-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		result, err := service.Settle(context.Background(), "game-1", "WalletAAA", sessionID)
		if err != nil {
			t.Fatalf("settle failed: %v", err)
		}
		if result.SelectedPrize == nil {
			continue
		}
		prize, err := repos.Prizes.GetByID(context.Background(), result.SelectedPrize.ID)
		if err != nil {
			t.Fatal(err)
		}
		if prize.SupplyRemaining >= result.SelectedPrize.SupplyRemaining {
			t.Errorf("supply not decremented: %d -> %d", result.SelectedPrize.SupplyRemaining, prize.SupplyRemaining)
		}
		return
	}
	t.Fatal("no win in 200 settlements with 80% win probability")
}

func TestSettle_GameDeactivatesAtZeroSupply(t *testing.T) {
	_, repos := newSettlementFixture(t)
	prizeRepo := repos.Prizes.(*repository.InMemoryPrizeRepo)
	prizeRepo.SeedGame(&models.Game{ID: "game-last", Name: "Last One", IsActive: true, TotalSupplyRemaining: 1})

	remaining, err := repos.Prizes.DecrementGameSupply(context.Background(), "game-last")
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 0 {
		t.Fatalf("remaining = %d, want 0", remaining)
	}
	game, err := repos.Prizes.GetGame(context.Background(), "game-last")
	if err != nil {
		t.Fatal(err)
	}
	if game.IsActive {
		t.Error("game must deactivate when total supply hits zero")
	}
}
