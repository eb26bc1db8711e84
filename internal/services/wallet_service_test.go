package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"diamonds/internal/models"
	"diamonds/internal/policy"
	"diamonds/internal/store"
)

func TestCreditOriginInvalidAmount(t *testing.T) {
	service := newTestWalletService(stubWalletStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Wallet, error) {
			t.Fatalf("unexpected store call")
			return models.Wallet{}, nil
		},
	}, &stubLedgerStore{}, &stubTransactionStore{}, stubGameResultStore{}, stubGameVerifier{}, stubPhoneVerifier{}, &stubHub{})
	if _, err := service.CreditOrigin(context.Background(), "user-1", 0, models.OriginGameplayWin, "win"); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := service.CreditOrigin(context.Background(), "user-1", 10, "mystery", "x"); err != ErrInvalidOrigin {
		t.Fatalf("expected ErrInvalidOrigin, got %v", err)
	}
}

func TestCreditOriginEarningCap(t *testing.T) {
	service := newTestWalletService(stubWalletStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (models.Wallet, error) {
			return models.Wallet{UserID: userID, Tier: policy.TierBasic, DailyEarned: 90}, nil
		},
	}, &stubLedgerStore{}, &stubTransactionStore{}, stubGameResultStore{}, stubGameVerifier{}, stubPhoneVerifier{}, &stubHub{})

	_, err := service.CreditOrigin(context.Background(), "user-1", 20, models.OriginGameplayWin, "win")
	var policyErr *PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected policy error, got %v", err)
	}
	if policyErr.Rule != RuleEarningCap || policyErr.Limit != 100 || policyErr.Remaining != 10 {
		t.Fatalf("unexpected policy error: %#v", policyErr)
	}
}

func TestCreditOriginUnlimitedTier(t *testing.T) {
	ledger := &stubLedgerStore{}
	service := newTestWalletService(stubWalletStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (models.Wallet, error) {
			return models.Wallet{UserID: userID, Tier: policy.TierAmbassador, DailyEarned: 1_000_000}, nil
		},
	}, ledger, &stubTransactionStore{}, stubGameResultStore{}, stubGameVerifier{}, stubPhoneVerifier{}, &stubHub{})

	if _, err := service.CreditOrigin(context.Background(), "user-1", 500_000, models.OriginCommunity, "event"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreditOriginAppendsLedgerEntry(t *testing.T) {
	var appended []store.LedgerAppendInput
	var originAdds []int64
	hub := &stubHub{}
	ledger := &stubLedgerStore{
		appendFn: func(_ context.Context, _ store.Tx, input store.LedgerAppendInput) (models.LedgerEntry, error) {
			appended = append(appended, input)
			return models.LedgerEntry{}, nil
		},
	}
	service := newTestWalletService(stubWalletStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (models.Wallet, error) {
			return models.Wallet{UserID: userID, Tier: policy.TierVerified, Balance: 40}, nil
		},
		addOriginFn: func(_ context.Context, _ store.Execer, _, origin string, amount int64) error {
			if origin != models.OriginGameplayWin {
				t.Fatalf("unexpected origin: %s", origin)
			}
			originAdds = append(originAdds, amount)
			return nil
		},
	}, ledger, &stubTransactionStore{}, stubGameResultStore{}, stubGameVerifier{}, stubPhoneVerifier{}, hub)

	wallet, err := service.CreditOrigin(context.Background(), "user-1", 60, models.OriginGameplayWin, "win")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wallet.Balance != 100 {
		t.Fatalf("unexpected balance: %d", wallet.Balance)
	}
	if len(appended) != 1 || appended[0].Type != models.EntryEarn || appended[0].Amount != 60 {
		t.Fatalf("unexpected ledger input: %#v", appended)
	}
	if len(originAdds) != 1 || originAdds[0] != 60 {
		t.Fatalf("unexpected origin adds: %#v", originAdds)
	}
	if len(hub.calls) != 1 || hub.calls[0].Balance != 100 {
		t.Fatalf("unexpected broadcasts: %#v", hub.calls)
	}
}

func TestCreditOriginAdminGrantUsesGrantEntryType(t *testing.T) {
	var entryType string
	ledger := &stubLedgerStore{
		appendFn: func(_ context.Context, _ store.Tx, input store.LedgerAppendInput) (models.LedgerEntry, error) {
			entryType = input.Type
			return models.LedgerEntry{}, nil
		},
	}
	service := newTestWalletService(stubWalletStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (models.Wallet, error) {
			return models.Wallet{UserID: userID, Tier: policy.TierTrusted}, nil
		},
	}, ledger, &stubTransactionStore{}, stubGameResultStore{}, stubGameVerifier{}, stubPhoneVerifier{}, &stubHub{})

	if _, err := service.CreditOrigin(context.Background(), "user-1", 250, models.OriginAdminGrant, "grant"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entryType != models.EntryGrant {
		t.Fatalf("expected grant entry type, got %q", entryType)
	}
}

func TestClaimDailyLoginOncePerDay(t *testing.T) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	service := newTestWalletService(stubWalletStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (models.Wallet, error) {
			return models.Wallet{UserID: userID, Tier: policy.TierBasic, LastDailyLogin: &today}, nil
		},
	}, &stubLedgerStore{}, &stubTransactionStore{}, stubGameResultStore{}, stubGameVerifier{}, stubPhoneVerifier{}, &stubHub{})

	if _, err := service.ClaimDailyLogin(context.Background(), "user-1"); err != ErrAlreadyClaimed {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestClaimDailyLoginCreditsReward(t *testing.T) {
	yesterday := time.Now().UTC().Truncate(24 * time.Hour).Add(-24 * time.Hour)
	var credited int64
	service := newTestWalletService(stubWalletStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (models.Wallet, error) {
			return models.Wallet{UserID: userID, Tier: policy.TierBasic, LastDailyLogin: &yesterday}, nil
		},
		applyEarnFn: func(_ context.Context, _ store.Execer, _ string, amount int64) error {
			credited = amount
			return nil
		},
	}, &stubLedgerStore{}, &stubTransactionStore{}, stubGameResultStore{}, stubGameVerifier{}, stubPhoneVerifier{}, &stubHub{})

	if _, err := service.ClaimDailyLogin(context.Background(), "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if credited != DailyLoginReward {
		t.Fatalf("unexpected reward: %d", credited)
	}
}

func TestRewardGameplayUnverified(t *testing.T) {
	service := newTestWalletService(stubWalletStore{}, &stubLedgerStore{}, &stubTransactionStore{},
		stubGameResultStore{}, stubGameVerifier{verified: false}, stubPhoneVerifier{}, &stubHub{})
	if _, err := service.RewardGameplay(context.Background(), "game-1", "user-1"); err != ErrNotVerified {
		t.Fatalf("expected ErrNotVerified, got %v", err)
	}
}

func TestRewardGameplaySingleClaim(t *testing.T) {
	consumed := time.Now().UTC()
	service := newTestWalletService(stubWalletStore{}, &stubLedgerStore{}, &stubTransactionStore{},
		stubGameResultStore{
			getFn: func(_ context.Context, gameID, userID string) (store.GameResult, error) {
				return store.GameResult{GameID: gameID, UserID: userID, Verified: true, RewardAmount: 30, ConsumedAt: &consumed}, nil
			},
			consumeFn: func(context.Context, store.Execer, string, string) (int64, error) {
				return 0, nil
			},
		}, stubGameVerifier{verified: true}, stubPhoneVerifier{}, &stubHub{})
	if _, err := service.RewardGameplay(context.Background(), "game-1", "user-1"); err != ErrAlreadyClaimed {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestRewardGameplaySuccess(t *testing.T) {
	service := newTestWalletService(stubWalletStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (models.Wallet, error) {
			return models.Wallet{UserID: userID, Tier: policy.TierVerified}, nil
		},
	}, &stubLedgerStore{}, &stubTransactionStore{},
		stubGameResultStore{
			getFn: func(_ context.Context, gameID, userID string) (store.GameResult, error) {
				return store.GameResult{GameID: gameID, UserID: userID, Verified: true, RewardAmount: 30}, nil
			},
		}, stubGameVerifier{verified: true}, stubPhoneVerifier{}, &stubHub{})
	reward, err := service.RewardGameplay(context.Background(), "game-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reward != 30 {
		t.Fatalf("unexpected reward: %d", reward)
	}
}

func TestUpgradeToVerifiedRequiresPhone(t *testing.T) {
	service := newTestWalletService(stubWalletStore{}, &stubLedgerStore{}, &stubTransactionStore{},
		stubGameResultStore{}, stubGameVerifier{}, stubPhoneVerifier{verified: false}, &stubHub{})
	if _, err := service.UpgradeToVerified(context.Background(), "user-1"); err != ErrPrerequisiteFailed {
		t.Fatalf("expected ErrPrerequisiteFailed, got %v", err)
	}
}

func TestUpgradeToVerifiedAlreadyUpgraded(t *testing.T) {
	service := newTestWalletService(stubWalletStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (models.Wallet, error) {
			return models.Wallet{UserID: userID, Tier: policy.TierTrusted, Balance: 1000}, nil
		},
	}, &stubLedgerStore{}, &stubTransactionStore{}, stubGameResultStore{}, stubGameVerifier{}, stubPhoneVerifier{verified: true}, &stubHub{})
	if _, err := service.UpgradeToVerified(context.Background(), "user-1"); err != ErrAlreadyVerified {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
}

func TestUpgradeToVerifiedBurnsFee(t *testing.T) {
	var debited int64
	var newTier policy.Tier
	var burn store.LedgerAppendInput
	ledger := &stubLedgerStore{
		appendFn: func(_ context.Context, _ store.Tx, input store.LedgerAppendInput) (models.LedgerEntry, error) {
			burn = input
			return models.LedgerEntry{}, nil
		},
	}
	service := newTestWalletService(stubWalletStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (models.Wallet, error) {
			return models.Wallet{UserID: userID, Tier: policy.TierBasic, Balance: 150}, nil
		},
		debitFn: func(_ context.Context, _ store.Execer, _ string, amount int64) error {
			debited = amount
			return nil
		},
		setTierFn: func(_ context.Context, _ store.Execer, _ string, tier policy.Tier) error {
			newTier = tier
			return nil
		},
	}, ledger, &stubTransactionStore{}, stubGameResultStore{}, stubGameVerifier{}, stubPhoneVerifier{verified: true}, &stubHub{})

	wallet, err := service.UpgradeToVerified(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if debited != policy.VerificationFee || newTier != policy.TierVerified {
		t.Fatalf("unexpected upgrade: debited=%d tier=%s", debited, newTier)
	}
	if burn.Type != models.EntryBurn || burn.Amount != policy.VerificationFee {
		t.Fatalf("unexpected burn entry: %#v", burn)
	}
	if wallet.Balance != 50 || wallet.Tier != policy.TierVerified {
		t.Fatalf("unexpected wallet: %#v", wallet)
	}
}

func TestUpgradeToVerifiedInsufficientBalance(t *testing.T) {
	service := newTestWalletService(stubWalletStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (models.Wallet, error) {
			return models.Wallet{UserID: userID, Tier: policy.TierBasic, Balance: 99}, nil
		},
	}, &stubLedgerStore{}, &stubTransactionStore{}, stubGameResultStore{}, stubGameVerifier{}, stubPhoneVerifier{verified: true}, &stubHub{})
	_, err := service.UpgradeToVerified(context.Background(), "user-1")
	var policyErr *PolicyError
	if !errors.As(err, &policyErr) || policyErr.Rule != RuleInsufficientBalance {
		t.Fatalf("expected insufficient balance policy error, got %v", err)
	}
}

func TestSoftZeroBurnsFullHoldings(t *testing.T) {
	var burn store.LedgerAppendInput
	zeroed := false
	ledger := &stubLedgerStore{
		appendFn: func(_ context.Context, _ store.Tx, input store.LedgerAppendInput) (models.LedgerEntry, error) {
			burn = input
			return models.LedgerEntry{}, nil
		},
	}
	service := newTestWalletService(stubWalletStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (models.Wallet, error) {
			return models.Wallet{UserID: userID, Balance: 150}, nil
		},
		softZeroFn: func(context.Context, store.Execer, string) error {
			zeroed = true
			return nil
		},
	}, ledger, &stubTransactionStore{}, stubGameResultStore{}, stubGameVerifier{}, stubPhoneVerifier{}, &stubHub{})

	if err := service.SoftZero(context.Background(), "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if burn.Type != models.EntryBurn || burn.Amount != 150 {
		t.Fatalf("unexpected burn entry: %#v", burn)
	}
	if !zeroed {
		t.Fatalf("wallet was not zeroed")
	}
}

func TestSoftZeroRejectsOutstandingEscrow(t *testing.T) {
	ledger := &stubLedgerStore{
		appendFn: func(context.Context, store.Tx, store.LedgerAppendInput) (models.LedgerEntry, error) {
			t.Fatal("no burn entry expected while escrow is outstanding")
			return models.LedgerEntry{}, nil
		},
	}
	service := newTestWalletService(stubWalletStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (models.Wallet, error) {
			return models.Wallet{UserID: userID, Balance: 120, EscrowedBalance: 30}, nil
		},
		softZeroFn: func(context.Context, store.Execer, string) error {
			t.Fatal("wallet must not be zeroed while escrow is outstanding")
			return nil
		},
	}, ledger, &stubTransactionStore{}, stubGameResultStore{}, stubGameVerifier{}, stubPhoneVerifier{}, &stubHub{})

	err := service.SoftZero(context.Background(), "user-1")
	if !errors.Is(err, ErrEscrowOutstanding) {
		t.Fatalf("expected ErrEscrowOutstanding, got %v", err)
	}
}
