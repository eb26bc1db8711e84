package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"diamonds/internal/db"
	"diamonds/internal/models"
	"diamonds/internal/policy"
	"diamonds/internal/store"
	"diamonds/internal/websocket"

	"github.com/jmoiron/sqlx"
)

// DailyLoginReward is the fixed credit for the once-per-day login claim.
const DailyLoginReward int64 = 10

type WalletService struct {
	txRunner     db.TxRunner
	wallets      WalletStore
	ledger       LedgerStore
	transactions TransactionStore
	gameResults  GameResultStore
	verifier     GameVerifier
	phone        PhoneVerifier
	hub          BalanceHub
}

func NewWalletService(txRunner db.TxRunner, wallets WalletStore, ledger LedgerStore, transactions TransactionStore, gameResults GameResultStore, verifier GameVerifier, phone PhoneVerifier, hub BalanceHub) *WalletService {
	return &WalletService{
		txRunner:     txRunner,
		wallets:      wallets,
		ledger:       ledger,
		transactions: transactions,
		gameResults:  gameResults,
		verifier:     verifier,
		phone:        phone,
		hub:          hub,
	}
}

// CreditOrigin atomically credits a wallet, bumps the daily earning counter
// and per-origin breakdown, and appends the chained ledger entry. The tier
// earning cap is evaluated on the locked wallet row inside the same
// transaction, so two racing credits cannot both pass the check.
func (s *WalletService) CreditOrigin(ctx context.Context, userID string, amount int64, origin, reason string) (models.Wallet, error) {
	if amount <= 0 {
		return models.Wallet{}, ErrInvalidAmount
	}
	if !models.IsValidOrigin(origin) {
		return models.Wallet{}, ErrInvalidOrigin
	}
	var wallet models.Wallet
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		wallet, err = s.creditLocked(ctx, tx, userID, amount, origin, reason)
		return err
	})
	if err != nil {
		return models.Wallet{}, mapTxErr(err)
	}
	s.hub.BroadcastBalance(userID, websocket.BalanceUpdate{
		Balance:  wallet.Balance,
		Escrowed: wallet.EscrowedBalance,
		Reason:   origin,
	})
	return wallet, nil
}

// creditLocked is the shared in-transaction credit path used by CreditOrigin,
// the signup bonus, reward claims, and grant execution.
func (s *WalletService) creditLocked(ctx context.Context, tx *sqlx.Tx, userID string, amount int64, origin, reason string) (models.Wallet, error) {
	wallet, err := s.wallets.GetForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Wallet{}, ErrWalletNotFound
		}
		return models.Wallet{}, err
	}
	limits := policy.ForTier(wallet.Tier)
	if !policy.WithinCap(wallet.DailyEarned, amount, limits.DailyEarningCap) {
		return models.Wallet{}, &PolicyError{
			Rule:      RuleEarningCap,
			Limit:     limits.DailyEarningCap,
			Remaining: policy.Remaining(wallet.DailyEarned, limits.DailyEarningCap),
		}
	}
	if err := s.wallets.ApplyEarn(ctx, tx, userID, amount); err != nil {
		return models.Wallet{}, err
	}
	if err := s.wallets.AddOrigin(ctx, tx, userID, origin, amount); err != nil {
		return models.Wallet{}, err
	}
	entryType := models.EntryEarn
	if origin == models.OriginAdminGrant {
		entryType = models.EntryGrant
	}
	if _, err := s.ledger.Append(ctx, tx, store.LedgerAppendInput{
		Type:     entryType,
		ToUserID: &userID,
		Amount:   amount,
		Origin:   origin,
		Reason:   reason,
	}); err != nil {
		return models.Wallet{}, err
	}
	wallet.Balance += amount
	wallet.DailyEarned += amount
	return wallet, nil
}

// CheckEarningCap reports whether a credit of amount would pass the wallet's
// tier cap right now. Advisory only: the binding check runs inside the credit
// transaction.
func (s *WalletService) CheckEarningCap(ctx context.Context, userID string, amount int64) (bool, error) {
	wallet, err := s.wallets.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrWalletNotFound
		}
		return false, err
	}
	return policy.WithinCap(wallet.DailyEarned, amount, policy.ForTier(wallet.Tier).DailyEarningCap), nil
}

// ApplySignupBonus credits the one-time signup bonus inside the caller's
// registration transaction.
func (s *WalletService) ApplySignupBonus(ctx context.Context, tx *sqlx.Tx, userID string, amount int64) error {
	if amount <= 0 {
		return nil
	}
	_, err := s.creditLocked(ctx, tx, userID, amount, models.OriginSignupBonus, "signup bonus")
	return err
}

// ClaimDailyLogin credits the login reward at most once per UTC day.
func (s *WalletService) ClaimDailyLogin(ctx context.Context, userID string) (models.Wallet, error) {
	var wallet models.Wallet
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.wallets.GetForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrWalletNotFound
			}
			return err
		}
		today := time.Now().UTC().Truncate(24 * time.Hour)
		if current.LastDailyLogin != nil && !current.LastDailyLogin.UTC().Before(today) {
			return ErrAlreadyClaimed
		}
		if err := s.wallets.SetLastDailyLogin(ctx, tx, userID, today); err != nil {
			return err
		}
		wallet, err = s.creditLocked(ctx, tx, userID, DailyLoginReward, models.OriginDailyLogin, "daily login reward")
		return err
	})
	if err != nil {
		return models.Wallet{}, mapTxErr(err)
	}
	s.hub.BroadcastBalance(userID, websocket.BalanceUpdate{
		Balance:  wallet.Balance,
		Escrowed: wallet.EscrowedBalance,
		Reason:   models.OriginDailyLogin,
	})
	return wallet, nil
}

// RewardGameplay credits a verified game result exactly once. The anti-cheat
// collaborator is consulted first; the stored result is then consumed inside
// the credit transaction so a replayed claim finds it spent.
func (s *WalletService) RewardGameplay(ctx context.Context, gameID, userID string) (int64, error) {
	verified, err := s.verifier.VerifyGameResult(ctx, gameID, userID)
	if err != nil {
		return 0, err
	}
	if !verified {
		return 0, ErrNotVerified
	}
	var reward int64
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := s.gameResults.Get(ctx, gameID, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotVerified
			}
			return err
		}
		claimed, err := s.gameResults.Consume(ctx, tx, gameID, userID)
		if err != nil {
			return err
		}
		if claimed == 0 {
			if result.ConsumedAt != nil {
				return ErrAlreadyClaimed
			}
			return ErrNotVerified
		}
		reward = result.RewardAmount
		_, err = s.creditLocked(ctx, tx, userID, reward, models.OriginGameplayWin, "gameplay win "+gameID)
		return err
	})
	if err != nil {
		return 0, mapTxErr(err)
	}
	return reward, nil
}

// UpgradeToVerified burns the one-time verification fee and promotes a basic
// wallet, provided the external phone-verification prerequisite holds.
func (s *WalletService) UpgradeToVerified(ctx context.Context, userID string) (models.Wallet, error) {
	ok, err := s.phone.IsPhoneVerified(ctx, userID)
	if err != nil {
		return models.Wallet{}, err
	}
	if !ok {
		return models.Wallet{}, ErrPrerequisiteFailed
	}
	var wallet models.Wallet
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.wallets.GetForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrWalletNotFound
			}
			return err
		}
		if current.Tier != policy.TierBasic {
			return ErrAlreadyVerified
		}
		if current.Balance < policy.VerificationFee {
			return &PolicyError{Rule: RuleInsufficientBalance, Limit: policy.VerificationFee, Remaining: current.Balance}
		}
		if err := s.wallets.Debit(ctx, tx, userID, policy.VerificationFee); err != nil {
			return err
		}
		if err := s.wallets.SetTier(ctx, tx, userID, policy.TierVerified); err != nil {
			return err
		}
		if _, err := s.ledger.Append(ctx, tx, store.LedgerAppendInput{
			Type:       models.EntryBurn,
			FromUserID: &userID,
			Amount:     policy.VerificationFee,
			Origin:     models.OriginPurchase,
			Reason:     "verified tier upgrade fee",
		}); err != nil {
			return err
		}
		current.Balance -= policy.VerificationFee
		current.Tier = policy.TierVerified
		wallet = current
		return nil
	})
	if err != nil {
		return models.Wallet{}, mapTxErr(err)
	}
	s.hub.BroadcastBalance(userID, websocket.BalanceUpdate{
		Balance:  wallet.Balance,
		Escrowed: wallet.EscrowedBalance,
		Reason:   "tier_upgrade",
	})
	return wallet, nil
}

// SoftZero burns a departing user's remaining diamonds and zeroes the wallet.
// The row survives so the ledger keeps its subject. Escrowed funds belong to
// open transfers, which must settle, cancel or expire before erasure; burning
// them here would leave those transfers releasing escrow that no longer
// exists.
func (s *WalletService) SoftZero(ctx context.Context, userID string) error {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		wallet, err := s.wallets.GetForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrWalletNotFound
			}
			return err
		}
		if wallet.EscrowedBalance > 0 {
			return ErrEscrowOutstanding
		}
		total := wallet.Balance
		if total > 0 {
			if _, err := s.ledger.Append(ctx, tx, store.LedgerAppendInput{
				Type:       models.EntryBurn,
				FromUserID: &userID,
				Amount:     total,
				Origin:     models.OriginCommunity,
				Reason:     "account erasure",
			}); err != nil {
				return err
			}
		}
		return s.wallets.SoftZero(ctx, tx, userID)
	})
	return mapTxErr(err)
}

// mapTxErr converts the retry-exhaustion sentinel from the transaction runner
// into the service-level concurrency error.
func mapTxErr(err error) error {
	if errors.Is(err, db.ErrTxRetryExhausted) {
		return ErrConcurrencyExhausted
	}
	return err
}
