package store

import (
	"context"
	"time"

	"diamonds/internal/models"
	"diamonds/internal/policy"
)

type WalletStore struct {
	db DB
}

func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

func (s *WalletStore) Create(ctx context.Context, tx Execer, userID string, tier policy.Tier) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, tier)
		VALUES ($1, $2)
	`, userID, string(tier))
	return err
}

func (s *WalletStore) GetByUser(ctx context.Context, userID string) (models.Wallet, error) {
	var wallet models.Wallet
	err := s.db.GetContext(ctx, &wallet, `
		SELECT user_id, balance, escrowed_balance, daily_earned, daily_transferred,
		       daily_received, tier, last_daily_login, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`, userID)
	return wallet, err
}

func (s *WalletStore) GetForUpdate(ctx context.Context, tx Getter, userID string) (models.Wallet, error) {
	var wallet models.Wallet
	err := tx.GetContext(ctx, &wallet, `
		SELECT user_id, balance, escrowed_balance, daily_earned, daily_transferred,
		       daily_received, tier, last_daily_login, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	return wallet, err
}

// ApplyEarn credits balance and the daily earning counter together.
func (s *WalletStore) ApplyEarn(ctx context.Context, tx Execer, userID string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance + $1, daily_earned = daily_earned + $1, updated_at = NOW()
		WHERE user_id = $2
	`, amount, userID)
	return err
}

// MoveToEscrow shifts amount from the spendable balance into escrow and
// counts it against the daily transfer allowance.
func (s *WalletStore) MoveToEscrow(ctx context.Context, tx Execer, userID string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance - $1,
		    escrowed_balance = escrowed_balance + $1,
		    daily_transferred = daily_transferred + $1,
		    updated_at = NOW()
		WHERE user_id = $2
	`, amount, userID)
	return err
}

// ReleaseEscrow returns escrowed funds to the spendable balance and refunds
// the daily transfer allowance (expiry and cancellation paths).
func (s *WalletStore) ReleaseEscrow(ctx context.Context, tx Execer, userID string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance + $1,
		    escrowed_balance = escrowed_balance - $1,
		    daily_transferred = GREATEST(daily_transferred - $1, 0),
		    updated_at = NOW()
		WHERE user_id = $2
	`, amount, userID)
	return err
}

// SettleEscrow removes completed-transfer funds from escrow without touching
// the spendable balance.
func (s *WalletStore) SettleEscrow(ctx context.Context, tx Execer, userID string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET escrowed_balance = escrowed_balance - $1, updated_at = NOW()
		WHERE user_id = $2
	`, amount, userID)
	return err
}

// CreditReceived credits an incoming p2p amount and the daily receive counter.
func (s *WalletStore) CreditReceived(ctx context.Context, tx Execer, userID string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance + $1, daily_received = daily_received + $1, updated_at = NOW()
		WHERE user_id = $2
	`, amount, userID)
	return err
}

// Debit removes amount from the spendable balance (explicit burns).
func (s *WalletStore) Debit(ctx context.Context, tx Execer, userID string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance - $1, updated_at = NOW()
		WHERE user_id = $2
	`, amount, userID)
	return err
}

func (s *WalletStore) SetTier(ctx context.Context, tx Execer, userID string, tier policy.Tier) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET tier = $1, updated_at = NOW()
		WHERE user_id = $2
	`, string(tier), userID)
	return err
}

func (s *WalletStore) SetLastDailyLogin(ctx context.Context, tx Execer, userID string, day time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET last_daily_login = $1, updated_at = NOW()
		WHERE user_id = $2
	`, day, userID)
	return err
}

// AddOrigin bumps the per-origin breakdown used as governance weight.
func (s *WalletStore) AddOrigin(ctx context.Context, tx Execer, userID, origin string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_origins (user_id, origin, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, origin) DO UPDATE SET amount = wallet_origins.amount + EXCLUDED.amount
	`, userID, origin, amount)
	return err
}

type OriginAmount struct {
	Origin string `db:"origin"`
	Amount int64  `db:"amount"`
}

func (s *WalletStore) GetOrigins(ctx context.Context, userID string) (map[string]int64, error) {
	var rows []OriginAmount
	err := s.db.SelectContext(ctx, &rows, `
		SELECT origin, amount
		FROM wallet_origins
		WHERE user_id = $1
		ORDER BY origin
	`, userID)
	if err != nil {
		return nil, err
	}
	origins := make(map[string]int64, len(rows))
	for _, row := range rows {
		origins[row.Origin] = row.Amount
	}
	return origins, nil
}

func (s *WalletStore) LifetimeEarned(ctx context.Context, userID string) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM wallet_origins
		WHERE user_id = $1 AND origin <> $2
	`, userID, models.OriginP2PTransfer)
	return sum, err
}

// ResetDailyCounters zeroes all daily counters in one batched statement.
// Safe to re-run.
func (s *WalletStore) ResetDailyCounters(ctx context.Context, tx Execer) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET daily_earned = 0, daily_transferred = 0, daily_received = 0, updated_at = NOW()
		WHERE daily_earned <> 0 OR daily_transferred <> 0 OR daily_received <> 0
	`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// TotalSupply sums spendable plus escrowed balances across all wallets.
func (s *WalletStore) TotalSupply(ctx context.Context) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(balance + escrowed_balance), 0)
		FROM wallets
	`)
	return sum, err
}

func (s *WalletStore) ListByTier(ctx context.Context, tier policy.Tier) ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := s.db.SelectContext(ctx, &wallets, `
		SELECT user_id, balance, escrowed_balance, daily_earned, daily_transferred,
		       daily_received, tier, last_daily_login, created_at, updated_at
		FROM wallets
		WHERE tier = $1
		ORDER BY created_at
	`, string(tier))
	return wallets, err
}

// SoftZero clears balances and counters for account deletion. The wallet row
// itself is retained.
func (s *WalletStore) SoftZero(ctx context.Context, tx Execer, userID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = 0, escrowed_balance = 0, daily_earned = 0,
		    daily_transferred = 0, daily_received = 0, updated_at = NOW()
		WHERE user_id = $1
	`, userID)
	return err
}
