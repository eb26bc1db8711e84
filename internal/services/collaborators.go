package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"diamonds/internal/models"
)

// StoreGameVerifier answers verification queries from the game_results table,
// which the anti-cheat pipeline populates out of band.
type StoreGameVerifier struct {
	results GameResultStore
}

func NewStoreGameVerifier(results GameResultStore) StoreGameVerifier {
	return StoreGameVerifier{results: results}
}

func (v StoreGameVerifier) VerifyGameResult(ctx context.Context, gameID, userID string) (bool, error) {
	result, err := v.results.Get(ctx, gameID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return result.Verified, nil
}

// TenureActivityChecker is the default stand-in for the external activity
// signal: tenure plus lifetime earnings. Swappable at construction.
type TenureActivityChecker struct {
	wallets     WalletStore
	minTenure   time.Duration
	minLifetime int64
}

func NewTenureActivityChecker(wallets WalletStore) TenureActivityChecker {
	return TenureActivityChecker{
		wallets:     wallets,
		minTenure:   30 * 24 * time.Hour,
		minLifetime: 1000,
	}
}

func (c TenureActivityChecker) IsEligibleForTrusted(ctx context.Context, wallet models.Wallet) (bool, error) {
	if time.Since(wallet.CreatedAt) < c.minTenure {
		return false, nil
	}
	lifetime, err := c.wallets.LifetimeEarned(ctx, wallet.UserID)
	if err != nil {
		return false, err
	}
	return lifetime >= c.minLifetime, nil
}
