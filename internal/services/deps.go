package services

import (
	"context"
	"time"

	"diamonds/internal/events"
	"diamonds/internal/models"
	"diamonds/internal/policy"
	"diamonds/internal/store"
	"diamonds/internal/websocket"
)

type WalletStore interface {
	GetByUser(ctx context.Context, userID string) (models.Wallet, error)
	GetForUpdate(ctx context.Context, tx store.Getter, userID string) (models.Wallet, error)
	ApplyEarn(ctx context.Context, tx store.Execer, userID string, amount int64) error
	MoveToEscrow(ctx context.Context, tx store.Execer, userID string, amount int64) error
	ReleaseEscrow(ctx context.Context, tx store.Execer, userID string, amount int64) error
	SettleEscrow(ctx context.Context, tx store.Execer, userID string, amount int64) error
	CreditReceived(ctx context.Context, tx store.Execer, userID string, amount int64) error
	Debit(ctx context.Context, tx store.Execer, userID string, amount int64) error
	SetTier(ctx context.Context, tx store.Execer, userID string, tier policy.Tier) error
	SetLastDailyLogin(ctx context.Context, tx store.Execer, userID string, day time.Time) error
	AddOrigin(ctx context.Context, tx store.Execer, userID, origin string, amount int64) error
	LifetimeEarned(ctx context.Context, userID string) (int64, error)
	ResetDailyCounters(ctx context.Context, tx store.Execer) (int64, error)
	TotalSupply(ctx context.Context) (int64, error)
	ListByTier(ctx context.Context, tier policy.Tier) ([]models.Wallet, error)
	SoftZero(ctx context.Context, tx store.Execer, userID string) error
}

type LedgerStore interface {
	Append(ctx context.Context, tx store.Tx, input store.LedgerAppendInput) (models.LedgerEntry, error)
	SupplyDelta(ctx context.Context) (int64, error)
	VerifyChain(ctx context.Context) error
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, input store.TransactionInput) error
}

type GrantStore interface {
	Create(ctx context.Context, tx store.Execer, input store.GrantInput) error
	GetByID(ctx context.Context, grantID string) (models.GrantRequest, error)
	GetForUpdate(ctx context.Context, tx store.Getter, grantID string) (models.GrantRequest, error)
	AddApproval(ctx context.Context, tx store.Execer, grantID, adminID string) (int64, error)
	UpdateStatus(ctx context.Context, tx store.Execer, grantID, fromStatus, toStatus string) (int64, error)
	MarkExecuted(ctx context.Context, tx store.Execer, grantID string) (int64, error)
	Reject(ctx context.Context, tx store.Execer, grantID string) (int64, error)
	ListDueCooling(ctx context.Context, now time.Time) ([]models.GrantRequest, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.GrantRequest, error)
}

type TransferStore interface {
	Create(ctx context.Context, tx store.Execer, input store.TransferInput) error
	GetByID(ctx context.Context, transferID string) (models.Transfer, error)
	GetForUpdate(ctx context.Context, tx store.Getter, transferID string) (models.Transfer, error)
	SetConfirmed(ctx context.Context, tx store.Execer, transferID string, sender bool) (int64, error)
	MarkCompleted(ctx context.Context, tx store.Execer, transferID string) (int64, error)
	MarkClosed(ctx context.Context, tx store.Execer, transferID, status string) (int64, error)
	ListExpired(ctx context.Context, now time.Time) ([]models.Transfer, error)
}

type GameResultStore interface {
	Get(ctx context.Context, gameID, userID string) (store.GameResult, error)
	Consume(ctx context.Context, tx store.Execer, gameID, userID string) (int64, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

type EventPublisher interface {
	PublishGrantUpdated(event events.GrantUpdated)
	PublishTransferUpdated(event events.TransferUpdated)
}

// GameVerifier is the anti-cheat collaborator consulted before any
// gameplay-win credit.
type GameVerifier interface {
	VerifyGameResult(ctx context.Context, gameID, userID string) (bool, error)
}

// PhoneVerifier is the external prerequisite check for the basic -> verified
// upgrade.
type PhoneVerifier interface {
	IsPhoneVerified(ctx context.Context, userID string) (bool, error)
}

// ActivityChecker supplies the activity signal driving the scheduled
// verified -> trusted promotion.
type ActivityChecker interface {
	IsEligibleForTrusted(ctx context.Context, wallet models.Wallet) (bool, error)
}
