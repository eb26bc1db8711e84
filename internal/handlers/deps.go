package handlers

import (
	"context"
	"time"

	"diamonds/internal/models"
	"diamonds/internal/policy"
	"diamonds/internal/services"
	"diamonds/internal/store"

	"github.com/jmoiron/sqlx"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
	SetPhoneVerified(ctx context.Context, tx store.Execer, userID string) (bool, error)
}

type WalletStore interface {
	Create(ctx context.Context, tx store.Execer, userID string, tier policy.Tier) error
	GetByUser(ctx context.Context, userID string) (models.Wallet, error)
	GetOrigins(ctx context.Context, userID string) (map[string]int64, error)
}

type LedgerStore interface {
	List(ctx context.Context, limit, offset int) ([]models.LedgerEntry, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.LedgerEntry, error)
}

type TransferStore interface {
	GetByID(ctx context.Context, transferID string) (models.Transfer, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transfer, error)
}

type GrantStore interface {
	GetByID(ctx context.Context, grantID string) (models.GrantRequest, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.GrantRequest, error)
	ListDueCooling(ctx context.Context, now time.Time) ([]models.GrantRequest, error)
}

type TransactionStore interface {
	ListByUser(ctx context.Context, userID, txType string, limit, offset int) ([]map[string]any, error)
	ListAll(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
	CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	GrantRole(ctx context.Context, tx store.Execer, adminUserID, role string) error
	HasAnyAdmin(ctx context.Context) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

type WalletService interface {
	CreditOrigin(ctx context.Context, userID string, amount int64, origin, reason string) (models.Wallet, error)
	ApplySignupBonus(ctx context.Context, tx *sqlx.Tx, userID string, amount int64) error
	CheckEarningCap(ctx context.Context, userID string, amount int64) (bool, error)
	ClaimDailyLogin(ctx context.Context, userID string) (models.Wallet, error)
	RewardGameplay(ctx context.Context, gameID, userID string) (int64, error)
	UpgradeToVerified(ctx context.Context, userID string) (models.Wallet, error)
	SoftZero(ctx context.Context, userID string) error
}

type TransferService interface {
	Initiate(ctx context.Context, fromUserID, toUserID string, amount int64) (models.Transfer, error)
	Confirm(ctx context.Context, transferID, actorID string) (models.Transfer, error)
	Cancel(ctx context.Context, transferID, actorID string) (bool, error)
}

type GrantService interface {
	Create(ctx context.Context, adminID, targetUserID string, amount int64, reason string) (models.GrantRequest, error)
	Approve(ctx context.Context, grantID, adminID string) (models.GrantRequest, error)
	Reject(ctx context.Context, grantID, adminID string) error
}

type ReconcileService interface {
	SupplyAudit(ctx context.Context) (services.SupplyAuditReport, error)
}
