package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"diamonds/internal/auth"
	"diamonds/internal/config"
	"diamonds/internal/middleware"
	"diamonds/internal/models"
	"diamonds/internal/policy"
	"diamonds/internal/services"
	"diamonds/internal/store"
	"diamonds/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn           func(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	getByEmailFn       func(ctx context.Context, email string) (models.User, error)
	getByUsernameFn    func(ctx context.Context, username string) (models.User, error)
	getByIDFn          func(ctx context.Context, userID string) (models.User, error)
	setPhoneVerifiedFn func(ctx context.Context, tx store.Execer, userID string) (bool, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, username, email, passwordHash)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if s.getByEmailFn == nil {
		return models.User{}, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByUsername(ctx context.Context, username string) (models.User, error) {
	if s.getByUsernameFn == nil {
		return models.User{}, nil
	}
	return s.getByUsernameFn(ctx, username)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{}, nil
	}
	return s.getByIDFn(ctx, userID)
}

func (s stubUserStore) SetPhoneVerified(ctx context.Context, tx store.Execer, userID string) (bool, error) {
	if s.setPhoneVerifiedFn == nil {
		return true, nil
	}
	return s.setPhoneVerifiedFn(ctx, tx, userID)
}

type stubWalletStore struct {
	createFn     func(ctx context.Context, tx store.Execer, userID string, tier policy.Tier) error
	getByUserFn  func(ctx context.Context, userID string) (models.Wallet, error)
	getOriginsFn func(ctx context.Context, userID string) (map[string]int64, error)
}

func (s stubWalletStore) Create(ctx context.Context, tx store.Execer, userID string, tier policy.Tier) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, userID, tier)
}

func (s stubWalletStore) GetByUser(ctx context.Context, userID string) (models.Wallet, error) {
	if s.getByUserFn == nil {
		return models.Wallet{UserID: userID, Tier: policy.TierBasic}, nil
	}
	return s.getByUserFn(ctx, userID)
}

func (s stubWalletStore) GetOrigins(ctx context.Context, userID string) (map[string]int64, error) {
	if s.getOriginsFn == nil {
		return map[string]int64{}, nil
	}
	return s.getOriginsFn(ctx, userID)
}

type stubLedgerStore struct {
	listFn       func(ctx context.Context, limit, offset int) ([]models.LedgerEntry, error)
	listByUserFn func(ctx context.Context, userID string, limit, offset int) ([]models.LedgerEntry, error)
}

func (s stubLedgerStore) List(ctx context.Context, limit, offset int) ([]models.LedgerEntry, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

func (s stubLedgerStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.LedgerEntry, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, limit, offset)
}

type stubTransferStore struct {
	getByIDFn    func(ctx context.Context, transferID string) (models.Transfer, error)
	listByUserFn func(ctx context.Context, userID string, limit, offset int) ([]models.Transfer, error)
}

func (s stubTransferStore) GetByID(ctx context.Context, transferID string) (models.Transfer, error) {
	if s.getByIDFn == nil {
		return models.Transfer{}, nil
	}
	return s.getByIDFn(ctx, transferID)
}

func (s stubTransferStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transfer, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, limit, offset)
}

type stubGrantStore struct {
	getByIDFn        func(ctx context.Context, grantID string) (models.GrantRequest, error)
	listByStatusFn   func(ctx context.Context, status string, limit, offset int) ([]models.GrantRequest, error)
	listDueCoolingFn func(ctx context.Context, now time.Time) ([]models.GrantRequest, error)
}

func (s stubGrantStore) GetByID(ctx context.Context, grantID string) (models.GrantRequest, error) {
	if s.getByIDFn == nil {
		return models.GrantRequest{}, nil
	}
	return s.getByIDFn(ctx, grantID)
}

func (s stubGrantStore) ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.GrantRequest, error) {
	if s.listByStatusFn == nil {
		return nil, nil
	}
	return s.listByStatusFn(ctx, status, limit, offset)
}

func (s stubGrantStore) ListDueCooling(ctx context.Context, now time.Time) ([]models.GrantRequest, error) {
	if s.listDueCoolingFn == nil {
		return nil, nil
	}
	return s.listDueCoolingFn(ctx, now)
}

type stubTransactionStore struct {
	listByUserFn func(ctx context.Context, userID, txType string, limit, offset int) ([]map[string]any, error)
	listAllFn    func(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

func (s stubTransactionStore) ListByUser(ctx context.Context, userID, txType string, limit, offset int) ([]map[string]any, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, txType, limit, offset)
}

func (s stubTransactionStore) ListAll(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx, limit, offset)
}

type stubAdminStore struct {
	isAdminFn     func(ctx context.Context, userID string) (bool, bool, error)
	hasRoleFn     func(ctx context.Context, userID, role string) (bool, error)
	createAdminFn func(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	grantRoleFn   func(ctx context.Context, tx store.Execer, adminUserID, role string) error
	hasAnyAdminFn func(ctx context.Context) (bool, error)
}

func (s stubAdminStore) IsAdmin(ctx context.Context, userID string) (bool, bool, error) {
	if s.isAdminFn == nil {
		return false, false, nil
	}
	return s.isAdminFn(ctx, userID)
}

func (s stubAdminStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	if s.hasRoleFn == nil {
		return false, nil
	}
	return s.hasRoleFn(ctx, userID, role)
}

func (s stubAdminStore) CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error {
	if s.createAdminFn == nil {
		return nil
	}
	return s.createAdminFn(ctx, tx, userID, isSuper, createdBy)
}

func (s stubAdminStore) GrantRole(ctx context.Context, tx store.Execer, adminUserID, role string) error {
	if s.grantRoleFn == nil {
		return nil
	}
	return s.grantRoleFn(ctx, tx, adminUserID, role)
}

func (s stubAdminStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	if s.hasAnyAdminFn == nil {
		return true, nil
	}
	return s.hasAnyAdminFn(ctx)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	listFn func(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubWalletService struct {
	creditOriginFn      func(ctx context.Context, userID string, amount int64, origin, reason string) (models.Wallet, error)
	applySignupBonusFn  func(ctx context.Context, tx *sqlx.Tx, userID string, amount int64) error
	checkEarningCapFn   func(ctx context.Context, userID string, amount int64) (bool, error)
	claimDailyLoginFn   func(ctx context.Context, userID string) (models.Wallet, error)
	rewardGameplayFn    func(ctx context.Context, gameID, userID string) (int64, error)
	upgradeToVerifiedFn func(ctx context.Context, userID string) (models.Wallet, error)
	softZeroFn          func(ctx context.Context, userID string) error
}

func (s stubWalletService) CreditOrigin(ctx context.Context, userID string, amount int64, origin, reason string) (models.Wallet, error) {
	if s.creditOriginFn == nil {
		return models.Wallet{UserID: userID}, nil
	}
	return s.creditOriginFn(ctx, userID, amount, origin, reason)
}

func (s stubWalletService) ApplySignupBonus(ctx context.Context, tx *sqlx.Tx, userID string, amount int64) error {
	if s.applySignupBonusFn == nil {
		return nil
	}
	return s.applySignupBonusFn(ctx, tx, userID, amount)
}

func (s stubWalletService) CheckEarningCap(ctx context.Context, userID string, amount int64) (bool, error) {
	if s.checkEarningCapFn == nil {
		return true, nil
	}
	return s.checkEarningCapFn(ctx, userID, amount)
}

func (s stubWalletService) ClaimDailyLogin(ctx context.Context, userID string) (models.Wallet, error) {
	if s.claimDailyLoginFn == nil {
		return models.Wallet{UserID: userID}, nil
	}
	return s.claimDailyLoginFn(ctx, userID)
}

func (s stubWalletService) RewardGameplay(ctx context.Context, gameID, userID string) (int64, error) {
	if s.rewardGameplayFn == nil {
		return 0, nil
	}
	return s.rewardGameplayFn(ctx, gameID, userID)
}

func (s stubWalletService) UpgradeToVerified(ctx context.Context, userID string) (models.Wallet, error) {
	if s.upgradeToVerifiedFn == nil {
		return models.Wallet{UserID: userID}, nil
	}
	return s.upgradeToVerifiedFn(ctx, userID)
}

func (s stubWalletService) SoftZero(ctx context.Context, userID string) error {
	if s.softZeroFn == nil {
		return nil
	}
	return s.softZeroFn(ctx, userID)
}

type stubTransferService struct {
	initiateFn func(ctx context.Context, fromUserID, toUserID string, amount int64) (models.Transfer, error)
	confirmFn  func(ctx context.Context, transferID, actorID string) (models.Transfer, error)
	cancelFn   func(ctx context.Context, transferID, actorID string) (bool, error)
}

func (s stubTransferService) Initiate(ctx context.Context, fromUserID, toUserID string, amount int64) (models.Transfer, error) {
	if s.initiateFn == nil {
		return models.Transfer{}, nil
	}
	return s.initiateFn(ctx, fromUserID, toUserID, amount)
}

func (s stubTransferService) Confirm(ctx context.Context, transferID, actorID string) (models.Transfer, error) {
	if s.confirmFn == nil {
		return models.Transfer{}, nil
	}
	return s.confirmFn(ctx, transferID, actorID)
}

func (s stubTransferService) Cancel(ctx context.Context, transferID, actorID string) (bool, error) {
	if s.cancelFn == nil {
		return true, nil
	}
	return s.cancelFn(ctx, transferID, actorID)
}

type stubGrantService struct {
	createFn  func(ctx context.Context, adminID, targetUserID string, amount int64, reason string) (models.GrantRequest, error)
	approveFn func(ctx context.Context, grantID, adminID string) (models.GrantRequest, error)
	rejectFn  func(ctx context.Context, grantID, adminID string) error
}

func (s stubGrantService) Create(ctx context.Context, adminID, targetUserID string, amount int64, reason string) (models.GrantRequest, error) {
	if s.createFn == nil {
		return models.GrantRequest{}, nil
	}
	return s.createFn(ctx, adminID, targetUserID, amount, reason)
}

func (s stubGrantService) Approve(ctx context.Context, grantID, adminID string) (models.GrantRequest, error) {
	if s.approveFn == nil {
		return models.GrantRequest{}, nil
	}
	return s.approveFn(ctx, grantID, adminID)
}

func (s stubGrantService) Reject(ctx context.Context, grantID, adminID string) error {
	if s.rejectFn == nil {
		return nil
	}
	return s.rejectFn(ctx, grantID, adminID)
}

type stubReconcileService struct {
	supplyAuditFn func(ctx context.Context) (services.SupplyAuditReport, error)
}

func (s stubReconcileService) SupplyAudit(ctx context.Context) (services.SupplyAuditReport, error) {
	if s.supplyAuditFn == nil {
		return services.SupplyAuditReport{}, nil
	}
	return s.supplyAuditFn(ctx)
}

type handlerDeps struct {
	txRunner     fakeTxRunner
	users        stubUserStore
	wallets      stubWalletStore
	ledger       stubLedgerStore
	transfers    stubTransferStore
	grants       stubGrantStore
	transactions stubTransactionStore
	admin        stubAdminStore
	audit        stubAuditStore
	walletSvc    stubWalletService
	transferSvc  stubTransferService
	grantSvc     stubGrantService
	reconcile    stubReconcileService
}

func newTestHandler(deps handlerDeps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
		SignupBonus:    50,
	}
	return New(deps.txRunner, cfg, deps.users, deps.wallets, deps.ledger, deps.transfers, deps.grants,
		deps.transactions, deps.admin, deps.audit, deps.walletSvc, deps.transferSvc, deps.grantSvc,
		deps.reconcile, websocket.NewHub())
}

func serveWithAuth(t *testing.T, handler http.HandlerFunc, userID string, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	token, err := auth.GenerateToken("secret", userID, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(handler).ServeHTTP(rr, req)
	return rr
}
