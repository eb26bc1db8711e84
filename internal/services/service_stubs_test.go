package services

import (
	"context"
	"time"

	"diamonds/internal/events"
	"diamonds/internal/models"
	"diamonds/internal/policy"
	"diamonds/internal/store"
	"diamonds/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type stubWalletStore struct {
	getByUserFn          func(ctx context.Context, userID string) (models.Wallet, error)
	getForUpdateFn       func(ctx context.Context, tx store.Getter, userID string) (models.Wallet, error)
	applyEarnFn          func(ctx context.Context, tx store.Execer, userID string, amount int64) error
	moveToEscrowFn       func(ctx context.Context, tx store.Execer, userID string, amount int64) error
	releaseEscrowFn      func(ctx context.Context, tx store.Execer, userID string, amount int64) error
	settleEscrowFn       func(ctx context.Context, tx store.Execer, userID string, amount int64) error
	creditReceivedFn     func(ctx context.Context, tx store.Execer, userID string, amount int64) error
	debitFn              func(ctx context.Context, tx store.Execer, userID string, amount int64) error
	setTierFn            func(ctx context.Context, tx store.Execer, userID string, tier policy.Tier) error
	setLastDailyLoginFn  func(ctx context.Context, tx store.Execer, userID string, day time.Time) error
	addOriginFn          func(ctx context.Context, tx store.Execer, userID, origin string, amount int64) error
	lifetimeEarnedFn     func(ctx context.Context, userID string) (int64, error)
	resetDailyCountersFn func(ctx context.Context, tx store.Execer) (int64, error)
	totalSupplyFn        func(ctx context.Context) (int64, error)
	listByTierFn         func(ctx context.Context, tier policy.Tier) ([]models.Wallet, error)
	softZeroFn           func(ctx context.Context, tx store.Execer, userID string) error
}

func (s stubWalletStore) GetByUser(ctx context.Context, userID string) (models.Wallet, error) {
	if s.getByUserFn == nil {
		return models.Wallet{UserID: userID}, nil
	}
	return s.getByUserFn(ctx, userID)
}

func (s stubWalletStore) GetForUpdate(ctx context.Context, tx store.Getter, userID string) (models.Wallet, error) {
	if s.getForUpdateFn == nil {
		return models.Wallet{UserID: userID}, nil
	}
	return s.getForUpdateFn(ctx, tx, userID)
}

func (s stubWalletStore) ApplyEarn(ctx context.Context, tx store.Execer, userID string, amount int64) error {
	if s.applyEarnFn == nil {
		return nil
	}
	return s.applyEarnFn(ctx, tx, userID, amount)
}

func (s stubWalletStore) MoveToEscrow(ctx context.Context, tx store.Execer, userID string, amount int64) error {
	if s.moveToEscrowFn == nil {
		return nil
	}
	return s.moveToEscrowFn(ctx, tx, userID, amount)
}

func (s stubWalletStore) ReleaseEscrow(ctx context.Context, tx store.Execer, userID string, amount int64) error {
	if s.releaseEscrowFn == nil {
		return nil
	}
	return s.releaseEscrowFn(ctx, tx, userID, amount)
}

func (s stubWalletStore) SettleEscrow(ctx context.Context, tx store.Execer, userID string, amount int64) error {
	if s.settleEscrowFn == nil {
		return nil
	}
	return s.settleEscrowFn(ctx, tx, userID, amount)
}

func (s stubWalletStore) CreditReceived(ctx context.Context, tx store.Execer, userID string, amount int64) error {
	if s.creditReceivedFn == nil {
		return nil
	}
	return s.creditReceivedFn(ctx, tx, userID, amount)
}

func (s stubWalletStore) Debit(ctx context.Context, tx store.Execer, userID string, amount int64) error {
	if s.debitFn == nil {
		return nil
	}
	return s.debitFn(ctx, tx, userID, amount)
}

func (s stubWalletStore) SetTier(ctx context.Context, tx store.Execer, userID string, tier policy.Tier) error {
	if s.setTierFn == nil {
		return nil
	}
	return s.setTierFn(ctx, tx, userID, tier)
}

func (s stubWalletStore) SetLastDailyLogin(ctx context.Context, tx store.Execer, userID string, day time.Time) error {
	if s.setLastDailyLoginFn == nil {
		return nil
	}
	return s.setLastDailyLoginFn(ctx, tx, userID, day)
}

func (s stubWalletStore) AddOrigin(ctx context.Context, tx store.Execer, userID, origin string, amount int64) error {
	if s.addOriginFn == nil {
		return nil
	}
	return s.addOriginFn(ctx, tx, userID, origin, amount)
}

func (s stubWalletStore) LifetimeEarned(ctx context.Context, userID string) (int64, error) {
	if s.lifetimeEarnedFn == nil {
		return 0, nil
	}
	return s.lifetimeEarnedFn(ctx, userID)
}

func (s stubWalletStore) ResetDailyCounters(ctx context.Context, tx store.Execer) (int64, error) {
	if s.resetDailyCountersFn == nil {
		return 0, nil
	}
	return s.resetDailyCountersFn(ctx, tx)
}

func (s stubWalletStore) TotalSupply(ctx context.Context) (int64, error) {
	if s.totalSupplyFn == nil {
		return 0, nil
	}
	return s.totalSupplyFn(ctx)
}

func (s stubWalletStore) ListByTier(ctx context.Context, tier policy.Tier) ([]models.Wallet, error) {
	if s.listByTierFn == nil {
		return nil, nil
	}
	return s.listByTierFn(ctx, tier)
}

func (s stubWalletStore) SoftZero(ctx context.Context, tx store.Execer, userID string) error {
	if s.softZeroFn == nil {
		return nil
	}
	return s.softZeroFn(ctx, tx, userID)
}

type stubLedgerStore struct {
	appendFn      func(ctx context.Context, tx store.Tx, input store.LedgerAppendInput) (models.LedgerEntry, error)
	supplyDeltaFn func(ctx context.Context) (int64, error)
	verifyChainFn func(ctx context.Context) error
}

func (s *stubLedgerStore) Append(ctx context.Context, tx store.Tx, input store.LedgerAppendInput) (models.LedgerEntry, error) {
	if s.appendFn == nil {
		return models.LedgerEntry{}, nil
	}
	return s.appendFn(ctx, tx, input)
}

func (s *stubLedgerStore) SupplyDelta(ctx context.Context) (int64, error) {
	if s.supplyDeltaFn == nil {
		return 0, nil
	}
	return s.supplyDeltaFn(ctx)
}

func (s *stubLedgerStore) VerifyChain(ctx context.Context) error {
	if s.verifyChainFn == nil {
		return nil
	}
	return s.verifyChainFn(ctx)
}

type stubTransactionStore struct {
	created []store.TransactionInput
}

func (s *stubTransactionStore) Create(ctx context.Context, tx store.Execer, input store.TransactionInput) error {
	s.created = append(s.created, input)
	return nil
}

type stubGrantStore struct {
	createFn         func(ctx context.Context, tx store.Execer, input store.GrantInput) error
	getByIDFn        func(ctx context.Context, grantID string) (models.GrantRequest, error)
	getForUpdateFn   func(ctx context.Context, tx store.Getter, grantID string) (models.GrantRequest, error)
	addApprovalFn    func(ctx context.Context, tx store.Execer, grantID, adminID string) (int64, error)
	updateStatusFn   func(ctx context.Context, tx store.Execer, grantID, fromStatus, toStatus string) (int64, error)
	markExecutedFn   func(ctx context.Context, tx store.Execer, grantID string) (int64, error)
	rejectFn         func(ctx context.Context, tx store.Execer, grantID string) (int64, error)
	listDueCoolingFn func(ctx context.Context, now time.Time) ([]models.GrantRequest, error)
	listByStatusFn   func(ctx context.Context, status string, limit, offset int) ([]models.GrantRequest, error)
}

func (s stubGrantStore) Create(ctx context.Context, tx store.Execer, input store.GrantInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubGrantStore) GetByID(ctx context.Context, grantID string) (models.GrantRequest, error) {
	if s.getByIDFn == nil {
		return models.GrantRequest{ID: grantID}, nil
	}
	return s.getByIDFn(ctx, grantID)
}

func (s stubGrantStore) GetForUpdate(ctx context.Context, tx store.Getter, grantID string) (models.GrantRequest, error) {
	return s.getForUpdateFn(ctx, tx, grantID)
}

func (s stubGrantStore) AddApproval(ctx context.Context, tx store.Execer, grantID, adminID string) (int64, error) {
	if s.addApprovalFn == nil {
		return 1, nil
	}
	return s.addApprovalFn(ctx, tx, grantID, adminID)
}

func (s stubGrantStore) UpdateStatus(ctx context.Context, tx store.Execer, grantID, fromStatus, toStatus string) (int64, error) {
	if s.updateStatusFn == nil {
		return 1, nil
	}
	return s.updateStatusFn(ctx, tx, grantID, fromStatus, toStatus)
}

func (s stubGrantStore) MarkExecuted(ctx context.Context, tx store.Execer, grantID string) (int64, error) {
	if s.markExecutedFn == nil {
		return 1, nil
	}
	return s.markExecutedFn(ctx, tx, grantID)
}

func (s stubGrantStore) Reject(ctx context.Context, tx store.Execer, grantID string) (int64, error) {
	if s.rejectFn == nil {
		return 1, nil
	}
	return s.rejectFn(ctx, tx, grantID)
}

func (s stubGrantStore) ListDueCooling(ctx context.Context, now time.Time) ([]models.GrantRequest, error) {
	if s.listDueCoolingFn == nil {
		return nil, nil
	}
	return s.listDueCoolingFn(ctx, now)
}

func (s stubGrantStore) ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.GrantRequest, error) {
	if s.listByStatusFn == nil {
		return nil, nil
	}
	return s.listByStatusFn(ctx, status, limit, offset)
}

type stubTransferStore struct {
	createFn        func(ctx context.Context, tx store.Execer, input store.TransferInput) error
	getByIDFn       func(ctx context.Context, transferID string) (models.Transfer, error)
	getForUpdateFn  func(ctx context.Context, tx store.Getter, transferID string) (models.Transfer, error)
	setConfirmedFn  func(ctx context.Context, tx store.Execer, transferID string, sender bool) (int64, error)
	markCompletedFn func(ctx context.Context, tx store.Execer, transferID string) (int64, error)
	markClosedFn    func(ctx context.Context, tx store.Execer, transferID, status string) (int64, error)
	listExpiredFn   func(ctx context.Context, now time.Time) ([]models.Transfer, error)
}

func (s stubTransferStore) Create(ctx context.Context, tx store.Execer, input store.TransferInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubTransferStore) GetByID(ctx context.Context, transferID string) (models.Transfer, error) {
	if s.getByIDFn == nil {
		return models.Transfer{ID: transferID}, nil
	}
	return s.getByIDFn(ctx, transferID)
}

func (s stubTransferStore) GetForUpdate(ctx context.Context, tx store.Getter, transferID string) (models.Transfer, error) {
	return s.getForUpdateFn(ctx, tx, transferID)
}

func (s stubTransferStore) SetConfirmed(ctx context.Context, tx store.Execer, transferID string, sender bool) (int64, error) {
	if s.setConfirmedFn == nil {
		return 1, nil
	}
	return s.setConfirmedFn(ctx, tx, transferID, sender)
}

func (s stubTransferStore) MarkCompleted(ctx context.Context, tx store.Execer, transferID string) (int64, error) {
	if s.markCompletedFn == nil {
		return 1, nil
	}
	return s.markCompletedFn(ctx, tx, transferID)
}

func (s stubTransferStore) MarkClosed(ctx context.Context, tx store.Execer, transferID, status string) (int64, error) {
	if s.markClosedFn == nil {
		return 1, nil
	}
	return s.markClosedFn(ctx, tx, transferID, status)
}

func (s stubTransferStore) ListExpired(ctx context.Context, now time.Time) ([]models.Transfer, error) {
	if s.listExpiredFn == nil {
		return nil, nil
	}
	return s.listExpiredFn(ctx, now)
}

type stubGameResultStore struct {
	getFn     func(ctx context.Context, gameID, userID string) (store.GameResult, error)
	consumeFn func(ctx context.Context, tx store.Execer, gameID, userID string) (int64, error)
}

func (s stubGameResultStore) Get(ctx context.Context, gameID, userID string) (store.GameResult, error) {
	if s.getFn == nil {
		return store.GameResult{GameID: gameID, UserID: userID, Verified: true}, nil
	}
	return s.getFn(ctx, gameID, userID)
}

func (s stubGameResultStore) Consume(ctx context.Context, tx store.Execer, gameID, userID string) (int64, error) {
	if s.consumeFn == nil {
		return 1, nil
	}
	return s.consumeFn(ctx, tx, gameID, userID)
}

type stubAuditStore struct {
	logged []string
}

func (s *stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	s.logged = append(s.logged, action)
	return nil
}

type stubHub struct {
	calls []websocket.BalanceUpdate
}

func (s *stubHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	s.calls = append(s.calls, update)
}

type stubPublisher struct {
	grantEvents    []events.GrantUpdated
	transferEvents []events.TransferUpdated
}

func (s *stubPublisher) PublishGrantUpdated(event events.GrantUpdated) {
	s.grantEvents = append(s.grantEvents, event)
}

func (s *stubPublisher) PublishTransferUpdated(event events.TransferUpdated) {
	s.transferEvents = append(s.transferEvents, event)
}

type stubGameVerifier struct {
	verified bool
	err      error
}

func (s stubGameVerifier) VerifyGameResult(context.Context, string, string) (bool, error) {
	return s.verified, s.err
}

type stubPhoneVerifier struct {
	verified bool
	err      error
}

func (s stubPhoneVerifier) IsPhoneVerified(context.Context, string) (bool, error) {
	return s.verified, s.err
}

type stubActivityChecker struct {
	eligibleFn func(ctx context.Context, wallet models.Wallet) (bool, error)
}

func (s stubActivityChecker) IsEligibleForTrusted(ctx context.Context, wallet models.Wallet) (bool, error) {
	if s.eligibleFn == nil {
		return false, nil
	}
	return s.eligibleFn(ctx, wallet)
}

type stubAlertSink struct {
	alerts []string
}

func (s *stubAlertSink) SendAlert(_ context.Context, alertType, _ string, _ map[string]any) error {
	s.alerts = append(s.alerts, alertType)
	return nil
}

func newTestWalletService(wallets stubWalletStore, ledger *stubLedgerStore, transactions *stubTransactionStore, gameResults stubGameResultStore, verifier stubGameVerifier, phone stubPhoneVerifier, hub *stubHub) *WalletService {
	return NewWalletService(fakeTxRunner{}, wallets, ledger, transactions, gameResults, verifier, phone, hub)
}
