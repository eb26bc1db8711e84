package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	"diamonds/internal/db"
	"diamonds/internal/events"
	"diamonds/internal/models"
	"diamonds/internal/store"
	"diamonds/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Grant policy constants. Amounts at or above CoolingThreshold always wait
// out the cooling period regardless of approvals.
const (
	SingleApprovalMax = 999
	DualApprovalMax   = 9999
	CoolingThreshold  = 10000
	CoolingPeriod     = 72 * time.Hour

	// Upper bound on approved grants picked up per sweep pass.
	sweepBatchSize = 200
)

// ErrGrantNotDue rejects execution of a cooling-period grant before its
// deadline.
var ErrGrantNotDue = errors.New("grant cooling period has not ended")

type GrantService struct {
	txRunner  db.TxRunner
	grants    GrantStore
	wallets   WalletStore
	ledger    LedgerStore
	txStore   TransactionStore
	audit     AuditStore
	publisher EventPublisher
	hub       BalanceHub
	walletSvc *WalletService
}

func NewGrantService(txRunner db.TxRunner, grants GrantStore, wallets WalletStore, ledger LedgerStore, txStore TransactionStore, audit AuditStore, publisher EventPublisher, hub BalanceHub, walletSvc *WalletService) *GrantService {
	return &GrantService{
		txRunner:  txRunner,
		grants:    grants,
		wallets:   wallets,
		ledger:    ledger,
		txStore:   txStore,
		audit:     audit,
		publisher: publisher,
		hub:       hub,
		walletSvc: walletSvc,
	}
}

func requiredApprovals(amount int64) int {
	if amount <= SingleApprovalMax {
		return 1
	}
	return 2
}

// Create opens a grant request. Small grants are approved by the creating
// admin's action alone; mid-range grants wait for a second distinct admin;
// large grants enter the cooling period immediately.
func (s *GrantService) Create(ctx context.Context, adminID, targetUserID string, amount int64, reason string) (models.GrantRequest, error) {
	if amount <= 0 {
		return models.GrantRequest{}, ErrInvalidAmount
	}
	if _, err := s.wallets.GetByUser(ctx, targetUserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.GrantRequest{}, ErrWalletNotFound
		}
		return models.GrantRequest{}, err
	}

	grantID := uuid.NewString()
	status := models.GrantPendingApproval
	var coolingEnds *time.Time
	switch {
	case amount >= CoolingThreshold:
		ends := time.Now().UTC().Add(CoolingPeriod)
		coolingEnds = &ends
		status = models.GrantCoolingPeriod
	case amount <= SingleApprovalMax:
		status = models.GrantApproved
	}

	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.grants.Create(ctx, tx, store.GrantInput{
			ID:                grantID,
			TargetUserID:      targetUserID,
			Amount:            amount,
			Reason:            reason,
			Status:            status,
			CoolingPeriodEnds: coolingEnds,
			CreatedBy:         adminID,
		}); err != nil {
			return err
		}
		if status == models.GrantPendingApproval {
			// The creating admin's action counts as the first approval.
			if _, err := s.grants.AddApproval(ctx, tx, grantID, adminID); err != nil {
				return err
			}
		}
		data, _ := json.Marshal(map[string]any{"amount": amount, "target": targetUserID, "status": status})
		return s.audit.Log(ctx, tx, adminID, "grant_create", "grant_request", grantID, string(data))
	})
	if err != nil {
		return models.GrantRequest{}, mapTxErr(err)
	}
	if status == models.GrantApproved {
		s.publisher.PublishGrantUpdated(events.GrantUpdated{
			GrantID:   grantID,
			OldStatus: models.GrantPendingApproval,
			NewStatus: models.GrantApproved,
			Amount:    amount,
			At:        time.Now().UTC(),
		})
	}
	return s.grants.GetByID(ctx, grantID)
}

// Approve records a distinct admin approval and promotes the request once
// enough approvals accumulate.
func (s *GrantService) Approve(ctx context.Context, grantID, adminID string) (models.GrantRequest, error) {
	var approved bool
	var amount int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		grant, err := s.grants.GetForUpdate(ctx, tx, grantID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrGrantNotFound
			}
			return err
		}
		if grant.Status != models.GrantPendingApproval {
			return ErrGrantNotPending
		}
		added, err := s.grants.AddApproval(ctx, tx, grantID, adminID)
		if err != nil {
			return err
		}
		if added == 0 {
			return ErrDuplicateApproval
		}
		amount = grant.Amount
		if len(grant.Approvals)+1 >= requiredApprovals(grant.Amount) {
			if _, err := s.grants.UpdateStatus(ctx, tx, grantID, models.GrantPendingApproval, models.GrantApproved); err != nil {
				return err
			}
			approved = true
		}
		data, _ := json.Marshal(map[string]any{"approved": approved})
		return s.audit.Log(ctx, tx, adminID, "grant_approve", "grant_request", grantID, string(data))
	})
	if err != nil {
		return models.GrantRequest{}, mapTxErr(err)
	}
	if approved {
		s.publisher.PublishGrantUpdated(events.GrantUpdated{
			GrantID:   grantID,
			OldStatus: models.GrantPendingApproval,
			NewStatus: models.GrantApproved,
			Amount:    amount,
			At:        time.Now().UTC(),
		})
	}
	return s.grants.GetByID(ctx, grantID)
}

// Reject terminates a non-terminal request.
func (s *GrantService) Reject(ctx context.Context, grantID, adminID string) error {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.grants.Reject(ctx, tx, grantID)
		if err != nil {
			return err
		}
		if rows == 0 {
			if _, err := s.grants.GetByID(ctx, grantID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return ErrGrantNotFound
				}
				return err
			}
			return ErrGrantNotPending
		}
		return s.audit.Log(ctx, tx, adminID, "grant_reject", "grant_request", grantID, "{}")
	})
	return mapTxErr(err)
}

// ExecuteGrant credits the target wallet exactly once. Safe to invoke from
// both the approval trigger and the scheduled sweep: the status-preconditioned
// update inside the transaction lets only the first caller commit, later
// callers get applied=false with no error.
func (s *GrantService) ExecuteGrant(ctx context.Context, grantID string) (bool, error) {
	var applied bool
	var wallet models.Wallet
	var targetUserID string
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		applied = false
		grant, err := s.grants.GetForUpdate(ctx, tx, grantID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrGrantNotFound
			}
			return err
		}
		switch grant.Status {
		case models.GrantExecuted, models.GrantRejected:
			return nil
		case models.GrantCoolingPeriod:
			if grant.CoolingPeriodEnds == nil || time.Now().UTC().Before(*grant.CoolingPeriodEnds) {
				return ErrGrantNotDue
			}
		case models.GrantApproved:
		default:
			return ErrGrantNotPending
		}
		rows, err := s.grants.MarkExecuted(ctx, tx, grantID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		wallet, err = s.walletSvc.creditLocked(ctx, tx, grant.TargetUserID, grant.Amount, models.OriginAdminGrant, "admin grant "+grantID)
		if err != nil {
			return err
		}
		if err := s.txStore.Create(ctx, tx, store.TransactionInput{
			ID:          uuid.NewString(),
			UserID:      grant.TargetUserID,
			Type:        "grant",
			Status:      "completed",
			Amount:      grant.Amount,
			ReferenceID: &grantID,
			Metadata:    "{}",
		}); err != nil {
			return err
		}
		targetUserID = grant.TargetUserID
		applied = true
		return nil
	})
	if err != nil {
		return false, mapTxErr(err)
	}
	if applied {
		s.hub.BroadcastBalance(targetUserID, websocket.BalanceUpdate{
			Balance:  wallet.Balance,
			Escrowed: wallet.EscrowedBalance,
			Reason:   models.OriginAdminGrant,
		})
	}
	return applied, nil
}

// SweepCooling executes every grant that is due: cooling-period grants past
// their deadline, plus grants sitting in approved whose transition event was
// lost before the worker could dispatch them. Each item runs in its own
// transaction; a failure is logged and the sweep moves on.
func (s *GrantService) SweepCooling(ctx context.Context) (executed, failed int) {
	due, err := s.grants.ListDueCooling(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("grant sweep: listing due grants failed: %v", err)
		return 0, 0
	}
	stranded, err := s.grants.ListByStatus(ctx, models.GrantApproved, sweepBatchSize, 0)
	if err != nil {
		log.Printf("grant sweep: listing approved grants failed: %v", err)
	} else {
		due = append(due, stranded...)
	}
	for _, grant := range due {
		applied, err := s.ExecuteGrant(ctx, grant.ID)
		if err != nil {
			failed++
			log.Printf("grant sweep: executing %s failed: %v", grant.ID, err)
			continue
		}
		if applied {
			executed++
		}
	}
	if len(due) > 0 {
		log.Printf("grant sweep: executed %d of %d due grants (%d failed)", executed, len(due), failed)
	}
	return executed, failed
}
