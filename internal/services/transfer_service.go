package services

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"diamonds/internal/db"
	"diamonds/internal/events"
	"diamonds/internal/models"
	"diamonds/internal/policy"
	"diamonds/internal/store"
	"diamonds/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// TransferExpiry is how long a pending transfer waits for both confirmations.
const TransferExpiry = 24 * time.Hour

var feeRate = decimal.NewFromFloat(0.05)

// TransferFee is the burned portion of a completed transfer: 5% of the
// amount, floor-rounded.
func TransferFee(amount int64) int64 {
	return decimal.NewFromInt(amount).Mul(feeRate).Floor().IntPart()
}

type TransferService struct {
	txRunner  db.TxRunner
	transfers TransferStore
	wallets   WalletStore
	ledger    LedgerStore
	txStore   TransactionStore
	publisher EventPublisher
	hub       BalanceHub
}

func NewTransferService(txRunner db.TxRunner, transfers TransferStore, wallets WalletStore, ledger LedgerStore, txStore TransactionStore, publisher EventPublisher, hub BalanceHub) *TransferService {
	return &TransferService{
		txRunner:  txRunner,
		transfers: transfers,
		wallets:   wallets,
		ledger:    ledger,
		txStore:   txStore,
		publisher: publisher,
		hub:       hub,
	}
}

// Initiate escrows the sender's funds and opens a pending transfer. All tier
// checks run against the locked wallet rows so concurrent initiations cannot
// oversubscribe a daily limit.
func (s *TransferService) Initiate(ctx context.Context, fromUserID, toUserID string, amount int64) (models.Transfer, error) {
	if amount <= 0 {
		return models.Transfer{}, ErrInvalidAmount
	}
	if fromUserID == toUserID {
		return models.Transfer{}, ErrSelfTransfer
	}
	fee := TransferFee(amount)
	transferID := uuid.NewString()
	var senderAfter models.Wallet
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		sender, receiver, err := lockTwoWallets(ctx, tx, s.wallets, fromUserID, toUserID)
		if err != nil {
			return err
		}
		senderLimits := policy.ForTier(sender.Tier)
		if !senderLimits.CanTransfer {
			return &PolicyError{Rule: RuleTransferNotAllowed}
		}
		if sender.Balance < amount {
			return &PolicyError{Rule: RuleInsufficientBalance, Limit: amount, Remaining: sender.Balance}
		}
		if !policy.WithinCap(sender.DailyTransferred, amount, senderLimits.DailyTransferLimit) {
			return &PolicyError{
				Rule:      RuleTransferLimit,
				Limit:     senderLimits.DailyTransferLimit,
				Remaining: policy.Remaining(sender.DailyTransferred, senderLimits.DailyTransferLimit),
			}
		}
		receiverLimits := policy.ForTier(receiver.Tier)
		if !policy.WithinCap(receiver.DailyReceived, amount-fee, receiverLimits.DailyReceiveLimit) {
			return &PolicyError{
				Rule:      RuleReceiveLimit,
				Limit:     receiverLimits.DailyReceiveLimit,
				Remaining: policy.Remaining(receiver.DailyReceived, receiverLimits.DailyReceiveLimit),
			}
		}
		if err := s.wallets.MoveToEscrow(ctx, tx, fromUserID, amount); err != nil {
			return err
		}
		senderAfter = sender
		senderAfter.Balance -= amount
		senderAfter.EscrowedBalance += amount
		return s.transfers.Create(ctx, tx, store.TransferInput{
			ID:         transferID,
			FromUserID: fromUserID,
			ToUserID:   toUserID,
			Amount:     amount,
			FeeBurned:  fee,
			ExpiresAt:  time.Now().UTC().Add(TransferExpiry),
		})
	})
	if err != nil {
		return models.Transfer{}, mapTxErr(err)
	}
	s.hub.BroadcastBalance(fromUserID, websocket.BalanceUpdate{
		Balance:  senderAfter.Balance,
		Escrowed: senderAfter.EscrowedBalance,
		Reason:   "transfer_initiated",
	})
	return s.transfers.GetByID(ctx, transferID)
}

// Confirm flips the calling party's confirmation flag. It moves no funds;
// settlement is dispatched from the published update event once both flags
// are set.
func (s *TransferService) Confirm(ctx context.Context, transferID, actorID string) (models.Transfer, error) {
	var before, after models.Transfer
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		transfer, err := s.transfers.GetForUpdate(ctx, tx, transferID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTransferNotFound
			}
			return err
		}
		if actorID != transfer.FromUserID && actorID != transfer.ToUserID {
			return ErrNotParticipant
		}
		before = transfer
		after = transfer
		if transfer.Status != models.TransferPending {
			// Already settled or closed: a retried confirmation is a no-op.
			return nil
		}
		isSender := actorID == transfer.FromUserID
		if _, err := s.transfers.SetConfirmed(ctx, tx, transferID, isSender); err != nil {
			return err
		}
		if isSender {
			after.SenderConfirmed = true
		} else {
			after.ReceiverConfirmed = true
		}
		return nil
	})
	if err != nil {
		return models.Transfer{}, mapTxErr(err)
	}
	if before.Status == models.TransferPending {
		s.publisher.PublishTransferUpdated(events.TransferUpdated{
			TransferID:        transferID,
			OldStatus:         before.Status,
			NewStatus:         after.Status,
			SenderConfirmed:   after.SenderConfirmed,
			ReceiverConfirmed: after.ReceiverConfirmed,
			At:                time.Now().UTC(),
		})
	}
	return after, nil
}

// Complete settles a doubly-confirmed transfer: the escrowed gross amount
// leaves the sender, the net amount lands with the receiver, and the fee gap
// is burned. The pending-status precondition makes a double dispatch a no-op.
func (s *TransferService) Complete(ctx context.Context, transferID string) (bool, error) {
	var applied bool
	var sender, receiver models.Wallet
	var transfer models.Transfer
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		applied = false
		var err error
		transfer, err = s.transfers.GetForUpdate(ctx, tx, transferID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTransferNotFound
			}
			return err
		}
		if transfer.Status != models.TransferPending {
			return nil
		}
		if !transfer.SenderConfirmed || !transfer.ReceiverConfirmed {
			return nil
		}
		rows, err := s.transfers.MarkCompleted(ctx, tx, transferID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		sender, receiver, err = lockTwoWallets(ctx, tx, s.wallets, transfer.FromUserID, transfer.ToUserID)
		if err != nil {
			return err
		}
		net := transfer.Amount - transfer.FeeBurned
		if err := s.wallets.SettleEscrow(ctx, tx, transfer.FromUserID, transfer.Amount); err != nil {
			return err
		}
		if err := s.wallets.CreditReceived(ctx, tx, transfer.ToUserID, net); err != nil {
			return err
		}
		if err := s.wallets.AddOrigin(ctx, tx, transfer.ToUserID, models.OriginP2PTransfer, net); err != nil {
			return err
		}
		if _, err := s.ledger.Append(ctx, tx, store.LedgerAppendInput{
			Type:       models.EntryTransferOut,
			FromUserID: &transfer.FromUserID,
			ToUserID:   &transfer.ToUserID,
			Amount:     transfer.Amount,
			Origin:     models.OriginP2PTransfer,
			Reason:     "transfer " + transferID,
		}); err != nil {
			return err
		}
		if _, err := s.ledger.Append(ctx, tx, store.LedgerAppendInput{
			Type:       models.EntryTransferIn,
			FromUserID: &transfer.FromUserID,
			ToUserID:   &transfer.ToUserID,
			Amount:     net,
			Origin:     models.OriginP2PTransfer,
			Reason:     "transfer " + transferID,
		}); err != nil {
			return err
		}
		outID, inID := uuid.NewString(), uuid.NewString()
		if err := s.txStore.Create(ctx, tx, store.TransactionInput{
			ID: outID, UserID: transfer.FromUserID, Type: "transfer_out",
			Status: "completed", Amount: transfer.Amount, ReferenceID: &transferID, Metadata: "{}",
		}); err != nil {
			return err
		}
		if err := s.txStore.Create(ctx, tx, store.TransactionInput{
			ID: inID, UserID: transfer.ToUserID, Type: "transfer_in",
			Status: "completed", Amount: net, ReferenceID: &transferID, Metadata: "{}",
		}); err != nil {
			return err
		}
		sender.EscrowedBalance -= transfer.Amount
		receiver.Balance += net
		applied = true
		return nil
	})
	if err != nil {
		return false, mapTxErr(err)
	}
	if applied {
		s.hub.BroadcastBalance(transfer.FromUserID, websocket.BalanceUpdate{
			Balance:  sender.Balance,
			Escrowed: sender.EscrowedBalance,
			Reason:   "transfer_completed",
		})
		s.hub.BroadcastBalance(transfer.ToUserID, websocket.BalanceUpdate{
			Balance:  receiver.Balance,
			Escrowed: receiver.EscrowedBalance,
			Reason:   "transfer_completed",
		})
		s.publisher.PublishTransferUpdated(events.TransferUpdated{
			TransferID:        transferID,
			OldStatus:         models.TransferPending,
			NewStatus:         models.TransferCompleted,
			SenderConfirmed:   true,
			ReceiverConfirmed: true,
			At:                time.Now().UTC(),
		})
	}
	return applied, nil
}

// Cancel lets the sender abandon a still-pending transfer; escrow returns in
// full and no fee is charged.
func (s *TransferService) Cancel(ctx context.Context, transferID, actorID string) (bool, error) {
	applied, err := s.closePending(ctx, transferID, models.TransferCancelled, &actorID)
	return applied, err
}

// ExpireStale returns escrow for every pending transfer past its deadline.
// Per-item transactions: one failure never blocks the rest.
func (s *TransferService) ExpireStale(ctx context.Context) (expired, failed int) {
	stale, err := s.transfers.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("transfer expiry: listing stale transfers failed: %v", err)
		return 0, 0
	}
	for _, transfer := range stale {
		applied, err := s.closePending(ctx, transfer.ID, models.TransferExpired, nil)
		if err != nil {
			failed++
			log.Printf("transfer expiry: closing %s failed: %v", transfer.ID, err)
			continue
		}
		if applied {
			expired++
		}
	}
	if len(stale) > 0 {
		log.Printf("transfer expiry: expired %d of %d stale transfers (%d failed)", expired, len(stale), failed)
	}
	return expired, failed
}

// closePending moves a pending transfer to a closed status and returns the
// escrowed amount to the sender. No fee applies on either path.
func (s *TransferService) closePending(ctx context.Context, transferID, status string, actorID *string) (bool, error) {
	var applied bool
	var sender models.Wallet
	var fromUserID string
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		applied = false
		transfer, err := s.transfers.GetForUpdate(ctx, tx, transferID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTransferNotFound
			}
			return err
		}
		if actorID != nil && *actorID != transfer.FromUserID {
			return ErrNotParticipant
		}
		if transfer.Status != models.TransferPending {
			return nil
		}
		rows, err := s.transfers.MarkClosed(ctx, tx, transferID, status)
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		sender, err = s.wallets.GetForUpdate(ctx, tx, transfer.FromUserID)
		if err != nil {
			return err
		}
		if err := s.wallets.ReleaseEscrow(ctx, tx, transfer.FromUserID, transfer.Amount); err != nil {
			return err
		}
		sender.Balance += transfer.Amount
		sender.EscrowedBalance -= transfer.Amount
		fromUserID = transfer.FromUserID
		applied = true
		return nil
	})
	if err != nil {
		return false, mapTxErr(err)
	}
	if applied {
		s.hub.BroadcastBalance(fromUserID, websocket.BalanceUpdate{
			Balance:  sender.Balance,
			Escrowed: sender.EscrowedBalance,
			Reason:   "transfer_" + status,
		})
		s.publisher.PublishTransferUpdated(events.TransferUpdated{
			TransferID: transferID,
			OldStatus:  models.TransferPending,
			NewStatus:  status,
			At:         time.Now().UTC(),
		})
	}
	return applied, nil
}

// lockTwoWallets acquires both wallet rows in a stable order so concurrent
// transfers between the same pair cannot deadlock.
func lockTwoWallets(ctx context.Context, tx store.Getter, wallets WalletStore, firstID, secondID string) (models.Wallet, models.Wallet, error) {
	leftID, rightID := orderedIDs(firstID, secondID)
	left, err := wallets.GetForUpdate(ctx, tx, leftID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Wallet{}, models.Wallet{}, ErrWalletNotFound
		}
		return models.Wallet{}, models.Wallet{}, err
	}
	right, err := wallets.GetForUpdate(ctx, tx, rightID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Wallet{}, models.Wallet{}, ErrWalletNotFound
		}
		return models.Wallet{}, models.Wallet{}, err
	}
	if firstID == leftID {
		return left, right, nil
	}
	return right, left, nil
}

func orderedIDs(firstID, secondID string) (string, string) {
	if firstID <= secondID {
		return firstID, secondID
	}
	return secondID, firstID
}
