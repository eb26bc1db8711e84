package store

import (
	"context"
	"time"

	"diamonds/internal/models"
)

type TransferStore struct {
	db DB
}

func NewTransferStore(db DB) *TransferStore {
	return &TransferStore{db: db}
}

type TransferInput struct {
	ID         string
	FromUserID string
	ToUserID   string
	Amount     int64
	FeeBurned  int64
	ExpiresAt  time.Time
}

const transferColumns = `id, from_user_id, to_user_id, amount, fee_burned, status,
	sender_confirmed, receiver_confirmed, expires_at, created_at, completed_at`

func (s *TransferStore) Create(ctx context.Context, tx Execer, input TransferInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transfers (id, from_user_id, to_user_id, amount, fee_burned, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, input.ID, input.FromUserID, input.ToUserID, input.Amount, input.FeeBurned,
		models.TransferPending, input.ExpiresAt)
	return err
}

func (s *TransferStore) GetByID(ctx context.Context, transferID string) (models.Transfer, error) {
	var transfer models.Transfer
	err := s.db.GetContext(ctx, &transfer, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE id = $1
	`, transferID)
	return transfer, err
}

func (s *TransferStore) GetForUpdate(ctx context.Context, tx Getter, transferID string) (models.Transfer, error) {
	var transfer models.Transfer
	err := tx.GetContext(ctx, &transfer, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE id = $1
		FOR UPDATE
	`, transferID)
	return transfer, err
}

// SetConfirmed flips one party's confirmation flag on a still-pending
// transfer. Returns rows affected.
func (s *TransferStore) SetConfirmed(ctx context.Context, tx Execer, transferID string, sender bool) (int64, error) {
	column := "receiver_confirmed"
	if sender {
		column = "sender_confirmed"
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE transfers
		SET `+column+` = TRUE
		WHERE id = $1 AND status = $2
	`, transferID, models.TransferPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkCompleted is the double-fire guard for settlement: only the first
// caller moves pending to completed.
func (s *TransferStore) MarkCompleted(ctx context.Context, tx Execer, transferID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE transfers
		SET status = $1, completed_at = NOW()
		WHERE id = $2 AND status = $3
	`, models.TransferCompleted, transferID, models.TransferPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkClosed moves a pending transfer to expired or cancelled.
func (s *TransferStore) MarkClosed(ctx context.Context, tx Execer, transferID, status string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE transfers
		SET status = $1
		WHERE id = $2 AND status = $3
	`, status, transferID, models.TransferPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListExpired returns pending transfers past their deadline.
func (s *TransferStore) ListExpired(ctx context.Context, now time.Time) ([]models.Transfer, error) {
	var transfers []models.Transfer
	err := s.db.SelectContext(ctx, &transfers, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at
	`, models.TransferPending, now)
	return transfers, err
}

func (s *TransferStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transfer, error) {
	var transfers []models.Transfer
	err := s.db.SelectContext(ctx, &transfers, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return transfers, err
}
