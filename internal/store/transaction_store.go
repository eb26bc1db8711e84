package store

import (
	"context"
	"fmt"
)

type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

type TransactionInput struct {
	ID          string
	UserID      string
	Type        string
	Status      string
	Amount      int64
	ReferenceID *string
	Metadata    string
}

type transactionRow struct {
	ID          string  `db:"id"`
	UserID      string  `db:"user_id"`
	Type        string  `db:"type"`
	Status      string  `db:"status"`
	Amount      int64   `db:"amount"`
	ReferenceID *string `db:"reference_id"`
	Metadata    string  `db:"metadata"`
	CreatedAt   any     `db:"created_at"`
}

func (s *TransactionStore) Create(ctx context.Context, tx Execer, input TransactionInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, type, status, amount, reference_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, input.ID, input.UserID, input.Type, input.Status, input.Amount, input.ReferenceID, input.Metadata)
	return err
}

func (s *TransactionStore) ListByUser(ctx context.Context, userID, txType string, limit, offset int) ([]map[string]any, error) {
	query := `
		SELECT id, user_id, type, status, amount, reference_id, metadata, created_at
		FROM transactions
		WHERE user_id = $1
	`
	args := []any{userID}
	if txType != "" {
		query += ` AND type = $2`
		args = append(args, txType)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var rows []transactionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return transactionRowsToMaps(rows), nil
}

func (s *TransactionStore) ListAll(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	var rows []transactionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, type, status, amount, reference_id, metadata, created_at
		FROM transactions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return transactionRowsToMaps(rows), nil
}

func transactionRowsToMaps(rows []transactionRow) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		reference := ""
		if row.ReferenceID != nil {
			reference = *row.ReferenceID
		}
		out = append(out, map[string]any{
			"id":           row.ID,
			"user_id":      row.UserID,
			"type":         row.Type,
			"status":       row.Status,
			"amount":       row.Amount,
			"reference_id": reference,
			"metadata":     row.Metadata,
			"created_at":   row.CreatedAt,
		})
	}
	return out
}
