package store

import (
	"context"
	"time"

	"diamonds/internal/models"

	"github.com/lib/pq"
)

type GrantStore struct {
	db DB
}

func NewGrantStore(db DB) *GrantStore {
	return &GrantStore{db: db}
}

type GrantInput struct {
	ID                string
	TargetUserID      string
	Amount            int64
	Reason            string
	Status            string
	CoolingPeriodEnds *time.Time
	CreatedBy         string
}

type grantRow struct {
	ID                string         `db:"id"`
	TargetUserID      string         `db:"target_user_id"`
	Amount            int64          `db:"amount"`
	Reason            string         `db:"reason"`
	Status            string         `db:"status"`
	Approvals         pq.StringArray `db:"approvals"`
	CoolingPeriodEnds *time.Time     `db:"cooling_period_ends"`
	CreatedBy         string         `db:"created_by"`
	CreatedAt         time.Time      `db:"created_at"`
	ExecutedAt        *time.Time     `db:"executed_at"`
}

func (r grantRow) toModel() models.GrantRequest {
	return models.GrantRequest{
		ID:                r.ID,
		TargetUserID:      r.TargetUserID,
		Amount:            r.Amount,
		Reason:            r.Reason,
		Status:            r.Status,
		Approvals:         []string(r.Approvals),
		CoolingPeriodEnds: r.CoolingPeriodEnds,
		CreatedBy:         r.CreatedBy,
		CreatedAt:         r.CreatedAt,
		ExecutedAt:        r.ExecutedAt,
	}
}

const grantColumns = `id, target_user_id, amount, reason, status, approvals, cooling_period_ends, created_by, created_at, executed_at`

func (s *GrantStore) Create(ctx context.Context, tx Execer, input GrantInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO grant_requests (id, target_user_id, amount, reason, status, approvals, cooling_period_ends, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, input.ID, input.TargetUserID, input.Amount, input.Reason, input.Status,
		pq.StringArray{}, input.CoolingPeriodEnds, input.CreatedBy)
	return err
}

func (s *GrantStore) GetByID(ctx context.Context, grantID string) (models.GrantRequest, error) {
	var row grantRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+grantColumns+`
		FROM grant_requests
		WHERE id = $1
	`, grantID)
	if err != nil {
		return models.GrantRequest{}, err
	}
	return row.toModel(), nil
}

func (s *GrantStore) GetForUpdate(ctx context.Context, tx Getter, grantID string) (models.GrantRequest, error) {
	var row grantRow
	err := tx.GetContext(ctx, &row, `
		SELECT `+grantColumns+`
		FROM grant_requests
		WHERE id = $1
		FOR UPDATE
	`, grantID)
	if err != nil {
		return models.GrantRequest{}, err
	}
	return row.toModel(), nil
}

// AddApproval appends a distinct admin approval to a pending request.
// Returns 0 rows when the admin already approved or the request left
// pending_approval.
func (s *GrantStore) AddApproval(ctx context.Context, tx Execer, grantID, adminID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE grant_requests
		SET approvals = array_append(approvals, $1)
		WHERE id = $2
		  AND status = $3
		  AND NOT ($1 = ANY(approvals))
	`, adminID, grantID, models.GrantPendingApproval)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateStatus transitions status only when the current status matches the
// precondition. Returns rows affected so callers can detect a lost race.
func (s *GrantStore) UpdateStatus(ctx context.Context, tx Execer, grantID, fromStatus, toStatus string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE grant_requests
		SET status = $1
		WHERE id = $2 AND status = $3
	`, toStatus, grantID, fromStatus)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkExecuted is the idempotency guard for grant execution: only one caller
// can move an approved or due cooling-period request to executed.
func (s *GrantStore) MarkExecuted(ctx context.Context, tx Execer, grantID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE grant_requests
		SET status = $1, executed_at = NOW()
		WHERE id = $2 AND status IN ($3, $4)
	`, models.GrantExecuted, grantID, models.GrantApproved, models.GrantCoolingPeriod)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Reject moves any non-terminal request to rejected.
func (s *GrantStore) Reject(ctx context.Context, tx Execer, grantID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE grant_requests
		SET status = $1
		WHERE id = $2 AND status IN ($3, $4, $5)
	`, models.GrantRejected, grantID,
		models.GrantPendingApproval, models.GrantApproved, models.GrantCoolingPeriod)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListDueCooling returns cooling-period requests whose deadline has passed.
func (s *GrantStore) ListDueCooling(ctx context.Context, now time.Time) ([]models.GrantRequest, error) {
	var rows []grantRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+grantColumns+`
		FROM grant_requests
		WHERE status = $1 AND cooling_period_ends < $2
		ORDER BY cooling_period_ends
	`, models.GrantCoolingPeriod, now)
	if err != nil {
		return nil, err
	}
	grants := make([]models.GrantRequest, 0, len(rows))
	for _, row := range rows {
		grants = append(grants, row.toModel())
	}
	return grants, nil
}

func (s *GrantStore) ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.GrantRequest, error) {
	var rows []grantRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+grantColumns+`
		FROM grant_requests
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	grants := make([]models.GrantRequest, 0, len(rows))
	for _, row := range rows {
		grants = append(grants, row.toModel())
	}
	return grants, nil
}
