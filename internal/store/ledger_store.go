package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"diamonds/internal/models"

	"github.com/google/uuid"
)

// GenesisHash seeds the chain: the first entry's previous_hash.
const GenesisHash = "GENESIS"

type LedgerStore struct {
	db DB
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

type LedgerAppendInput struct {
	Type       string
	FromUserID *string
	ToUserID   *string
	Amount     int64
	Origin     string
	Reason     string
}

type chainHead struct {
	SequenceNumber int64  `db:"sequence_number"`
	AuditHash      string `db:"audit_hash"`
}

// genesisLockKey serializes first appends through an advisory lock: with no
// head row to lock, two concurrent writers would otherwise both compute
// sequence 1 and collide on the unique index instead of retrying.
const genesisLockKey = 0x6469616d5f6c6564 // "diam_led"

// lockChainHead returns the current chain head locked FOR UPDATE, or nil on
// an empty chain after taking the genesis advisory lock (and re-reading, in
// case another writer appended first).
func lockChainHead(ctx context.Context, tx Tx) (*chainHead, error) {
	const headQuery = `
		SELECT sequence_number, audit_hash
		FROM ledger_entries
		ORDER BY sequence_number DESC
		LIMIT 1
		FOR UPDATE
	`
	var head chainHead
	err := tx.GetContext(ctx, &head, headQuery)
	if err == nil {
		return &head, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(genesisLockKey)); err != nil {
		return nil, err
	}
	err = tx.GetContext(ctx, &head, headQuery)
	if err == nil {
		return &head, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return nil, err
}

// Append writes the next chain entry inside the caller's transaction. It
// reads the current head under lock, links previous_hash to it, and stores
// the canonical hash of the new entry. Concurrent appenders conflict on the
// head row and are retried by the surrounding serializable transaction.
func (s *LedgerStore) Append(ctx context.Context, tx Tx, input LedgerAppendInput) (models.LedgerEntry, error) {
	head, err := lockChainHead(ctx, tx)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	previousHash := GenesisHash
	sequence := int64(1)
	if head != nil {
		previousHash = head.AuditHash
		sequence = head.SequenceNumber + 1
	}

	entry := models.LedgerEntry{
		ID:             uuid.NewString(),
		SequenceNumber: sequence,
		Type:           input.Type,
		FromUserID:     input.FromUserID,
		ToUserID:       input.ToUserID,
		Amount:         input.Amount,
		Origin:         input.Origin,
		Reason:         input.Reason,
		PreviousHash:   previousHash,
		// Truncated to microseconds so the stored timestamptz round-trips
		// into the same hash input.
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	entry.AuditHash = ComputeAuditHash(entry)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, sequence_number, type, from_user_id, to_user_id,
		                            amount, origin, reason, previous_hash, audit_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, entry.ID, entry.SequenceNumber, entry.Type, entry.FromUserID, entry.ToUserID,
		entry.Amount, entry.Origin, entry.Reason, entry.PreviousHash, entry.AuditHash, entry.CreatedAt)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	return entry, nil
}

// ComputeAuditHash hashes the canonical serialization of an entry without its
// audit_hash field. Keys are serialized in lexicographic order (map marshal),
// so the hash is stable regardless of field insertion order.
func ComputeAuditHash(entry models.LedgerEntry) string {
	canonical := map[string]any{
		"amount":          entry.Amount,
		"created_at":      entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		"from_user_id":    derefStringPtr(entry.FromUserID),
		"id":              entry.ID,
		"origin":          entry.Origin,
		"previous_hash":   entry.PreviousHash,
		"reason":          entry.Reason,
		"sequence_number": entry.SequenceNumber,
		"to_user_id":      derefStringPtr(entry.ToUserID),
		"type":            entry.Type,
	}
	payload, _ := json.Marshal(canonical)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (s *LedgerStore) List(ctx context.Context, limit, offset int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, sequence_number, type, from_user_id, to_user_id, amount,
		       origin, reason, previous_hash, audit_hash, created_at
		FROM ledger_entries
		ORDER BY sequence_number DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return entries, err
}

func (s *LedgerStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, sequence_number, type, from_user_id, to_user_id, amount,
		       origin, reason, previous_hash, audit_hash, created_at
		FROM ledger_entries
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY sequence_number DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return entries, err
}

// SupplyDelta derives the circulating supply implied by the chain: earns and
// grants mint, transfer_out removes the gross amount, transfer_in returns the
// net amount (the gap is the burned fee), burns destroy outright.
func (s *LedgerStore) SupplyDelta(ctx context.Context) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(CASE type
			WHEN 'earn' THEN amount
			WHEN 'grant' THEN amount
			WHEN 'transfer_in' THEN amount
			WHEN 'transfer_out' THEN -amount
			WHEN 'burn' THEN -amount
		END), 0)
		FROM ledger_entries
	`)
	return sum, err
}

// VerifyChain walks the full chain in sequence order and checks linkage,
// gaplessness, and that each stored audit_hash matches a recomputation.
func (s *LedgerStore) VerifyChain(ctx context.Context) error {
	const batchSize = 500
	previousHash := GenesisHash
	expectedSequence := int64(1)
	for offset := 0; ; offset += batchSize {
		var entries []models.LedgerEntry
		err := s.db.SelectContext(ctx, &entries, `
			SELECT id, sequence_number, type, from_user_id, to_user_id, amount,
			       origin, reason, previous_hash, audit_hash, created_at
			FROM ledger_entries
			ORDER BY sequence_number ASC
			LIMIT $1 OFFSET $2
		`, batchSize, offset)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		for _, entry := range entries {
			if entry.SequenceNumber != expectedSequence {
				return fmt.Errorf("ledger gap: expected sequence %d, found %d", expectedSequence, entry.SequenceNumber)
			}
			if entry.PreviousHash != previousHash {
				return fmt.Errorf("broken chain at sequence %d: previous_hash mismatch", entry.SequenceNumber)
			}
			if ComputeAuditHash(entry) != entry.AuditHash {
				return fmt.Errorf("tampered entry at sequence %d: audit_hash mismatch", entry.SequenceNumber)
			}
			previousHash = entry.AuditHash
			expectedSequence++
		}
		if len(entries) < batchSize {
			return nil
		}
	}
}

func derefStringPtr(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
