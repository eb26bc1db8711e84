package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
)

func TestTransactionStoreCreate(t *testing.T) {
	ctx := context.Background()
	reference := "transfer-1"
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO transactions") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 7 || args[2] != "transfer_out" || args[5] != &reference {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewTransactionStore(stubDB{})
	err := store.Create(ctx, execer, TransactionInput{
		ID:          "txn-1",
		UserID:      "alice",
		Type:        "transfer_out",
		Status:      "completed",
		Amount:      1000,
		ReferenceID: &reference,
		Metadata:    "{}",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransactionStoreListByUserFiltersByType(t *testing.T) {
	ctx := context.Background()
	store := NewTransactionStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "AND type = $2") {
				t.Fatalf("expected type filter: %s", query)
			}
			if args[0] != "alice" || args[1] != "grant" || args[2] != 50 || args[3] != 0 {
				t.Fatalf("unexpected args: %#v", args)
			}
			rows := dest.(*[]transactionRow)
			*rows = []transactionRow{{ID: "txn-1", UserID: "alice", Type: "grant", Amount: 5000}}
			return nil
		},
	})
	txns, err := store.ListByUser(ctx, "alice", "grant", 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txns) != 1 || txns[0]["type"] != "grant" {
		t.Fatalf("unexpected transactions: %#v", txns)
	}
	if txns[0]["reference_id"] != "" {
		t.Fatalf("expected empty reference for nil pointer, got %#v", txns[0])
	}
}

func TestTransactionStoreListByUserNoTypeFilter(t *testing.T) {
	ctx := context.Background()
	store := NewTransactionStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if strings.Contains(query, "AND type") {
				t.Fatalf("unexpected type filter: %s", query)
			}
			if !strings.Contains(query, "LIMIT $2 OFFSET $3") {
				t.Fatalf("unexpected pagination placeholders: %s", query)
			}
			return nil
		},
	})
	if _, err := store.ListByUser(ctx, "alice", "", 50, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
