package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"diamonds/internal/models"
)

func TestUserStoreCreate(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO users") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 4 || args[0] != "user-1" || args[1] != "alice" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewUserStore(stubDB{})
	if err := store.Create(ctx, execer, "user-1", "alice", "alice@example.com", "hash"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUserStoreGetByEmail(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "WHERE email = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			if !strings.Contains(query, "phone_verified") {
				t.Fatalf("expected phone_verified in projection: %s", query)
			}
			if len(args) != 1 || args[0] != "alice@example.com" {
				t.Fatalf("unexpected args: %#v", args)
			}
			user := dest.(*models.User)
			*user = models.User{ID: "user-1", PhoneVerified: true}
			return nil
		},
	})
	user, err := store.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-1" || !user.PhoneVerified {
		t.Fatalf("unexpected user: %#v", user)
	}
}

func TestUserStoreIsPhoneVerified(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "SELECT phone_verified") {
				t.Fatalf("unexpected query: %s", query)
			}
			if args[0] != "user-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*bool) = true
			return nil
		},
	})
	verified, err := store.IsPhoneVerified(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verified {
		t.Fatal("expected verified true")
	}
}

func TestUserStoreSetPhoneVerifiedOnce(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{})
	calls := 0
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "phone_verified = FALSE") {
				t.Fatalf("expected unverified precondition: %s", query)
			}
			calls++
			if calls == 1 {
				return stubResult{rows: 1}, nil
			}
			return stubResult{rows: 0}, nil
		},
	}
	applied, err := store.SetPhoneVerified(ctx, execer, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !applied {
		t.Fatal("expected first verification to apply")
	}
	applied, err = store.SetPhoneVerified(ctx, execer, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied {
		t.Fatal("expected repeat verification to be a no-op")
	}
}
