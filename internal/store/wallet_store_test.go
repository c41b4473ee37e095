package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"minetrade/internal/models"
)

func TestWalletStoreEnsureRow(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "ON CONFLICT (user_id, asset) DO NOTHING") {
				t.Fatalf("expected conflict-tolerant insert, got: %s", query)
			}
			if args[0] != "user-1" || args[1] != models.AssetBTC {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	s := NewWalletStore(stubDB{})
	if err := s.EnsureRow(ctx, execer, "user-1", models.AssetBTC); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWalletStoreGetForUpdateLocks(t *testing.T) {
	ctx := context.Background()
	tx := stubTx{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FOR UPDATE") {
				t.Fatalf("expected row lock, got: %s", query)
			}
			row := dest.(*models.WalletBalance)
			row.UserID = args[0].(string)
			row.Asset = args[1].(models.Asset)
			row.Amount = 500
			return nil
		},
	}
	s := NewWalletStore(stubDB{})
	row, err := s.GetForUpdate(ctx, tx, "user-1", models.AssetUSDT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.Amount != 500 || row.Asset != models.AssetUSDT {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestWalletStoreUpdateAmount(t *testing.T) {
	ctx := context.Background()
	var gotAmount int64
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "updated_at = NOW()") {
				t.Fatalf("expected version bump, got: %s", query)
			}
			gotAmount = args[0].(int64)
			return stubResult{rows: 1}, nil
		},
	}
	s := NewWalletStore(stubDB{})
	if err := s.UpdateAmount(ctx, execer, "user-1", models.AssetBTC, 12345); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAmount != 12345 {
		t.Fatalf("unexpected amount: %d", gotAmount)
	}
}
