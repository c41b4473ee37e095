package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"minetrade/internal/models"
)

func TestTopupStoreInsert(t *testing.T) {
	ctx := context.Background()
	key := "req-1"
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO topup_records") {
				t.Fatalf("unexpected query: %s", query)
			}
			if args[6] != &key {
				t.Fatalf("expected client request key to be passed through")
			}
			return stubResult{rows: 1}, nil
		},
	}
	s := NewTopupStore(stubDB{})
	err := s.Insert(ctx, execer, TopupInput{
		ID: "topup-1", UserID: "user-1", AdminID: "admin-1",
		Asset: models.AssetUSDT, Amount: 50_000_000_000, ClientRequestID: &key,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTopupStoreGetByRequestKeyMiss(t *testing.T) {
	s := NewTopupStore(stubDB{
		getFn: func(context.Context, any, string, ...any) error {
			return sql.ErrNoRows
		},
	})
	_, found, err := s.GetByRequestKey(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatalf("expected not found")
	}
}

func TestTopupStoreGetByRequestKeyHit(t *testing.T) {
	s := NewTopupStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "client_request_id = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			row := dest.(*models.TopupRecord)
			row.ID = "topup-1"
			row.Amount = 100
			return nil
		},
	})
	record, found, err := s.GetByRequestKey(context.Background(), "req-1")
	if err != nil || !found {
		t.Fatalf("expected hit, got found=%v err=%v", found, err)
	}
	if record.ID != "topup-1" {
		t.Fatalf("unexpected record: %+v", record)
	}
}
