package services

import (
	"context"
	"errors"
	"testing"

	"minetrade/internal/models"
)

func newTopupFixture() (*TopupService, *memWalletStore, *memTopupStore) {
	wallets := newMemWalletStore()
	topups := &memTopupStore{}
	wallet := NewWalletService(fakeTxRunner{}, wallets, &memEntryStore{}, &stubAuditStore{}, stubOracle{}, &stubHub{})
	svc := NewTopupService(fakeTxRunner{}, topups, wallet, &stubAuditStore{}, &stubHub{})
	return svc, wallets, topups
}

func TestTopupCreditsWallet(t *testing.T) {
	svc, wallets, _ := newTopupFixture()

	result, err := svc.Record(context.Background(), TopupRequest{
		AdminID: "admin-1",
		UserID:  "u1",
		Asset:   models.AssetUSDT,
		Amount:  25_000_000_000,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if result.Duplicate {
		t.Fatal("fresh topup flagged duplicate")
	}
	if result.Balance != 25_000_000_000 {
		t.Fatalf("balance = %d, want 25000000000", result.Balance)
	}
	if got := wallets.get("u1", models.AssetUSDT); got != 25_000_000_000 {
		t.Fatalf("wallet = %d, want 25000000000", got)
	}
}

func TestTopupDuplicateKeyCreditsOnce(t *testing.T) {
	svc, wallets, topups := newTopupFixture()
	req := TopupRequest{
		AdminID:         "admin-1",
		UserID:          "u1",
		Asset:           models.AssetUSDT,
		Amount:          10_000_000_000,
		ClientRequestID: stringPtr("req-abc"),
	}

	first, err := svc.Record(context.Background(), req)
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	second, err := svc.Record(context.Background(), req)
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("replay not flagged duplicate")
	}
	if second.Record.ID != first.Record.ID {
		t.Fatalf("replay returned a different record: %s vs %s", second.Record.ID, first.Record.ID)
	}
	if got := wallets.get("u1", models.AssetUSDT); got != 10_000_000_000 {
		t.Fatalf("wallet = %d, want single credit 10000000000", got)
	}
	if len(topups.records) != 1 {
		t.Fatalf("journal rows = %d, want 1", len(topups.records))
	}
}

func TestTopupRejectsBadInput(t *testing.T) {
	svc, _, _ := newTopupFixture()

	cases := []struct {
		name string
		req  TopupRequest
		want error
	}{
		{"zero amount", TopupRequest{AdminID: "a", UserID: "u1", Asset: models.AssetUSDT, Amount: 0}, ErrInvalidAmount},
		{"negative amount", TopupRequest{AdminID: "a", UserID: "u1", Asset: models.AssetUSDT, Amount: -1}, ErrInvalidAmount},
		{"unknown asset", TopupRequest{AdminID: "a", UserID: "u1", Asset: models.Asset("XRP"), Amount: 100}, ErrInvalidAsset},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Record(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

// A lost response followed by a retry hits the unique index rather than the
// pre-check when both inserts race. The service must still resolve to the
// original record.
func TestTopupUniqueViolationResolvesToOriginal(t *testing.T) {
	svc, wallets, topups := newTopupFixture()
	key := "req-race"

	// Seed the journal as if a concurrent request already won the insert,
	// then have the pre-check miss so the insert itself collides.
	if _, err := svc.Record(context.Background(), TopupRequest{
		AdminID:         "admin-2",
		UserID:          "u1",
		Asset:           models.AssetUSDT,
		Amount:          10_000_000_000,
		ClientRequestID: stringPtr(key),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	topups.missNextLookup = true

	result, err := svc.Record(context.Background(), TopupRequest{
		AdminID:         "admin-1",
		UserID:          "u1",
		Asset:           models.AssetUSDT,
		Amount:          10_000_000_000,
		ClientRequestID: stringPtr(key),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !result.Duplicate {
		t.Fatal("raced replay not flagged duplicate")
	}
	if got := wallets.get("u1", models.AssetUSDT); got != 10_000_000_000 {
		t.Fatalf("wallet = %d, raced replay must not credit again", got)
	}
}
