package services

import (
	"context"
	"errors"
	"testing"

	"minetrade/internal/models"
	"minetrade/internal/pricing"
)

func newWalletService(wallets *memWalletStore, oracle PriceOracle) *WalletService {
	return NewWalletService(fakeTxRunner{}, wallets, &memEntryStore{}, &stubAuditStore{}, oracle, &stubHub{})
}

func TestExchangeConvertsThroughReferencePrice(t *testing.T) {
	wallets := newMemWalletStore()
	wallets.set("u1", models.AssetUSDT, 100_000_000_000) // 1000 USDT
	svc := newWalletService(wallets, stubOracle{snapshot: snapshotWith(map[models.Asset]string{
		models.AssetUSDT: "1",
		models.AssetBTC:  "50000",
	})})

	result, err := svc.Exchange(context.Background(), ExchangeRequest{
		UserID:     "u1",
		FromAsset:  models.AssetUSDT,
		ToAsset:    models.AssetBTC,
		AmountFrom: 100_000_000_000,
	})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if result.AmountTo != 2_000_000 { // 0.02 BTC
		t.Fatalf("amount to = %d, want 2000000", result.AmountTo)
	}
	if got := wallets.get("u1", models.AssetUSDT); got != 0 {
		t.Fatalf("usdt balance = %d, want 0", got)
	}
	if got := wallets.get("u1", models.AssetBTC); got != 2_000_000 {
		t.Fatalf("btc balance = %d, want 2000000", got)
	}
}

func TestExchangeInsufficientFunds(t *testing.T) {
	wallets := newMemWalletStore()
	wallets.set("u1", models.AssetUSDT, 500)
	svc := newWalletService(wallets, stubOracle{snapshot: snapshotWith(map[models.Asset]string{
		models.AssetUSDT: "1",
		models.AssetBTC:  "50000",
	})})

	_, err := svc.Exchange(context.Background(), ExchangeRequest{
		UserID:     "u1",
		FromAsset:  models.AssetUSDT,
		ToAsset:    models.AssetBTC,
		AmountFrom: 501,
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if got := wallets.get("u1", models.AssetUSDT); got != 500 {
		t.Fatalf("balance changed on failed exchange: %d", got)
	}
}

func TestExchangeRejectsBadRequests(t *testing.T) {
	wallets := newMemWalletStore()
	wallets.set("u1", models.AssetUSDT, 1_000_000)
	svc := newWalletService(wallets, stubOracle{snapshot: snapshotWith(map[models.Asset]string{
		models.AssetUSDT: "1",
	})})

	cases := []struct {
		name string
		req  ExchangeRequest
		want error
	}{
		{"zero amount", ExchangeRequest{UserID: "u1", FromAsset: models.AssetUSDT, ToAsset: models.AssetBTC, AmountFrom: 0}, ErrInvalidAmount},
		{"negative amount", ExchangeRequest{UserID: "u1", FromAsset: models.AssetUSDT, ToAsset: models.AssetBTC, AmountFrom: -5}, ErrInvalidAmount},
		{"same asset", ExchangeRequest{UserID: "u1", FromAsset: models.AssetUSDT, ToAsset: models.AssetUSDT, AmountFrom: 100}, ErrSameAsset},
		{"unknown asset", ExchangeRequest{UserID: "u1", FromAsset: models.AssetUSDT, ToAsset: models.Asset("DOGE"), AmountFrom: 100}, ErrInvalidAsset},
		{"no price for target", ExchangeRequest{UserID: "u1", FromAsset: models.AssetUSDT, ToAsset: models.AssetBTC, AmountFrom: 100}, ErrPriceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Exchange(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestExchangeRoundTripNeverGains(t *testing.T) {
	wallets := newMemWalletStore()
	start := int64(123_456_789)
	wallets.set("u1", models.AssetUSDT, start)
	svc := newWalletService(wallets, stubOracle{snapshot: snapshotWith(map[models.Asset]string{
		models.AssetUSDT: "1",
		models.AssetETH:  "3333.33",
	})})

	out, err := svc.Exchange(context.Background(), ExchangeRequest{
		UserID: "u1", FromAsset: models.AssetUSDT, ToAsset: models.AssetETH, AmountFrom: start,
	})
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	back, err := svc.Exchange(context.Background(), ExchangeRequest{
		UserID: "u1", FromAsset: models.AssetETH, ToAsset: models.AssetUSDT, AmountFrom: out.AmountTo,
	})
	if err != nil {
		t.Fatalf("back: %v", err)
	}
	if back.AmountTo > start {
		t.Fatalf("round trip gained value: %d > %d", back.AmountTo, start)
	}
}

func TestExchangeSurfacesStalePrice(t *testing.T) {
	wallets := newMemWalletStore()
	wallets.set("u1", models.AssetUSDT, 1_000_000)
	svc := newWalletService(wallets, stubOracle{snapshot: snapshotWithStale(map[models.Asset]string{
		models.AssetUSDT: "1",
		models.AssetTRX:  "0.1",
	}, true)})

	result, err := svc.Exchange(context.Background(), ExchangeRequest{
		UserID: "u1", FromAsset: models.AssetUSDT, ToAsset: models.AssetTRX, AmountFrom: 1_000_000,
	})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if !result.StalePrice {
		t.Fatal("expected stale price flag on result")
	}
}

func TestStateReturnsEveryKnownAsset(t *testing.T) {
	wallets := newMemWalletStore()
	wallets.set("u1", models.AssetBTC, 42)
	svc := newWalletService(wallets, stubOracle{snapshot: pricing.Snapshot{}})

	balances, err := svc.State(context.Background(), "u1")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if len(balances) != len(models.KnownAssets()) {
		t.Fatalf("got %d balances, want %d", len(balances), len(models.KnownAssets()))
	}
	seen := make(map[models.Asset]int64)
	for _, row := range balances {
		seen[row.Asset] = row.Amount
	}
	if seen[models.AssetBTC] != 42 {
		t.Fatalf("btc = %d, want 42", seen[models.AssetBTC])
	}
	if seen[models.AssetETH] != 0 {
		t.Fatalf("eth = %d, want 0", seen[models.AssetETH])
	}
}

func TestDebitRejectsNonPositiveAmounts(t *testing.T) {
	wallets := newMemWalletStore()
	wallets.set("u1", models.AssetUSDT, 100)
	svc := newWalletService(wallets, stubOracle{})

	if _, err := svc.DebitTx(context.Background(), nil, "u1", models.AssetUSDT, 0, "test", "r1"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero debit err = %v, want ErrInvalidAmount", err)
	}
	if _, err := svc.CreditTx(context.Background(), nil, "u1", models.AssetUSDT, -1, "test", "r1"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative credit err = %v, want ErrInvalidAmount", err)
	}
}
