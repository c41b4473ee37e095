package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"minetrade/internal/models"

	"github.com/shopspring/decimal"
)

type miningFixture struct {
	svc     *MiningService
	wallets *memWalletStore
	orders  *memOrderStore
}

// 10-day plan, 2% daily yield, 5% abort fee, bounds 100..100000 USDT.
func newMiningFixture(t *testing.T) *miningFixture {
	t.Helper()
	wallets := newMemWalletStore()
	orders := newMemOrderStore()
	plans := stubPlanStore{plans: map[string]models.MiningPlan{
		"plan-10d": {
			ID:           "plan-10d",
			Name:         "Standard 10 Day",
			CycleDays:    10,
			MinAmount:    10_000_000_000,
			MaxAmount:    10_000_000_000_000,
			DailyRate:    decimal.RequireFromString("0.02"),
			AbortFeeRate: decimal.RequireFromString("0.05"),
		},
	}}
	wallet := NewWalletService(fakeTxRunner{}, wallets, &memEntryStore{}, &stubAuditStore{}, stubOracle{}, &stubHub{})
	svc := NewMiningService(fakeTxRunner{}, orders, plans, wallet, &stubAuditStore{}, &stubHub{})
	return &miningFixture{svc: svc, wallets: wallets, orders: orders}
}

func (f *miningFixture) activeOrder(t *testing.T, userID string, principal int64, activatedAt time.Time) models.MiningOrder {
	t.Helper()
	f.wallets.set(userID, models.ReferenceAsset, principal)
	order, err := f.svc.Create(context.Background(), CreateOrderRequest{
		UserID: userID, PlanID: "plan-10d", Amount: principal,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.svc.now = func() time.Time { return activatedAt }
	order, err = f.svc.Activate(context.Background(), "admin-1", order.ID)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	return order
}

func TestCreateDebitsPrincipalAndOpensPending(t *testing.T) {
	f := newMiningFixture(t)
	f.wallets.set("u1", models.ReferenceAsset, 1_500_000_000_000)

	order, err := f.svc.Create(context.Background(), CreateOrderRequest{
		UserID: "u1", PlanID: "plan-10d", Amount: 1_000_000_000_000,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.Status != models.OrderPending {
		t.Fatalf("status = %s, want pending", order.Status)
	}
	if got := f.wallets.get("u1", models.ReferenceAsset); got != 500_000_000_000 {
		t.Fatalf("balance = %d, want 500000000000", got)
	}
}

func TestCreateEnforcesPlanBounds(t *testing.T) {
	f := newMiningFixture(t)
	f.wallets.set("u1", models.ReferenceAsset, 20_000_000_000_000)

	for _, amount := range []int64{9_999_999_999, 10_000_000_000_001} {
		_, err := f.svc.Create(context.Background(), CreateOrderRequest{
			UserID: "u1", PlanID: "plan-10d", Amount: amount,
		})
		if !errors.Is(err, ErrPlanBounds) {
			t.Fatalf("amount %d: err = %v, want ErrPlanBounds", amount, err)
		}
	}
	if got := f.wallets.get("u1", models.ReferenceAsset); got != 20_000_000_000_000 {
		t.Fatalf("balance changed on rejected create: %d", got)
	}
}

func TestCreateUnknownPlan(t *testing.T) {
	f := newMiningFixture(t)
	f.wallets.set("u1", models.ReferenceAsset, 1_000_000_000_000)

	_, err := f.svc.Create(context.Background(), CreateOrderRequest{
		UserID: "u1", PlanID: "nope", Amount: 1_000_000_000_000,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRejectRefundsFullPrincipal(t *testing.T) {
	f := newMiningFixture(t)
	f.wallets.set("u1", models.ReferenceAsset, 1_000_000_000_000)
	order, err := f.svc.Create(context.Background(), CreateOrderRequest{
		UserID: "u1", PlanID: "plan-10d", Amount: 1_000_000_000_000,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rejected, err := f.svc.Reject(context.Background(), "admin-1", order.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != models.OrderRejected {
		t.Fatalf("status = %s, want rejected", rejected.Status)
	}
	if got := f.wallets.get("u1", models.ReferenceAsset); got != 1_000_000_000_000 {
		t.Fatalf("balance = %d, want full refund 1000000000000", got)
	}
}

// Abort on day 3 of a 10-day, 2%-daily, 5%-fee plan with a 10000 principal:
// two full days of accrual (400) already credited stay, the refund is
// 10000 * 0.95 = 9500.
func TestAbortAppliesFeeAndKeepsCreditedAccrual(t *testing.T) {
	f := newMiningFixture(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	order := f.activeOrder(t, "u1", 1_000_000_000_000, start)

	asOf := start.Add(2*24*time.Hour + 12*time.Hour) // mid-day 3
	applied, err := f.svc.Accrue(context.Background(), order.ID, asOf)
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if applied != 40_000_000_000 { // 2 days * 200 USDT
		t.Fatalf("accrued = %d, want 40000000000", applied)
	}

	f.svc.now = func() time.Time { return asOf }
	aborted, err := f.svc.Abort(context.Background(), "u1", order.ID)
	if err != nil {
		t.Fatalf("abort: %v", err)
	}
	if aborted.Status != models.OrderAborted {
		t.Fatalf("status = %s, want aborted", aborted.Status)
	}
	// 9500 refund + 400 accrual already in the wallet
	if got := f.wallets.get("u1", models.ReferenceAsset); got != 990_000_000_000 {
		t.Fatalf("balance = %d, want 990000000000", got)
	}
}

func TestAbortRequiresOwner(t *testing.T) {
	f := newMiningFixture(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	order := f.activeOrder(t, "u1", 1_000_000_000_000, start)

	_, err := f.svc.Abort(context.Background(), "u2", order.ID)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestAccrueIsIdempotentPerDay(t *testing.T) {
	f := newMiningFixture(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	order := f.activeOrder(t, "u1", 1_000_000_000_000, start)

	asOf := start.Add(3 * 24 * time.Hour)
	first, err := f.svc.Accrue(context.Background(), order.ID, asOf)
	if err != nil {
		t.Fatalf("first accrue: %v", err)
	}
	if first != 60_000_000_000 {
		t.Fatalf("first accrue = %d, want 60000000000", first)
	}
	second, err := f.svc.Accrue(context.Background(), order.ID, asOf)
	if err != nil {
		t.Fatalf("second accrue: %v", err)
	}
	if second != 0 {
		t.Fatalf("second accrue = %d, want 0", second)
	}
	if got := f.wallets.get("u1", models.ReferenceAsset); got != 60_000_000_000 {
		t.Fatalf("balance = %d, want 60000000000", got)
	}
}

func TestAccrueCapsAtCycle(t *testing.T) {
	f := newMiningFixture(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	order := f.activeOrder(t, "u1", 1_000_000_000_000, start)

	// Far past the cycle end: only cycleDays worth accrues.
	applied, err := f.svc.Accrue(context.Background(), order.ID, start.Add(40*24*time.Hour))
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if applied != 200_000_000_000 { // 10 days * 200 USDT
		t.Fatalf("accrued = %d, want 200000000000", applied)
	}
}

// Completing a 10000 USDT order on a 10-day 2%-daily plan pays 12000 in
// total across accrual and final payout.
func TestCompletePaysPrincipalPlusFullYield(t *testing.T) {
	f := newMiningFixture(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	order := f.activeOrder(t, "u1", 1_000_000_000_000, start)

	end := start.Add(10 * 24 * time.Hour)
	if _, err := f.svc.Accrue(context.Background(), order.ID, start.Add(4*24*time.Hour)); err != nil {
		t.Fatalf("mid-cycle accrue: %v", err)
	}
	f.svc.now = func() time.Time { return end }
	completed, err := f.svc.Complete(context.Background(), order.ID, end)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != models.OrderCompleted {
		t.Fatalf("status = %s, want completed", completed.Status)
	}
	if completed.AccruedDays != 10 {
		t.Fatalf("accrued days = %d, want 10", completed.AccruedDays)
	}
	if got := f.wallets.get("u1", models.ReferenceAsset); got != 1_200_000_000_000 {
		t.Fatalf("balance = %d, want 1200000000000", got)
	}
}

func TestCompleteBeforeCycleEnds(t *testing.T) {
	f := newMiningFixture(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	order := f.activeOrder(t, "u1", 1_000_000_000_000, start)

	_, err := f.svc.Complete(context.Background(), order.ID, start.Add(9*24*time.Hour))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestTerminalOrdersAcceptNoTransitions(t *testing.T) {
	f := newMiningFixture(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	order := f.activeOrder(t, "u1", 1_000_000_000_000, start)
	end := start.Add(10 * 24 * time.Hour)
	f.svc.now = func() time.Time { return end }
	if _, err := f.svc.Complete(context.Background(), order.ID, end); err != nil {
		t.Fatalf("complete: %v", err)
	}

	ctx := context.Background()
	if _, err := f.svc.Activate(ctx, "admin-1", order.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("activate on terminal: %v", err)
	}
	if _, err := f.svc.Reject(ctx, "admin-1", order.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("reject on terminal: %v", err)
	}
	if _, err := f.svc.Abort(ctx, "u1", order.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("abort on terminal: %v", err)
	}
	if _, err := f.svc.Accrue(ctx, order.ID, end); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("accrue on terminal: %v", err)
	}
	if _, err := f.svc.Complete(ctx, order.ID, end); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second complete: %v", err)
	}
}

func TestAccrueDueSweepCompletesExpiredOrders(t *testing.T) {
	f := newMiningFixture(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	expired := f.activeOrder(t, "u1", 1_000_000_000_000, start)
	running := f.activeOrder(t, "u2", 1_000_000_000_000, start.Add(8*24*time.Hour))

	asOf := start.Add(10 * 24 * time.Hour)
	f.svc.now = func() time.Time { return asOf }
	completed, err := f.svc.AccrueDue(context.Background(), asOf)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if completed != 1 {
		t.Fatalf("completed = %d, want 1", completed)
	}
	got, err := f.orders.GetByID(context.Background(), expired.ID)
	if err != nil {
		t.Fatalf("get expired: %v", err)
	}
	if got.Status != models.OrderCompleted {
		t.Fatalf("expired order status = %s, want completed", got.Status)
	}
	got, err = f.orders.GetByID(context.Background(), running.ID)
	if err != nil {
		t.Fatalf("get running: %v", err)
	}
	if got.Status != models.OrderActive {
		t.Fatalf("running order status = %s, want active", got.Status)
	}
	// u2 is 2 days in: sweep credited those days without closing.
	if balance := f.wallets.get("u2", models.ReferenceAsset); balance != 40_000_000_000 {
		t.Fatalf("u2 balance = %d, want 40000000000", balance)
	}
}
