package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"minetrade/internal/db"
	"minetrade/internal/metrics"
	"minetrade/internal/models"
	"minetrade/internal/money"
	"minetrade/internal/store"
	"minetrade/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type OrderStore interface {
	Create(ctx context.Context, tx store.Execer, input store.OrderInput) error
	GetByID(ctx context.Context, orderID string) (models.MiningOrder, error)
	GetForUpdate(ctx context.Context, tx store.Tx, orderID string) (models.MiningOrder, error)
	Activate(ctx context.Context, tx store.Execer, orderID string, at time.Time) error
	Close(ctx context.Context, tx store.Execer, orderID string, status models.OrderStatus, at time.Time) error
	UpdateAccrual(ctx context.Context, tx store.Execer, orderID string, accruedDays int, accruedTotal int64) error
	ListActiveIDs(ctx context.Context) ([]string, error)
}

type PlanStore interface {
	GetByID(ctx context.Context, planID string) (models.MiningPlan, error)
}

// WalletTxLedger is the slice of WalletService the order lifecycle needs:
// balance moves executed inside the order's own transaction.
type WalletTxLedger interface {
	CreditTx(ctx context.Context, tx *sqlx.Tx, userID string, asset models.Asset, amount int64, reason, refID string) (int64, error)
	DebitTx(ctx context.Context, tx *sqlx.Tx, userID string, asset models.Asset, amount int64, reason, refID string) (int64, error)
}

// MiningService runs the order state machine:
//
//	pending -> active -> completed (cycle elapsed)
//	pending -> rejected (admin, full refund)
//	active  -> aborted  (user, fee on principal, partial-day accrual forfeit)
//
// Terminal states accept no further transitions. Every transition locks the
// order row first, then the owner's reference-asset wallet row, so order
// operations for one user serialize with wallet operations.
type MiningService struct {
	txRunner db.TxRunner
	orders   OrderStore
	plans    PlanStore
	wallet   WalletTxLedger
	audit    AuditStore
	hub      BalanceHub
	now      func() time.Time
}

func NewMiningService(txRunner db.TxRunner, orders OrderStore, plans PlanStore, wallet WalletTxLedger, audit AuditStore, hub BalanceHub) *MiningService {
	return &MiningService{
		txRunner: txRunner,
		orders:   orders,
		plans:    plans,
		wallet:   wallet,
		audit:    audit,
		hub:      hub,
		now:      time.Now,
	}
}

type CreateOrderRequest struct {
	UserID string
	PlanID string
	Amount int64
	Note   *string
}

// Create debits the principal and inserts the pending order as one atomic
// unit. If the debit fails the order is never created.
func (s *MiningService) Create(ctx context.Context, req CreateOrderRequest) (models.MiningOrder, error) {
	if req.Amount <= 0 {
		return models.MiningOrder{}, ErrInvalidAmount
	}
	plan, err := s.plans.GetByID(ctx, req.PlanID)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.MiningOrder{}, ErrNotFound
		}
		return models.MiningOrder{}, err
	}
	if req.Amount < plan.MinAmount || req.Amount > plan.MaxAmount {
		return models.MiningOrder{}, ErrPlanBounds
	}

	orderID := uuid.NewString()
	var balanceAfter int64
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		after, err := s.wallet.DebitTx(ctx, tx, req.UserID, models.ReferenceAsset, req.Amount, "order_create", orderID)
		if err != nil {
			return err
		}
		balanceAfter = after
		if err := s.orders.Create(ctx, tx, store.OrderInput{
			ID:        orderID,
			UserID:    req.UserID,
			PlanID:    req.PlanID,
			Principal: req.Amount,
			Note:      req.Note,
		}); err != nil {
			return mapStoreError(err)
		}
		data, _ := json.Marshal(map[string]any{
			"plan_id":   req.PlanID,
			"principal": req.Amount,
		})
		return s.audit.Log(ctx, tx, req.UserID, "order_create", "mining_order", orderID, string(data))
	})
	if err != nil {
		return models.MiningOrder{}, mapTxError(err)
	}
	metrics.OrdersCreated.Inc()
	s.broadcast(req.UserID, balanceAfter)
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return models.MiningOrder{}, err
	}
	return order, nil
}

// Activate moves a pending order to active. Admin-only; the handler layer
// enforces the role, this layer enforces the state machine.
func (s *MiningService) Activate(ctx context.Context, actorID, orderID string) (models.MiningOrder, error) {
	var updated models.MiningOrder
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		order, err := s.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return mapStoreError(err)
		}
		if order.Status != models.OrderPending {
			return ErrInvalidTransition
		}
		activatedAt := s.now()
		if err := s.orders.Activate(ctx, tx, orderID, activatedAt); err != nil {
			return err
		}
		order.Status = models.OrderActive
		order.ActivatedAt = &activatedAt
		updated = order
		data, _ := json.Marshal(map[string]string{"order_id": orderID})
		return s.audit.Log(ctx, tx, actorID, "order_activate", "mining_order", orderID, string(data))
	})
	if err != nil {
		return models.MiningOrder{}, mapTxError(err)
	}
	return updated, nil
}

// Reject refunds the full principal and closes the order. Rejection is
// always fee-free.
func (s *MiningService) Reject(ctx context.Context, actorID, orderID string) (models.MiningOrder, error) {
	var updated models.MiningOrder
	var ownerID string
	var balanceAfter int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		order, err := s.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return mapStoreError(err)
		}
		if order.Status != models.OrderPending {
			return ErrInvalidTransition
		}
		after, err := s.wallet.CreditTx(ctx, tx, order.UserID, models.ReferenceAsset, order.Principal, "order_reject", orderID)
		if err != nil {
			return err
		}
		balanceAfter = after
		ownerID = order.UserID
		closedAt := s.now()
		if err := s.orders.Close(ctx, tx, orderID, models.OrderRejected, closedAt); err != nil {
			return err
		}
		order.Status = models.OrderRejected
		order.ClosedAt = &closedAt
		updated = order
		data, _ := json.Marshal(map[string]any{"refund": order.Principal})
		return s.audit.Log(ctx, tx, actorID, "order_reject", "mining_order", orderID, string(data))
	})
	if err != nil {
		return models.MiningOrder{}, mapTxError(err)
	}
	metrics.OrdersClosed.WithLabelValues(string(models.OrderRejected)).Inc()
	s.broadcast(ownerID, balanceAfter)
	return updated, nil
}

// Abort closes an active order at the owner's request. The refund is the
// principal less the plan's abort fee; accrual already credited for full
// days stays with the user, the current partial day is forfeited.
func (s *MiningService) Abort(ctx context.Context, userID, orderID string) (models.MiningOrder, error) {
	var updated models.MiningOrder
	var balanceAfter int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		order, err := s.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return mapStoreError(err)
		}
		if order.UserID != userID {
			return ErrUnauthorized
		}
		if order.Status != models.OrderActive {
			return ErrInvalidTransition
		}
		plan, err := s.plans.GetByID(ctx, order.PlanID)
		if err != nil {
			return mapStoreError(err)
		}
		refundRate := decimal.NewFromInt(1).Sub(plan.AbortFeeRate)
		refund := money.ApplyRate(order.Principal, refundRate)
		if refund > 0 {
			after, err := s.wallet.CreditTx(ctx, tx, order.UserID, models.ReferenceAsset, refund, "order_abort", orderID)
			if err != nil {
				return err
			}
			balanceAfter = after
		}
		closedAt := s.now()
		if err := s.orders.Close(ctx, tx, orderID, models.OrderAborted, closedAt); err != nil {
			return err
		}
		order.Status = models.OrderAborted
		order.ClosedAt = &closedAt
		updated = order
		data, _ := json.Marshal(map[string]any{
			"refund":   refund,
			"fee_rate": plan.AbortFeeRate.String(),
		})
		return s.audit.Log(ctx, tx, userID, "order_abort", "mining_order", orderID, string(data))
	})
	if err != nil {
		return models.MiningOrder{}, mapTxError(err)
	}
	metrics.OrdersClosed.WithLabelValues(string(models.OrderAborted)).Inc()
	s.broadcast(userID, balanceAfter)
	return updated, nil
}

// Accrue credits daily yield for every full day elapsed since activation
// that has not been credited yet, capped at the plan cycle. Recomputing for
// an already-credited day index is a no-op, never a double credit.
func (s *MiningService) Accrue(ctx context.Context, orderID string, asOf time.Time) (int64, error) {
	var applied int64
	var ownerID string
	var balanceAfter int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		applied = 0
		order, err := s.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return mapStoreError(err)
		}
		if order.Status != models.OrderActive {
			return ErrInvalidTransition
		}
		plan, err := s.plans.GetByID(ctx, order.PlanID)
		if err != nil {
			return mapStoreError(err)
		}
		elapsed := elapsedDays(order.ActivatedAt, asOf, plan.CycleDays)
		newDays := elapsed - order.AccruedDays
		if newDays <= 0 {
			return nil
		}
		perDay := money.ApplyRate(order.Principal, plan.DailyRate)
		delta := int64(newDays) * perDay
		if delta > 0 {
			after, err := s.wallet.CreditTx(ctx, tx, order.UserID, models.ReferenceAsset, delta, "accrual", orderID)
			if err != nil {
				return err
			}
			balanceAfter = after
			ownerID = order.UserID
		}
		if err := s.orders.UpdateAccrual(ctx, tx, orderID, elapsed, order.AccruedTotal+delta); err != nil {
			return err
		}
		applied = delta
		data, _ := json.Marshal(map[string]any{
			"days_credited": newDays,
			"amount":        delta,
		})
		return s.audit.Log(ctx, tx, order.UserID, "order_accrue", "mining_order", orderID, string(data))
	})
	if err != nil {
		return 0, mapTxError(err)
	}
	if applied > 0 {
		metrics.AccrualsApplied.Inc()
		s.broadcast(ownerID, balanceAfter)
	}
	return applied, nil
}

// Complete pays out the principal plus any accrual not yet credited and
// closes the order. Only permitted once the full cycle has elapsed.
func (s *MiningService) Complete(ctx context.Context, orderID string, asOf time.Time) (models.MiningOrder, error) {
	var updated models.MiningOrder
	var ownerID string
	var balanceAfter int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		order, err := s.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return mapStoreError(err)
		}
		if order.Status != models.OrderActive {
			return ErrInvalidTransition
		}
		plan, err := s.plans.GetByID(ctx, order.PlanID)
		if err != nil {
			return mapStoreError(err)
		}
		elapsed := elapsedDays(order.ActivatedAt, asOf, plan.CycleDays)
		if elapsed < plan.CycleDays {
			return ErrInvalidTransition
		}
		perDay := money.ApplyRate(order.Principal, plan.DailyRate)
		remainingDays := plan.CycleDays - order.AccruedDays
		payout := order.Principal
		if remainingDays > 0 {
			payout += int64(remainingDays) * perDay
		}
		after, err := s.wallet.CreditTx(ctx, tx, order.UserID, models.ReferenceAsset, payout, "order_complete", orderID)
		if err != nil {
			return err
		}
		balanceAfter = after
		ownerID = order.UserID
		accruedTotal := order.AccruedTotal + int64(remainingDays)*perDay
		if err := s.orders.UpdateAccrual(ctx, tx, orderID, plan.CycleDays, accruedTotal); err != nil {
			return err
		}
		closedAt := s.now()
		if err := s.orders.Close(ctx, tx, orderID, models.OrderCompleted, closedAt); err != nil {
			return err
		}
		order.Status = models.OrderCompleted
		order.AccruedDays = plan.CycleDays
		order.AccruedTotal = accruedTotal
		order.ClosedAt = &closedAt
		updated = order
		data, _ := json.Marshal(map[string]any{
			"payout":        payout,
			"accrued_total": accruedTotal,
		})
		return s.audit.Log(ctx, tx, order.UserID, "order_complete", "mining_order", orderID, string(data))
	})
	if err != nil {
		return models.MiningOrder{}, mapTxError(err)
	}
	metrics.OrdersClosed.WithLabelValues(string(models.OrderCompleted)).Inc()
	s.broadcast(ownerID, balanceAfter)
	return updated, nil
}

// AccrueDue sweeps the active orders: credits due accrual and completes
// orders whose cycle has elapsed. A failing order is logged and skipped so
// one bad row cannot stall the sweep.
func (s *MiningService) AccrueDue(ctx context.Context, asOf time.Time) (int, error) {
	ids, err := s.orders.ListActiveIDs(ctx)
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, orderID := range ids {
		if _, err := s.Accrue(ctx, orderID, asOf); err != nil && err != ErrInvalidTransition {
			log.Printf("accrue %s: %v", orderID, err)
			continue
		}
		_, err := s.Complete(ctx, orderID, asOf)
		if err == nil {
			completed++
			continue
		}
		if err != ErrInvalidTransition {
			log.Printf("complete %s: %v", orderID, err)
		}
	}
	return completed, nil
}

func (s *MiningService) broadcast(userID string, balance int64) {
	if s.hub == nil || userID == "" {
		return
	}
	s.hub.BroadcastBalance(userID, websocket.BalanceUpdate{
		Asset:   string(models.ReferenceAsset),
		Balance: money.FormatMinor(balance),
	})
}

// elapsedDays counts full days between activation and asOf, capped at the
// plan cycle. Orders not yet activated have zero elapsed days.
func elapsedDays(activatedAt *time.Time, asOf time.Time, cycleDays int) int {
	if activatedAt == nil {
		return 0
	}
	elapsed := int(asOf.Sub(*activatedAt) / (24 * time.Hour))
	if elapsed < 0 {
		return 0
	}
	if elapsed > cycleDays {
		return cycleDays
	}
	return elapsed
}
