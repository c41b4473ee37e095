package services

import (
	"context"

	"minetrade/internal/models"
)

// Actor is the resolved identity of the caller, with the role claim
// verified upstream. This layer trusts the claim as given and never
// re-parses transport-level credentials.
type Actor struct {
	ID   string
	Role string
}

func (a Actor) isAdministrator() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleSubAdmin
}

type MiningManager interface {
	Activate(ctx context.Context, actorID, orderID string) (models.MiningOrder, error)
	Reject(ctx context.Context, actorID, orderID string) (models.MiningOrder, error)
}

type OrderReader interface {
	GetByID(ctx context.Context, orderID string) (models.MiningOrder, error)
}

type TopupJournal interface {
	Record(ctx context.Context, req TopupRequest) (TopupResult, error)
}

// ApprovalService is the thin workflow in front of administrator actions.
// It checks the role claim and makes approve/reject idempotent: acting on a
// target that already left pending is reported as success with the current
// state, so a retried request from an unreliable client does no harm.
type ApprovalService struct {
	mining MiningManager
	orders OrderReader
	topups TopupJournal
}

func NewApprovalService(mining MiningManager, orders OrderReader, topups TopupJournal) *ApprovalService {
	return &ApprovalService{
		mining: mining,
		orders: orders,
		topups: topups,
	}
}

func (s *ApprovalService) ApproveOrder(ctx context.Context, actor Actor, orderID string) (models.MiningOrder, error) {
	if !actor.isAdministrator() {
		return models.MiningOrder{}, ErrUnauthorized
	}
	order, err := s.mining.Activate(ctx, actor.ID, orderID)
	if err == ErrInvalidTransition {
		return s.currentIfSettled(ctx, orderID, err)
	}
	return order, err
}

func (s *ApprovalService) RejectOrder(ctx context.Context, actor Actor, orderID string) (models.MiningOrder, error) {
	if !actor.isAdministrator() {
		return models.MiningOrder{}, ErrUnauthorized
	}
	order, err := s.mining.Reject(ctx, actor.ID, orderID)
	if err == ErrInvalidTransition {
		return s.currentIfSettled(ctx, orderID, err)
	}
	return order, err
}

func (s *ApprovalService) RecordTopup(ctx context.Context, actor Actor, req TopupRequest) (TopupResult, error) {
	if !actor.isAdministrator() {
		return TopupResult{}, ErrUnauthorized
	}
	req.AdminID = actor.ID
	return s.topups.Record(ctx, req)
}

// currentIfSettled turns a transition rejection into a no-op success when
// the order has in fact already moved past pending; a genuinely impossible
// transition still fails.
func (s *ApprovalService) currentIfSettled(ctx context.Context, orderID string, original error) (models.MiningOrder, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return models.MiningOrder{}, mapStoreError(err)
	}
	if order.Status != models.OrderPending {
		return order, nil
	}
	return models.MiningOrder{}, original
}
