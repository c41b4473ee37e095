package store

import (
	"context"
	"time"

	"minetrade/internal/models"
)

type OrderStore struct {
	db DB
}

func NewOrderStore(db DB) *OrderStore {
	return &OrderStore{db: db}
}

type OrderInput struct {
	ID        string
	UserID    string
	PlanID    string
	Principal int64
	Note      *string
}

func (s *OrderStore) Create(ctx context.Context, tx Execer, input OrderInput) error {
	query := `
		INSERT INTO mining_orders (id, user_id, plan_id, principal, status, accrued_days, accrued_total, note)
		VALUES ($1, $2, $3, $4, 'pending', 0, 0, $5)
	`
	_, err := tx.ExecContext(ctx, query, input.ID, input.UserID, input.PlanID, input.Principal, input.Note)
	return err
}

func (s *OrderStore) GetByID(ctx context.Context, orderID string) (models.MiningOrder, error) {
	var row models.MiningOrder
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, plan_id, principal, status, accrued_days, accrued_total, note, created_at, activated_at, closed_at
		FROM mining_orders
		WHERE id = $1
	`, orderID)
	if err != nil {
		return models.MiningOrder{}, err
	}
	return row, nil
}

// GetForUpdate locks the order row so status transitions for the same order
// serialize. Hold this lock before touching the owner's wallet rows.
func (s *OrderStore) GetForUpdate(ctx context.Context, tx Tx, orderID string) (models.MiningOrder, error) {
	var row models.MiningOrder
	err := tx.GetContext(ctx, &row, `
		SELECT id, user_id, plan_id, principal, status, accrued_days, accrued_total, note, created_at, activated_at, closed_at
		FROM mining_orders
		WHERE id = $1
		FOR UPDATE
	`, orderID)
	if err != nil {
		return models.MiningOrder{}, err
	}
	return row, nil
}

func (s *OrderStore) Activate(ctx context.Context, tx Execer, orderID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE mining_orders
		SET status = 'active', activated_at = $1
		WHERE id = $2
	`, at, orderID)
	return err
}

func (s *OrderStore) Close(ctx context.Context, tx Execer, orderID string, status models.OrderStatus, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE mining_orders
		SET status = $1, closed_at = $2
		WHERE id = $3
	`, status, at, orderID)
	return err
}

func (s *OrderStore) UpdateAccrual(ctx context.Context, tx Execer, orderID string, accruedDays int, accruedTotal int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE mining_orders
		SET accrued_days = $1, accrued_total = $2
		WHERE id = $3
	`, accruedDays, accruedTotal, orderID)
	return err
}

func (s *OrderStore) ListByUser(ctx context.Context, userID string) ([]models.MiningOrder, error) {
	var rows []models.MiningOrder
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, plan_id, principal, status, accrued_days, accrued_total, note, created_at, activated_at, closed_at
		FROM mining_orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *OrderStore) ListByStatus(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.MiningOrder, error) {
	var rows []models.MiningOrder
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, plan_id, principal, status, accrued_days, accrued_total, note, created_at, activated_at, closed_at
		FROM mining_orders
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListActiveIDs feeds the accrual sweeper without holding locks.
func (s *OrderStore) ListActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id
		FROM mining_orders
		WHERE status = 'active'
		ORDER BY activated_at
	`)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
