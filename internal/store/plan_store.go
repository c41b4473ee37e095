package store

import (
	"context"

	"minetrade/internal/models"
)

type PlanStore struct {
	db DB
}

func NewPlanStore(db DB) *PlanStore {
	return &PlanStore{db: db}
}

type PlanInput struct {
	ID           string
	Name         string
	CycleDays    int
	MinAmount    int64
	MaxAmount    int64
	DailyRate    string
	AbortFeeRate string
}

func (s *PlanStore) Create(ctx context.Context, tx Execer, input PlanInput) error {
	query := `
		INSERT INTO mining_plans (id, name, cycle_days, min_amount, max_amount, daily_rate, abort_fee_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.Name, input.CycleDays, input.MinAmount, input.MaxAmount, input.DailyRate, input.AbortFeeRate,
	)
	return err
}

func (s *PlanStore) GetByID(ctx context.Context, planID string) (models.MiningPlan, error) {
	var row models.MiningPlan
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, cycle_days, min_amount, max_amount, daily_rate, abort_fee_rate, created_at
		FROM mining_plans
		WHERE id = $1
	`, planID)
	if err != nil {
		return models.MiningPlan{}, err
	}
	return row, nil
}

func (s *PlanStore) List(ctx context.Context) ([]models.MiningPlan, error) {
	var rows []models.MiningPlan
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, cycle_days, min_amount, max_amount, daily_rate, abort_fee_rate, created_at
		FROM mining_plans
		ORDER BY min_amount, created_at
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
