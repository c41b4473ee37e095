package store

import (
	"context"
	"database/sql"

	"minetrade/internal/models"
)

// TopupStore persists the append-only top-up journal. Rows are never updated
// or deleted; corrections are new compensating rows.
type TopupStore struct {
	db DB
}

func NewTopupStore(db DB) *TopupStore {
	return &TopupStore{db: db}
}

type TopupInput struct {
	ID              string
	UserID          string
	AdminID         string
	Asset           models.Asset
	Amount          int64
	Note            *string
	ClientRequestID *string
}

func (s *TopupStore) Insert(ctx context.Context, tx Execer, input TopupInput) error {
	query := `
		INSERT INTO topup_records (id, user_id, admin_id, asset, amount, note, client_request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.UserID, input.AdminID, input.Asset, input.Amount, input.Note, input.ClientRequestID,
	)
	return err
}

// GetByRequestKey resolves a prior top-up by its idempotency key. Found is
// false when no row matches.
func (s *TopupStore) GetByRequestKey(ctx context.Context, key string) (models.TopupRecord, bool, error) {
	var row models.TopupRecord
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, admin_id, asset, amount, note, client_request_id, created_at
		FROM topup_records
		WHERE client_request_id = $1
	`, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.TopupRecord{}, false, nil
		}
		return models.TopupRecord{}, false, err
	}
	return row, true, nil
}

func (s *TopupStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.TopupRecord, error) {
	var rows []models.TopupRecord
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, admin_id, asset, amount, note, client_request_id, created_at
		FROM topup_records
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TopupStore) ListAll(ctx context.Context, limit, offset int) ([]models.TopupRecord, error) {
	var rows []models.TopupRecord
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, admin_id, asset, amount, note, client_request_id, created_at
		FROM topup_records
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
