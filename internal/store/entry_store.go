package store

import (
	"context"

	"minetrade/internal/models"
)

// EntryStore records every wallet movement in an append-only journal, one row
// per debit or credit.
type EntryStore struct {
	db DB
}

func NewEntryStore(db DB) *EntryStore {
	return &EntryStore{db: db}
}

type EntryInput struct {
	ID     string
	UserID string
	Asset  models.Asset
	Amount int64
	Reason string
	RefID  string
}

func (s *EntryStore) Insert(ctx context.Context, tx Execer, entries []EntryInput) error {
	query := `
		INSERT INTO wallet_entries (id, user_id, asset, amount, reason, ref_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, query, entry.ID, entry.UserID, entry.Asset, entry.Amount, entry.Reason, entry.RefID); err != nil {
			return err
		}
	}
	return nil
}

func (s *EntryStore) SumByUserAsset(ctx context.Context, userID string, asset models.Asset) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM wallet_entries
		WHERE user_id = $1 AND asset = $2
	`, userID, asset)
	return sum, err
}

type entryRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Asset     string `db:"asset"`
	Amount    int64  `db:"amount"`
	Reason    string `db:"reason"`
	RefID     string `db:"ref_id"`
	CreatedAt any    `db:"created_at"`
}

func (s *EntryStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]map[string]any, error) {
	var rows []entryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, asset, amount, reason, ref_id, created_at
		FROM wallet_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	entries := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, map[string]any{
			"id":         row.ID,
			"user_id":    row.UserID,
			"asset":      row.Asset,
			"amount":     row.Amount,
			"reason":     row.Reason,
			"ref_id":     row.RefID,
			"created_at": row.CreatedAt,
		})
	}
	return entries, nil
}
