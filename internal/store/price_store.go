package store

import (
	"context"

	"minetrade/internal/models"
)

// PriceStore keeps versioned per-asset prices in the reference unit. Setting
// a price inserts a new active row and deactivates the previous one, so the
// price history stays queryable.
type PriceStore struct {
	db DB
}

func NewPriceStore(db DB) *PriceStore {
	return &PriceStore{db: db}
}

func (s *PriceStore) Set(ctx context.Context, tx Tx, asset models.Asset, price string, actorID string) (string, error) {
	// The old active row is retired first; a partial unique index allows at
	// most one active row per asset.
	_, err := tx.ExecContext(ctx, `
		UPDATE asset_prices
		SET is_active = FALSE, deleted_at = NOW()
		WHERE asset = $1 AND is_active = TRUE
	`, asset)
	if err != nil {
		return "", err
	}
	var id string
	err = tx.GetContext(ctx, &id, `
		INSERT INTO asset_prices (id, asset, price, is_active, created_by)
		VALUES (gen_random_uuid()::text, $1, $2, TRUE, $3)
		RETURNING id
	`, asset, price, actorID)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Active returns the current active price row per asset. Assets with no row
// simply have no price.
func (s *PriceStore) Active(ctx context.Context) ([]models.AssetPrice, error) {
	var rows []models.AssetPrice
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, asset, price, is_active, created_at
		FROM asset_prices
		WHERE is_active = TRUE
		ORDER BY asset
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
