package store

import (
	"context"

	"minetrade/internal/models"
)

type WalletStore struct {
	db DB
}

func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

// EnsureRow creates a zero balance row if the (user, asset) pair has none.
// A missing row reads as an implicit zero balance.
func (s *WalletStore) EnsureRow(ctx context.Context, tx Execer, userID string, asset models.Asset) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_balances (user_id, asset, amount)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id, asset) DO NOTHING
	`, userID, asset)
	return err
}

// GetForUpdate locks the balance row for the duration of the transaction.
// Callers locking more than one asset must do so in ascending asset order.
func (s *WalletStore) GetForUpdate(ctx context.Context, tx Tx, userID string, asset models.Asset) (models.WalletBalance, error) {
	var row models.WalletBalance
	err := tx.GetContext(ctx, &row, `
		SELECT user_id, asset, amount, updated_at
		FROM wallet_balances
		WHERE user_id = $1 AND asset = $2
		FOR UPDATE
	`, userID, asset)
	if err != nil {
		return models.WalletBalance{}, err
	}
	return row, nil
}

func (s *WalletStore) UpdateAmount(ctx context.Context, tx Execer, userID string, asset models.Asset, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallet_balances
		SET amount = $1, updated_at = NOW()
		WHERE user_id = $2 AND asset = $3
	`, amount, userID, asset)
	return err
}

func (s *WalletStore) GetByUser(ctx context.Context, userID string) ([]models.WalletBalance, error) {
	var rows []models.WalletBalance
	err := s.db.SelectContext(ctx, &rows, `
		SELECT user_id, asset, amount, updated_at
		FROM wallet_balances
		WHERE user_id = $1
		ORDER BY asset
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *WalletStore) GetByUserAndAsset(ctx context.Context, userID string, asset models.Asset) (models.WalletBalance, error) {
	var row models.WalletBalance
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, asset, amount, updated_at
		FROM wallet_balances
		WHERE user_id = $1 AND asset = $2
	`, userID, asset)
	if err != nil {
		return models.WalletBalance{}, err
	}
	return row, nil
}
