package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"minetrade/internal/db"
	"minetrade/internal/metrics"
	"minetrade/internal/models"
	"minetrade/internal/money"
	"minetrade/internal/pricing"
	"minetrade/internal/store"
	"minetrade/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type WalletStore interface {
	EnsureRow(ctx context.Context, tx store.Execer, userID string, asset models.Asset) error
	GetForUpdate(ctx context.Context, tx store.Tx, userID string, asset models.Asset) (models.WalletBalance, error)
	UpdateAmount(ctx context.Context, tx store.Execer, userID string, asset models.Asset, amount int64) error
	GetByUser(ctx context.Context, userID string) ([]models.WalletBalance, error)
}

type EntryStore interface {
	Insert(ctx context.Context, tx store.Execer, entries []store.EntryInput) error
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

type PriceOracle interface {
	Get(ctx context.Context) pricing.Snapshot
}

// WalletService owns per-user multi-asset balances. Every mutation runs
// inside a serializable transaction holding row locks on the touched
// (user, asset) rows, so mutations for one user serialize while different
// users never contend.
type WalletService struct {
	txRunner db.TxRunner
	wallets  WalletStore
	entries  EntryStore
	audit    AuditStore
	oracle   PriceOracle
	hub      BalanceHub
}

func NewWalletService(txRunner db.TxRunner, wallets WalletStore, entries EntryStore, audit AuditStore, oracle PriceOracle, hub BalanceHub) *WalletService {
	return &WalletService{
		txRunner: txRunner,
		wallets:  wallets,
		entries:  entries,
		audit:    audit,
		oracle:   oracle,
		hub:      hub,
	}
}

// CreditTx increases a balance within the caller's transaction and journals
// the movement. Returns the balance after the credit.
func (s *WalletService) CreditTx(ctx context.Context, tx *sqlx.Tx, userID string, asset models.Asset, amount int64, reason, refID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if err := s.wallets.EnsureRow(ctx, tx, userID, asset); err != nil {
		return 0, mapStoreError(err)
	}
	balance, err := s.wallets.GetForUpdate(ctx, tx, userID, asset)
	if err != nil {
		return 0, mapStoreError(err)
	}
	newAmount := balance.Amount + amount
	if err := s.wallets.UpdateAmount(ctx, tx, userID, asset, newAmount); err != nil {
		return 0, err
	}
	err = s.entries.Insert(ctx, tx, []store.EntryInput{
		{ID: uuid.NewString(), UserID: userID, Asset: asset, Amount: amount, Reason: reason, RefID: refID},
	})
	if err != nil {
		return 0, err
	}
	return newAmount, nil
}

// DebitTx decreases a balance within the caller's transaction. The balance
// check and the write happen under the same row lock, so a balance can never
// be observed below zero.
func (s *WalletService) DebitTx(ctx context.Context, tx *sqlx.Tx, userID string, asset models.Asset, amount int64, reason, refID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if err := s.wallets.EnsureRow(ctx, tx, userID, asset); err != nil {
		return 0, mapStoreError(err)
	}
	balance, err := s.wallets.GetForUpdate(ctx, tx, userID, asset)
	if err != nil {
		return 0, mapStoreError(err)
	}
	if balance.Amount < amount {
		return 0, ErrInsufficientFunds
	}
	newAmount := balance.Amount - amount
	if err := s.wallets.UpdateAmount(ctx, tx, userID, asset, newAmount); err != nil {
		return 0, err
	}
	err = s.entries.Insert(ctx, tx, []store.EntryInput{
		{ID: uuid.NewString(), UserID: userID, Asset: asset, Amount: -amount, Reason: reason, RefID: refID},
	})
	if err != nil {
		return 0, err
	}
	return newAmount, nil
}

type ExchangeRequest struct {
	UserID     string
	FromAsset  models.Asset
	ToAsset    models.Asset
	AmountFrom int64
}

type ExchangeResult struct {
	ExchangeID  string
	AmountFrom  int64
	AmountTo    int64
	FromBalance int64
	ToBalance   int64
	StalePrice  bool
	PriceAsOf   string
}

// Exchange converts between two assets priced through the reference unit.
// The conversion truncates toward zero, so the system never pays out more
// than the exact repriced value. The price snapshot is taken before the
// transactional section; inside it only balance reads and writes happen.
func (s *WalletService) Exchange(ctx context.Context, req ExchangeRequest) (ExchangeResult, error) {
	if req.AmountFrom <= 0 {
		return ExchangeResult{}, ErrInvalidAmount
	}
	if !req.FromAsset.Valid() || !req.ToAsset.Valid() {
		return ExchangeResult{}, ErrInvalidAsset
	}
	if req.FromAsset == req.ToAsset {
		return ExchangeResult{}, ErrSameAsset
	}

	snapshot := s.oracle.Get(ctx)
	fromPrice, ok := snapshot.Price(req.FromAsset)
	if !ok || !fromPrice.IsPositive() {
		return ExchangeResult{}, ErrPriceUnavailable
	}
	toPrice, ok := snapshot.Price(req.ToAsset)
	if !ok || !toPrice.IsPositive() {
		return ExchangeResult{}, ErrPriceUnavailable
	}
	amountTo := money.ConvertMinor(req.AmountFrom, fromPrice, toPrice)

	result := ExchangeResult{
		ExchangeID: uuid.NewString(),
		AmountFrom: req.AmountFrom,
		AmountTo:   amountTo,
		StalePrice: snapshot.Stale,
		PriceAsOf:  snapshot.AsOf.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		// Both rows are locked in ascending asset order so two concurrent
		// exchanges on the same wallet cannot deadlock.
		first, second := orderedAssets(req.FromAsset, req.ToAsset)
		for _, asset := range []models.Asset{first, second} {
			if err := s.wallets.EnsureRow(ctx, tx, req.UserID, asset); err != nil {
				return mapStoreError(err)
			}
		}
		firstRow, err := s.wallets.GetForUpdate(ctx, tx, req.UserID, first)
		if err != nil {
			return mapStoreError(err)
		}
		secondRow, err := s.wallets.GetForUpdate(ctx, tx, req.UserID, second)
		if err != nil {
			return mapStoreError(err)
		}
		fromRow, toRow := firstRow, secondRow
		if fromRow.Asset != req.FromAsset {
			fromRow, toRow = secondRow, firstRow
		}
		if fromRow.Amount < req.AmountFrom {
			return ErrInsufficientFunds
		}
		result.FromBalance = fromRow.Amount - req.AmountFrom
		result.ToBalance = toRow.Amount + amountTo
		if err := s.wallets.UpdateAmount(ctx, tx, req.UserID, req.FromAsset, result.FromBalance); err != nil {
			return err
		}
		if err := s.wallets.UpdateAmount(ctx, tx, req.UserID, req.ToAsset, result.ToBalance); err != nil {
			return err
		}
		err = s.entries.Insert(ctx, tx, []store.EntryInput{
			{ID: uuid.NewString(), UserID: req.UserID, Asset: req.FromAsset, Amount: -req.AmountFrom, Reason: "exchange_out", RefID: result.ExchangeID},
			{ID: uuid.NewString(), UserID: req.UserID, Asset: req.ToAsset, Amount: amountTo, Reason: "exchange_in", RefID: result.ExchangeID},
		})
		if err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"from_asset":  req.FromAsset,
			"to_asset":    req.ToAsset,
			"amount_from": req.AmountFrom,
			"amount_to":   amountTo,
			"from_price":  fromPrice.String(),
			"to_price":    toPrice.String(),
			"stale_price": snapshot.Stale,
		})
		return s.audit.Log(ctx, tx, req.UserID, "exchange", "wallet", req.UserID, string(data))
	})
	if err != nil {
		return ExchangeResult{}, mapTxError(err)
	}
	metrics.ExchangesExecuted.Inc()
	if snapshot.Stale {
		metrics.StalePriceExchanges.Inc()
	}
	s.hub.BroadcastBalance(req.UserID, websocket.BalanceUpdate{
		Asset:   string(req.FromAsset),
		Balance: money.FormatMinor(result.FromBalance),
		Stale:   snapshot.Stale,
	})
	s.hub.BroadcastBalance(req.UserID, websocket.BalanceUpdate{
		Asset:   string(req.ToAsset),
		Balance: money.FormatMinor(result.ToBalance),
		Stale:   snapshot.Stale,
	})
	return result, nil
}

// State reads the user's balances, normalizing missing assets to explicit
// zero entries so callers always see the full closed asset set.
func (s *WalletService) State(ctx context.Context, userID string) ([]models.WalletBalance, error) {
	rows, err := s.wallets.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	byAsset := make(map[models.Asset]models.WalletBalance, len(rows))
	for _, row := range rows {
		byAsset[row.Asset] = row
	}
	balances := make([]models.WalletBalance, 0, len(models.KnownAssets()))
	for _, asset := range models.KnownAssets() {
		if row, ok := byAsset[asset]; ok {
			balances = append(balances, row)
			continue
		}
		balances = append(balances, models.WalletBalance{UserID: userID, Asset: asset, Amount: 0})
	}
	return balances, nil
}

func orderedAssets(first, second models.Asset) (models.Asset, models.Asset) {
	if first <= second {
		return first, second
	}
	return second, first
}

func mapStoreError(err error) error {
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		// foreign key violation: unknown user or plan
		return ErrNotFound
	}
	return err
}

func mapTxError(err error) error {
	if errors.Is(err, db.ErrRetryExhausted) {
		return ErrConflict
	}
	return err
}
