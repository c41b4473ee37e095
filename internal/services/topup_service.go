package services

import (
	"context"
	"encoding/json"
	"errors"

	"minetrade/internal/db"
	"minetrade/internal/metrics"
	"minetrade/internal/models"
	"minetrade/internal/money"
	"minetrade/internal/store"
	"minetrade/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type TopupStore interface {
	Insert(ctx context.Context, tx store.Execer, input store.TopupInput) error
	GetByRequestKey(ctx context.Context, key string) (models.TopupRecord, bool, error)
}

// TopupService appends administrator credits to the journal and applies
// them to the wallet in one atomic unit. A journal row and its credit
// always exist together or not at all.
type TopupService struct {
	txRunner db.TxRunner
	topups   TopupStore
	wallet   WalletTxLedger
	audit    AuditStore
	hub      BalanceHub
}

func NewTopupService(txRunner db.TxRunner, topups TopupStore, wallet WalletTxLedger, audit AuditStore, hub BalanceHub) *TopupService {
	return &TopupService{
		txRunner: txRunner,
		topups:   topups,
		wallet:   wallet,
		audit:    audit,
		hub:      hub,
	}
}

type TopupRequest struct {
	AdminID         string
	UserID          string
	Asset           models.Asset
	Amount          int64
	Note            *string
	ClientRequestID *string
}

type TopupResult struct {
	Record    models.TopupRecord
	Balance   int64
	Duplicate bool
}

// Record appends the top-up and credits the wallet. When the caller supplies
// a client request key, a repeated call with the same key returns the
// original record without crediting again, even if the first response was
// lost.
func (s *TopupService) Record(ctx context.Context, req TopupRequest) (TopupResult, error) {
	if req.Amount <= 0 {
		return TopupResult{}, ErrInvalidAmount
	}
	if !req.Asset.Valid() {
		return TopupResult{}, ErrInvalidAsset
	}

	if req.ClientRequestID != nil && *req.ClientRequestID != "" {
		existing, found, err := s.topups.GetByRequestKey(ctx, *req.ClientRequestID)
		if err != nil {
			return TopupResult{}, err
		}
		if found {
			return TopupResult{Record: existing, Duplicate: true}, nil
		}
	}

	record := models.TopupRecord{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		AdminID:         req.AdminID,
		Asset:           req.Asset,
		Amount:          req.Amount,
		Note:            req.Note,
		ClientRequestID: req.ClientRequestID,
	}
	var balanceAfter int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.topups.Insert(ctx, tx, store.TopupInput{
			ID:              record.ID,
			UserID:          record.UserID,
			AdminID:         record.AdminID,
			Asset:           record.Asset,
			Amount:          record.Amount,
			Note:            record.Note,
			ClientRequestID: record.ClientRequestID,
		}); err != nil {
			return mapStoreError(err)
		}
		after, err := s.wallet.CreditTx(ctx, tx, record.UserID, record.Asset, record.Amount, "topup", record.ID)
		if err != nil {
			return err
		}
		balanceAfter = after
		data, _ := json.Marshal(map[string]any{
			"user_id": record.UserID,
			"asset":   record.Asset,
			"amount":  record.Amount,
		})
		return s.audit.Log(ctx, tx, record.AdminID, "topup_record", "topup", record.ID, string(data))
	})
	if err != nil {
		// A concurrent retry with the same key may have won the insert race;
		// the unique index turns that into a duplicate, not a double credit.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && req.ClientRequestID != nil {
			existing, found, lookupErr := s.topups.GetByRequestKey(ctx, *req.ClientRequestID)
			if lookupErr == nil && found {
				return TopupResult{Record: existing, Duplicate: true}, nil
			}
		}
		if errors.Is(err, db.ErrRetryExhausted) {
			return TopupResult{}, ErrConflict
		}
		return TopupResult{}, err
	}
	metrics.TopupsRecorded.Inc()
	if s.hub != nil {
		s.hub.BroadcastBalance(record.UserID, websocket.BalanceUpdate{
			Asset:   string(record.Asset),
			Balance: money.FormatMinor(balanceAfter),
		})
	}
	return TopupResult{Record: record, Balance: balanceAfter}, nil
}
