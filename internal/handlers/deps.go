package handlers

import (
	"context"
	"time"

	"minetrade/internal/models"
	"minetrade/internal/services"
	"minetrade/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (map[string]any, error)
	GetByID(ctx context.Context, userID string) (map[string]any, error)
	ListAll(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

type WalletStore interface {
	EnsureRow(ctx context.Context, tx store.Execer, userID string, asset models.Asset) error
}

type EntryStore interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]map[string]any, error)
}

type PlanStore interface {
	Create(ctx context.Context, tx store.Execer, input store.PlanInput) error
	GetByID(ctx context.Context, planID string) (models.MiningPlan, error)
	List(ctx context.Context) ([]models.MiningPlan, error)
}

type OrderStore interface {
	GetByID(ctx context.Context, orderID string) (models.MiningOrder, error)
	ListByUser(ctx context.Context, userID string) ([]models.MiningOrder, error)
	ListByStatus(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.MiningOrder, error)
}

type TopupStore interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.TopupRecord, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.TopupRecord, error)
}

type PriceStore interface {
	Set(ctx context.Context, tx store.Tx, asset models.Asset, price string, actorID string) (string, error)
	Active(ctx context.Context) ([]models.AssetPrice, error)
}

type AdminStore interface {
	Role(ctx context.Context, userID string) (string, error)
	Create(ctx context.Context, tx store.Execer, userID, role string, createdBy *string) error
	HasAnyAdmin(ctx context.Context) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

type WalletService interface {
	Exchange(ctx context.Context, req services.ExchangeRequest) (services.ExchangeResult, error)
	State(ctx context.Context, userID string) ([]models.WalletBalance, error)
}

type MiningService interface {
	Create(ctx context.Context, req services.CreateOrderRequest) (models.MiningOrder, error)
	Abort(ctx context.Context, userID, orderID string) (models.MiningOrder, error)
	Accrue(ctx context.Context, orderID string, asOf time.Time) (int64, error)
	Complete(ctx context.Context, orderID string, asOf time.Time) (models.MiningOrder, error)
}

type ApprovalWorkflow interface {
	ApproveOrder(ctx context.Context, actor services.Actor, orderID string) (models.MiningOrder, error)
	RejectOrder(ctx context.Context, actor services.Actor, orderID string) (models.MiningOrder, error)
	RecordTopup(ctx context.Context, actor services.Actor, req services.TopupRequest) (services.TopupResult, error)
}
