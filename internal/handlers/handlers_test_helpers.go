package handlers

import (
	"context"
	"time"

	"minetrade/internal/config"
	"minetrade/internal/models"
	"minetrade/internal/services"
	"minetrade/internal/store"
	"minetrade/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubReconcileDB struct {
	selectFn func(ctx context.Context, dest any, query string, args ...any) error
}

func (s stubReconcileDB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	if s.selectFn == nil {
		return nil
	}
	return s.selectFn(ctx, dest, query, args...)
}

type stubUserStore struct {
	createFn     func(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	getByEmailFn func(ctx context.Context, email string) (map[string]any, error)
	getByIDFn    func(ctx context.Context, userID string) (map[string]any, error)
	listAllFn    func(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, username, email, passwordHash)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (map[string]any, error) {
	if s.getByEmailFn == nil {
		return nil, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (map[string]any, error) {
	if s.getByIDFn == nil {
		return nil, nil
	}
	return s.getByIDFn(ctx, userID)
}

func (s stubUserStore) ListAll(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx, limit, offset)
}

type stubWalletStore struct {
	ensureRowFn func(ctx context.Context, tx store.Execer, userID string, asset models.Asset) error
}

func (s stubWalletStore) EnsureRow(ctx context.Context, tx store.Execer, userID string, asset models.Asset) error {
	if s.ensureRowFn == nil {
		return nil
	}
	return s.ensureRowFn(ctx, tx, userID, asset)
}

type stubEntryStore struct {
	listByUserFn func(ctx context.Context, userID string, limit, offset int) ([]map[string]any, error)
}

func (s stubEntryStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]map[string]any, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, limit, offset)
}

type stubPlanStore struct {
	createFn  func(ctx context.Context, tx store.Execer, input store.PlanInput) error
	getByIDFn func(ctx context.Context, planID string) (models.MiningPlan, error)
	listFn    func(ctx context.Context) ([]models.MiningPlan, error)
}

func (s stubPlanStore) Create(ctx context.Context, tx store.Execer, input store.PlanInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubPlanStore) GetByID(ctx context.Context, planID string) (models.MiningPlan, error) {
	if s.getByIDFn == nil {
		return models.MiningPlan{}, nil
	}
	return s.getByIDFn(ctx, planID)
}

func (s stubPlanStore) List(ctx context.Context) ([]models.MiningPlan, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

type stubOrderStore struct {
	getByIDFn      func(ctx context.Context, orderID string) (models.MiningOrder, error)
	listByUserFn   func(ctx context.Context, userID string) ([]models.MiningOrder, error)
	listByStatusFn func(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.MiningOrder, error)
}

func (s stubOrderStore) GetByID(ctx context.Context, orderID string) (models.MiningOrder, error) {
	if s.getByIDFn == nil {
		return models.MiningOrder{}, nil
	}
	return s.getByIDFn(ctx, orderID)
}

func (s stubOrderStore) ListByUser(ctx context.Context, userID string) ([]models.MiningOrder, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID)
}

func (s stubOrderStore) ListByStatus(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.MiningOrder, error) {
	if s.listByStatusFn == nil {
		return nil, nil
	}
	return s.listByStatusFn(ctx, status, limit, offset)
}

type stubTopupStore struct {
	listByUserFn func(ctx context.Context, userID string, limit, offset int) ([]models.TopupRecord, error)
	listAllFn    func(ctx context.Context, limit, offset int) ([]models.TopupRecord, error)
}

func (s stubTopupStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.TopupRecord, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, limit, offset)
}

func (s stubTopupStore) ListAll(ctx context.Context, limit, offset int) ([]models.TopupRecord, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx, limit, offset)
}

type stubPriceStore struct {
	setFn    func(ctx context.Context, tx store.Tx, asset models.Asset, price string, actorID string) (string, error)
	activeFn func(ctx context.Context) ([]models.AssetPrice, error)
}

func (s stubPriceStore) Set(ctx context.Context, tx store.Tx, asset models.Asset, price string, actorID string) (string, error) {
	if s.setFn == nil {
		return "", nil
	}
	return s.setFn(ctx, tx, asset, price, actorID)
}

func (s stubPriceStore) Active(ctx context.Context) ([]models.AssetPrice, error) {
	if s.activeFn == nil {
		return nil, nil
	}
	return s.activeFn(ctx)
}

type stubAdminStore struct {
	roleFn        func(ctx context.Context, userID string) (string, error)
	createFn      func(ctx context.Context, tx store.Execer, userID, role string, createdBy *string) error
	hasAnyAdminFn func(ctx context.Context) (bool, error)
}

func (s stubAdminStore) Role(ctx context.Context, userID string) (string, error) {
	if s.roleFn == nil {
		return "", nil
	}
	return s.roleFn(ctx, userID)
}

func (s stubAdminStore) Create(ctx context.Context, tx store.Execer, userID, role string, createdBy *string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, userID, role, createdBy)
}

func (s stubAdminStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	if s.hasAnyAdminFn == nil {
		return true, nil
	}
	return s.hasAnyAdminFn(ctx)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	listFn func(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubWalletService struct {
	exchangeFn func(ctx context.Context, req services.ExchangeRequest) (services.ExchangeResult, error)
	stateFn    func(ctx context.Context, userID string) ([]models.WalletBalance, error)
}

func (s stubWalletService) Exchange(ctx context.Context, req services.ExchangeRequest) (services.ExchangeResult, error) {
	if s.exchangeFn == nil {
		return services.ExchangeResult{}, nil
	}
	return s.exchangeFn(ctx, req)
}

func (s stubWalletService) State(ctx context.Context, userID string) ([]models.WalletBalance, error) {
	if s.stateFn == nil {
		return nil, nil
	}
	return s.stateFn(ctx, userID)
}

type stubMiningService struct {
	createFn   func(ctx context.Context, req services.CreateOrderRequest) (models.MiningOrder, error)
	abortFn    func(ctx context.Context, userID, orderID string) (models.MiningOrder, error)
	accrueFn   func(ctx context.Context, orderID string, asOf time.Time) (int64, error)
	completeFn func(ctx context.Context, orderID string, asOf time.Time) (models.MiningOrder, error)
}

func (s stubMiningService) Create(ctx context.Context, req services.CreateOrderRequest) (models.MiningOrder, error) {
	if s.createFn == nil {
		return models.MiningOrder{}, nil
	}
	return s.createFn(ctx, req)
}

func (s stubMiningService) Abort(ctx context.Context, userID, orderID string) (models.MiningOrder, error) {
	if s.abortFn == nil {
		return models.MiningOrder{}, nil
	}
	return s.abortFn(ctx, userID, orderID)
}

func (s stubMiningService) Accrue(ctx context.Context, orderID string, asOf time.Time) (int64, error) {
	if s.accrueFn == nil {
		return 0, nil
	}
	return s.accrueFn(ctx, orderID, asOf)
}

func (s stubMiningService) Complete(ctx context.Context, orderID string, asOf time.Time) (models.MiningOrder, error) {
	if s.completeFn == nil {
		return models.MiningOrder{}, services.ErrInvalidTransition
	}
	return s.completeFn(ctx, orderID, asOf)
}

type stubApproval struct {
	approveFn func(ctx context.Context, actor services.Actor, orderID string) (models.MiningOrder, error)
	rejectFn  func(ctx context.Context, actor services.Actor, orderID string) (models.MiningOrder, error)
	topupFn   func(ctx context.Context, actor services.Actor, req services.TopupRequest) (services.TopupResult, error)
}

func (s stubApproval) ApproveOrder(ctx context.Context, actor services.Actor, orderID string) (models.MiningOrder, error) {
	if s.approveFn == nil {
		return models.MiningOrder{}, nil
	}
	return s.approveFn(ctx, actor, orderID)
}

func (s stubApproval) RejectOrder(ctx context.Context, actor services.Actor, orderID string) (models.MiningOrder, error) {
	if s.rejectFn == nil {
		return models.MiningOrder{}, nil
	}
	return s.rejectFn(ctx, actor, orderID)
}

func (s stubApproval) RecordTopup(ctx context.Context, actor services.Actor, req services.TopupRequest) (services.TopupResult, error) {
	if s.topupFn == nil {
		return services.TopupResult{}, nil
	}
	return s.topupFn(ctx, actor, req)
}

type handlerDeps struct {
	reconcileDB stubReconcileDB
	txRunner    fakeTxRunner
	users       stubUserStore
	wallets     stubWalletStore
	entries     stubEntryStore
	plans       stubPlanStore
	orders      stubOrderStore
	topups      stubTopupStore
	prices      stubPriceStore
	admin       stubAdminStore
	audit       stubAuditStore
	wallet      stubWalletService
	mining      stubMiningService
	approval    stubApproval
}

func newTestHandler(deps handlerDeps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	return New(deps.reconcileDB, deps.txRunner, cfg, deps.users, deps.wallets, deps.entries, deps.plans, deps.orders, deps.topups, deps.prices, deps.admin, deps.audit, deps.wallet, deps.mining, deps.approval, websocket.NewHub())
}

func stringPtr(value string) *string {
	return &value
}
