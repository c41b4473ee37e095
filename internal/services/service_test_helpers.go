package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"minetrade/internal/models"
	"minetrade/internal/pricing"
	"minetrade/internal/store"
	"minetrade/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

// memWalletStore keeps balances in memory so service tests can run whole
// scenarios without a database.
type memWalletStore struct {
	mu       sync.Mutex
	balances map[string]map[models.Asset]int64
}

func newMemWalletStore() *memWalletStore {
	return &memWalletStore{balances: make(map[string]map[models.Asset]int64)}
}

func (m *memWalletStore) set(userID string, asset models.Asset, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[userID] == nil {
		m.balances[userID] = make(map[models.Asset]int64)
	}
	m.balances[userID][asset] = amount
}

func (m *memWalletStore) get(userID string, asset models.Asset) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID][asset]
}

func (m *memWalletStore) EnsureRow(_ context.Context, _ store.Execer, userID string, asset models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[userID] == nil {
		m.balances[userID] = make(map[models.Asset]int64)
	}
	if _, ok := m.balances[userID][asset]; !ok {
		m.balances[userID][asset] = 0
	}
	return nil
}

func (m *memWalletStore) GetForUpdate(_ context.Context, _ store.Tx, userID string, asset models.Asset) (models.WalletBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.WalletBalance{UserID: userID, Asset: asset, Amount: m.balances[userID][asset]}, nil
}

func (m *memWalletStore) UpdateAmount(_ context.Context, _ store.Execer, userID string, asset models.Asset, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID][asset] = amount
	return nil
}

func (m *memWalletStore) GetByUser(_ context.Context, userID string) ([]models.WalletBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []models.WalletBalance
	for asset, amount := range m.balances[userID] {
		rows = append(rows, models.WalletBalance{UserID: userID, Asset: asset, Amount: amount})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Asset < rows[j].Asset })
	return rows, nil
}

type memEntryStore struct {
	mu      sync.Mutex
	entries []store.EntryInput
}

func (m *memEntryStore) Insert(_ context.Context, _ store.Execer, entries []store.EntryInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

type stubAuditStore struct {
	mu   sync.Mutex
	logs []string
}

func (s *stubAuditStore) Log(_ context.Context, _ store.Execer, _, action, _, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, action)
	return nil
}

type stubHub struct {
	mu    sync.Mutex
	calls []websocket.BalanceUpdate
}

func (s *stubHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, update)
}

type stubOracle struct {
	snapshot pricing.Snapshot
}

func (s stubOracle) Get(context.Context) pricing.Snapshot {
	return s.snapshot
}

type memOrderStore struct {
	mu     sync.Mutex
	orders map[string]models.MiningOrder
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: make(map[string]models.MiningOrder)}
}

func (m *memOrderStore) Create(_ context.Context, _ store.Execer, input store.OrderInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[input.ID] = models.MiningOrder{
		ID:        input.ID,
		UserID:    input.UserID,
		PlanID:    input.PlanID,
		Principal: input.Principal,
		Status:    models.OrderPending,
		Note:      input.Note,
		CreatedAt: time.Now(),
	}
	return nil
}

func (m *memOrderStore) GetByID(_ context.Context, orderID string) (models.MiningOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return models.MiningOrder{}, sql.ErrNoRows
	}
	return order, nil
}

func (m *memOrderStore) GetForUpdate(ctx context.Context, _ store.Tx, orderID string) (models.MiningOrder, error) {
	return m.GetByID(ctx, orderID)
}

func (m *memOrderStore) Activate(_ context.Context, _ store.Execer, orderID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order := m.orders[orderID]
	order.Status = models.OrderActive
	order.ActivatedAt = &at
	m.orders[orderID] = order
	return nil
}

func (m *memOrderStore) Close(_ context.Context, _ store.Execer, orderID string, status models.OrderStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order := m.orders[orderID]
	order.Status = status
	order.ClosedAt = &at
	m.orders[orderID] = order
	return nil
}

func (m *memOrderStore) UpdateAccrual(_ context.Context, _ store.Execer, orderID string, accruedDays int, accruedTotal int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order := m.orders[orderID]
	order.AccruedDays = accruedDays
	order.AccruedTotal = accruedTotal
	m.orders[orderID] = order
	return nil
}

func (m *memOrderStore) ListActiveIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, order := range m.orders {
		if order.Status == models.OrderActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type stubPlanStore struct {
	plans map[string]models.MiningPlan
}

func (s stubPlanStore) GetByID(_ context.Context, planID string) (models.MiningPlan, error) {
	plan, ok := s.plans[planID]
	if !ok {
		return models.MiningPlan{}, sql.ErrNoRows
	}
	return plan, nil
}

type memTopupStore struct {
	mu      sync.Mutex
	records []models.TopupRecord
	// missNextLookup makes the next GetByRequestKey report not-found,
	// simulating a concurrent insert landing between lookup and insert.
	missNextLookup bool
}

func (m *memTopupStore) Insert(_ context.Context, _ store.Execer, input store.TopupInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if input.ClientRequestID != nil {
		for _, existing := range m.records {
			if existing.ClientRequestID != nil && *existing.ClientRequestID == *input.ClientRequestID {
				return &pq.Error{Code: "23505"}
			}
		}
	}
	m.records = append(m.records, models.TopupRecord{
		ID:              input.ID,
		UserID:          input.UserID,
		AdminID:         input.AdminID,
		Asset:           input.Asset,
		Amount:          input.Amount,
		Note:            input.Note,
		ClientRequestID: input.ClientRequestID,
		CreatedAt:       time.Now(),
	})
	return nil
}

func (m *memTopupStore) GetByRequestKey(_ context.Context, key string) (models.TopupRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.missNextLookup {
		m.missNextLookup = false
		return models.TopupRecord{}, false, nil
	}
	for _, record := range m.records {
		if record.ClientRequestID != nil && *record.ClientRequestID == key {
			return record, true, nil
		}
	}
	return models.TopupRecord{}, false, nil
}

func stringPtr(value string) *string {
	return &value
}

func snapshotWith(prices map[models.Asset]string) pricing.Snapshot {
	return snapshotWithStale(prices, false)
}

func snapshotWithStale(prices map[models.Asset]string, stale bool) pricing.Snapshot {
	snap := pricing.Snapshot{
		Prices: make(map[models.Asset]decimal.Decimal),
		Stale:  stale,
		AsOf:   time.Now(),
	}
	for asset, price := range prices {
		snap.Prices[asset] = decimal.RequireFromString(price)
	}
	return snap
}
