package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"minetrade/internal/middleware"
	"minetrade/internal/models"
	"minetrade/internal/money"
	"minetrade/internal/services"
	"minetrade/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func (h *Handler) actor(r *http.Request) (services.Actor, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return services.Actor{}, false
	}
	return services.Actor{ID: userID, Role: middleware.RoleFromContext(r.Context())}, true
}

type topupRequest struct {
	UserID          string  `json:"user_id"`
	Asset           string  `json:"asset"`
	Amount          string  `json:"amount"`
	Note            *string `json:"note"`
	ClientRequestID *string `json:"client_request_id"`
}

// RecordTopup credits a user's wallet and appends the journal row. The
// idempotency key comes from the X-Idempotency-Key header or the payload;
// replaying a key returns the original record with 200 instead of 201.
func (h *Handler) RecordTopup(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req topupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_asset")
		return
	}
	amountMinor, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	clientRequestID := req.ClientRequestID
	if header := r.Header.Get("X-Idempotency-Key"); header != "" {
		clientRequestID = &header
	}
	result, err := h.approval.RecordTopup(r.Context(), actor, services.TopupRequest{
		UserID:          req.UserID,
		Asset:           asset,
		Amount:          amountMinor,
		Note:            req.Note,
		ClientRequestID: clientRequestID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	payload := topupPayload(result.Record)
	payload["duplicate"] = result.Duplicate
	if !result.Duplicate {
		payload["balance"] = money.FormatMinor(result.Balance)
	}
	respondJSON(w, status, payload)
}

func (h *Handler) ListTopups(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	page := parseInt(query.Get("page"), 1)
	offset := (page - 1) * limit
	var records []models.TopupRecord
	var err error
	if userID := query.Get("user_id"); userID != "" {
		records, err = h.topups.ListByUser(r.Context(), userID, limit, offset)
	} else {
		records, err = h.topups.ListAll(r.Context(), limit, offset)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load topups")
		return
	}
	normalized := make([]map[string]any, 0, len(records))
	for _, record := range records {
		normalized = append(normalized, topupPayload(record))
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	order, err := h.approval.ApproveOrder(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderPayload(order))
}

func (h *Handler) RejectOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	order, err := h.approval.RejectOrder(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderPayload(order))
}

// AccrueOrder forces the accrual sweep for one order, crediting any due
// days and completing the order when its cycle has elapsed.
func (h *Handler) AccrueOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	asOf := time.Now()
	applied, err := h.mining.Accrue(r.Context(), orderID, asOf)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	completed := false
	if _, err := h.mining.Complete(r.Context(), orderID, asOf); err == nil {
		completed = true
	} else if !errors.Is(err, services.ErrInvalidTransition) {
		respondServiceError(w, err)
		return
	}
	order, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load order")
		return
	}
	payload := orderPayload(order)
	payload["accrued_now"] = money.FormatMinor(applied)
	payload["completed_now"] = completed
	respondJSON(w, http.StatusOK, payload)
}

func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	page := parseInt(query.Get("page"), 1)
	offset := (page - 1) * limit
	status := models.OrderStatus(query.Get("status"))
	if status == "" {
		status = models.OrderPending
	}
	orders, err := h.orders.ListByStatus(r.Context(), status, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load orders")
		return
	}
	normalized := make([]map[string]any, 0, len(orders))
	for _, order := range orders {
		normalized = append(normalized, orderPayload(order))
	}
	respondJSON(w, http.StatusOK, normalized)
}

type createPlanRequest struct {
	Name         string `json:"name"`
	CycleDays    int    `json:"cycle_days"`
	MinAmount    string `json:"min_amount"`
	MaxAmount    string `json:"max_amount"`
	DailyRate    string `json:"daily_rate"`
	AbortFeeRate string `json:"abort_fee_rate"`
}

func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Name == "" || req.CycleDays <= 0 {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	minAmount, err := parseAmountMinor(req.MinAmount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	maxAmount, err := parseAmountMinor(req.MaxAmount)
	if err != nil || maxAmount < minAmount {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	dailyRate, err := parsePrice(req.DailyRate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_rate")
		return
	}
	abortFeeRate, err := parsePrice(req.AbortFeeRate)
	if err != nil || abortFeeRate.GreaterThan(decimalOne) {
		respondError(w, http.StatusBadRequest, "invalid_rate")
		return
	}
	planID := uuid.NewString()
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.plans.Create(r.Context(), tx, store.PlanInput{
			ID:           planID,
			Name:         req.Name,
			CycleDays:    req.CycleDays,
			MinAmount:    minAmount,
			MaxAmount:    maxAmount,
			DailyRate:    dailyRate.String(),
			AbortFeeRate: abortFeeRate.String(),
		}); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"name":       req.Name,
			"cycle_days": req.CycleDays,
		})
		return h.audit.Log(r.Context(), tx, actor.ID, "plan_create", "mining_plan", planID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create plan")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": planID})
}

type setPriceRequest struct {
	Asset string `json:"asset"`
	Price string `json:"price"`
}

func (h *Handler) SetPrice(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req setPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_asset")
		return
	}
	if asset == models.ReferenceAsset {
		respondError(w, http.StatusBadRequest, "reference_price_fixed")
		return
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_price")
		return
	}
	var priceID string
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		id, err := h.prices.Set(r.Context(), tx, asset, price.String(), actor.ID)
		if err != nil {
			return err
		}
		priceID = id
		data, _ := json.Marshal(map[string]string{
			"asset": string(asset),
			"price": price.String(),
		})
		return h.audit.Log(r.Context(), tx, actor.ID, "price_set", "asset_price", id, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to set price")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"id":    priceID,
		"asset": string(asset),
		"price": price.String(),
	})
}

type promoteRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (h *Handler) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req promoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleSubAdmin {
		respondError(w, http.StatusBadRequest, "invalid_role")
		return
	}
	if _, err := h.users.GetByID(r.Context(), req.UserID); err != nil {
		if err == sql.ErrNoRows {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to resolve user")
		return
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admin.Create(r.Context(), tx, req.UserID, req.Role, &actor.ID); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{
			"target_user_id": req.UserID,
			"role":           req.Role,
		})
		return h.audit.Log(r.Context(), tx, actor.ID, "promote_admin", "admin", req.UserID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to promote admin")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "promoted"})
}

func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	page := parseInt(query.Get("page"), 1)
	offset := (page - 1) * limit
	rows, err := h.users.ListAll(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load users")
		return
	}
	normalized := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		normalized = append(normalized, map[string]any{
			"id":         valueToString(row["id"]),
			"username":   valueToString(row["username"]),
			"email":      valueToString(row["email"]),
			"role":       valueToString(row["role"]),
			"created_at": row["created_at"],
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	page := parseInt(query.Get("page"), 1)
	offset := (page - 1) * limit
	rows, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// Reconcile cross-checks every balance row against the sum of its journal
// entries. A non-empty result means a mutation bypassed the ledger.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	type reconRow struct {
		UserID     string `db:"user_id"`
		Asset      string `db:"asset"`
		Balance    int64  `db:"balance"`
		EntrySum   int64  `db:"entry_sum"`
		Difference int64  `db:"difference"`
	}
	var rows []reconRow
	query := `
		SELECT b.user_id,
		       b.asset,
		       b.amount AS balance,
		       COALESCE(SUM(e.amount), 0) AS entry_sum,
		       (b.amount - COALESCE(SUM(e.amount), 0)) AS difference
		FROM wallet_balances b
		LEFT JOIN wallet_entries e ON e.user_id = b.user_id AND e.asset = b.asset
		GROUP BY b.user_id, b.asset, b.amount
		HAVING b.amount <> COALESCE(SUM(e.amount), 0)
		ORDER BY b.user_id, b.asset
	`
	if err := h.reconcileDB.SelectContext(r.Context(), &rows, query); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to reconcile balances")
		return
	}
	normalized := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		normalized = append(normalized, map[string]any{
			"user_id":    row.UserID,
			"asset":      row.Asset,
			"balance":    valueToMoney(row.Balance),
			"entry_sum":  valueToMoney(row.EntrySum),
			"difference": valueToMoney(row.Difference),
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}
