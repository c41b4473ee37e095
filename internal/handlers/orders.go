package handlers

import (
	"encoding/json"
	"net/http"

	"minetrade/internal/middleware"
	"minetrade/internal/money"
	"minetrade/internal/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load plans")
		return
	}
	normalized := make([]map[string]any, 0, len(plans))
	for _, plan := range plans {
		normalized = append(normalized, map[string]any{
			"id":             plan.ID,
			"name":           plan.Name,
			"cycle_days":     plan.CycleDays,
			"min_amount":     money.FormatMinor(plan.MinAmount),
			"max_amount":     money.FormatMinor(plan.MaxAmount),
			"daily_rate":     plan.DailyRate.String(),
			"abort_fee_rate": plan.AbortFeeRate.String(),
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

type createOrderRequest struct {
	PlanID string  `json:"plan_id"`
	Amount string  `json:"amount"`
	Note   *string `json:"note"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.PlanID == "" {
		respondError(w, http.StatusBadRequest, "plan_id is required")
		return
	}
	amountMinor, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	order, err := h.mining.Create(r.Context(), services.CreateOrderRequest{
		UserID: userID,
		PlanID: req.PlanID,
		Amount: amountMinor,
		Note:   req.Note,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, orderPayload(order))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	orders, err := h.orders.ListByUser(r.Context(), userID)
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

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	order, err := h.orders.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found")
		return
	}
	if order.UserID != userID {
		respondError(w, http.StatusNotFound, "not_found")
		return
	}
	respondJSON(w, http.StatusOK, orderPayload(order))
}

func (h *Handler) AbortOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	order, err := h.mining.Abort(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderPayload(order))
}
