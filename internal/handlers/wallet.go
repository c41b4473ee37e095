package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"minetrade/internal/auth"
	"minetrade/internal/middleware"
	"minetrade/internal/money"
	"minetrade/internal/services"
	"minetrade/internal/websocket"
)

// GetWallet returns every supported asset with its balance; assets the user
// never touched show as explicit zeros.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	balances, err := h.wallet.State(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load wallet")
		return
	}
	normalized := make([]map[string]any, 0, len(balances))
	for _, row := range balances {
		normalized = append(normalized, map[string]any{
			"asset":   row.Asset,
			"balance": money.FormatMinor(row.Amount),
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	page := parseInt(query.Get("page"), 1)
	offset := (page - 1) * limit
	rows, err := h.entries.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load entries")
		return
	}
	normalized := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		normalized = append(normalized, map[string]any{
			"id":         valueToString(row["id"]),
			"asset":      valueToString(row["asset"]),
			"amount":     valueToMoney(row["amount"]),
			"reason":     valueToString(row["reason"]),
			"ref_id":     valueToString(row["ref_id"]),
			"created_at": row["created_at"],
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

type exchangeRequest struct {
	FromAsset string `json:"from_asset"`
	ToAsset   string `json:"to_asset"`
	Amount    string `json:"amount"`
}

func (h *Handler) Exchange(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	fromAsset, err := parseAsset(req.FromAsset)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_asset")
		return
	}
	toAsset, err := parseAsset(req.ToAsset)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_asset")
		return
	}
	amountMinor, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	result, err := h.wallet.Exchange(r.Context(), services.ExchangeRequest{
		UserID:     userID,
		FromAsset:  fromAsset,
		ToAsset:    toAsset,
		AmountFrom: amountMinor,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"exchange_id":  result.ExchangeID,
		"from_asset":   fromAsset,
		"to_asset":     toAsset,
		"amount_from":  money.FormatMinor(result.AmountFrom),
		"amount_to":    money.FormatMinor(result.AmountTo),
		"from_balance": money.FormatMinor(result.FromBalance),
		"to_balance":   money.FormatMinor(result.ToBalance),
		"stale_price":  result.StalePrice,
		"price_as_of":  result.PriceAsOf,
	})
}

func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}
