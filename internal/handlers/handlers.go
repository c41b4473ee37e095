package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"minetrade/internal/models"
	"minetrade/internal/money"
	"minetrade/internal/services"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps domain sentinels onto HTTP statuses; anything
// unmapped is an internal error and the detail stays off the wire.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInsufficientFunds):
		respondError(w, http.StatusBadRequest, "insufficient_funds")
	case errors.Is(err, services.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, "invalid_amount")
	case errors.Is(err, services.ErrInvalidAsset):
		respondError(w, http.StatusBadRequest, "invalid_asset")
	case errors.Is(err, services.ErrSameAsset):
		respondError(w, http.StatusBadRequest, "same_asset")
	case errors.Is(err, services.ErrPlanBounds):
		respondError(w, http.StatusBadRequest, "plan_bounds_violation")
	case errors.Is(err, services.ErrPriceUnavailable):
		respondError(w, http.StatusServiceUnavailable, "price_unavailable")
	case errors.Is(err, services.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "invalid_transition")
	case errors.Is(err, services.ErrConflict):
		respondError(w, http.StatusConflict, "conflict")
	case errors.Is(err, services.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, services.ErrUnauthorized):
		respondError(w, http.StatusForbidden, "forbidden")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error")
	}
}

func valueToString(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func valueToMoney(value any) string {
	return money.FormatMinor(money.ValueToInt64(value))
}

func orderPayload(order models.MiningOrder) map[string]any {
	payload := map[string]any{
		"id":            order.ID,
		"user_id":       order.UserID,
		"plan_id":       order.PlanID,
		"principal":     money.FormatMinor(order.Principal),
		"status":        order.Status,
		"accrued_days":  order.AccruedDays,
		"accrued_total": money.FormatMinor(order.AccruedTotal),
		"created_at":    order.CreatedAt.UTC().Format(time.RFC3339),
	}
	if order.Note != nil {
		payload["note"] = *order.Note
	}
	if order.ActivatedAt != nil {
		payload["activated_at"] = order.ActivatedAt.UTC().Format(time.RFC3339)
	}
	if order.ClosedAt != nil {
		payload["closed_at"] = order.ClosedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

func topupPayload(record models.TopupRecord) map[string]any {
	payload := map[string]any{
		"id":         record.ID,
		"user_id":    record.UserID,
		"admin_id":   record.AdminID,
		"asset":      record.Asset,
		"amount":     money.FormatMinor(record.Amount),
		"created_at": record.CreatedAt.UTC().Format(time.RFC3339),
	}
	if record.Note != nil {
		payload["note"] = *record.Note
	}
	if record.ClientRequestID != nil {
		payload["client_request_id"] = *record.ClientRequestID
	}
	return payload
}
