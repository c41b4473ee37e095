package middleware

import (
	"context"
	"net/http"
)

type RoleStore interface {
	Role(ctx context.Context, userID string) (string, error)
}

// RequireRole resolves the caller's administrator role and rejects the
// request unless it is one of the allowed roles. The resolved role is placed
// in the request context for downstream handlers.
func RequireRole(roles RoleStore, allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			role, err := roles.Role(r.Context(), userID)
			if err != nil {
				http.Error(w, "unable to verify role", http.StatusInternalServerError)
				return
			}
			if role == "" {
				http.Error(w, "admin privileges required", http.StatusForbidden)
				return
			}
			permitted := false
			for _, candidate := range allowed {
				if role == candidate {
					permitted = true
					break
				}
			}
			if !permitted {
				http.Error(w, "missing required role", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(withRole(r.Context(), role)))
		})
	}
}
