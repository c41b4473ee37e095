package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubRoleStore struct {
	roleFn func(ctx context.Context, userID string) (string, error)
}

func (s stubRoleStore) Role(ctx context.Context, userID string) (string, error) {
	return s.roleFn(ctx, userID)
}

func TestRequireRoleMissingUser(t *testing.T) {
	handler := RequireRole(stubRoleStore{
		roleFn: func(context.Context, string) (string, error) {
			t.Fatalf("unexpected call")
			return "", nil
		},
	}, "admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not be called")
	}))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRequireRolePlainUser(t *testing.T) {
	handler := RequireRole(stubRoleStore{
		roleFn: func(context.Context, string) (string, error) {
			return "", nil
		},
	}, "admin", "sub-admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not be called")
	}))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(contextWithUser(req.Context(), "user-1"))
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRequireRoleDisallowedRole(t *testing.T) {
	handler := RequireRole(stubRoleStore{
		roleFn: func(context.Context, string) (string, error) {
			return "sub-admin", nil
		},
	}, "admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not be called")
	}))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(contextWithUser(req.Context(), "user-1"))
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRequireRoleAllowed(t *testing.T) {
	handler := RequireRole(stubRoleStore{
		roleFn: func(context.Context, string) (string, error) {
			return "sub-admin", nil
		},
	}, "admin", "sub-admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RoleFromContext(r.Context()) != "sub-admin" {
			t.Fatalf("expected role in context")
		}
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(contextWithUser(req.Context(), "user-1"))
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func contextWithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
