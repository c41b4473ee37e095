package store

import (
	"context"
	"database/sql"
	"testing"
)

func TestAdminStoreRoleNone(t *testing.T) {
	s := NewAdminStore(stubDB{
		getFn: func(context.Context, any, string, ...any) error {
			return sql.ErrNoRows
		},
	})
	role, err := s.Role(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != "" {
		t.Fatalf("expected empty role, got %q", role)
	}
}

func TestAdminStoreRole(t *testing.T) {
	s := NewAdminStore(stubDB{
		getFn: func(_ context.Context, dest any, _ string, _ ...any) error {
			*dest.(*string) = "sub-admin"
			return nil
		},
	})
	role, err := s.Role(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != "sub-admin" {
		t.Fatalf("unexpected role: %q", role)
	}
}
