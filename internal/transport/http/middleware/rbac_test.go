package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"worklog/internal/domain/auth"
	"worklog/internal/platform/config"
)

func TestRequirePermission(t *testing.T) {
	policy := auth.NewAccessPolicy(config.Access{
		ReadRoles:     []string{"admin", "viewer"},
		FinalizeRoles: []string{"admin"},
	})
	handler := RequirePermission(auth.PermFinalize, policy)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{"anonymous", context.Background(), http.StatusUnauthorized},
		{"viewer", WithUser(context.Background(), auth.UserContext{UserID: "2", RoleName: auth.RoleViewer}), http.StatusForbidden},
		{"admin", WithUser(context.Background(), auth.UserContext{UserID: "1", RoleName: auth.RoleAdmin}), http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/rcti/1/finalize", nil).WithContext(tc.ctx)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

type brokenPermissions struct{}

func (brokenPermissions) HasPermission(context.Context, string, string) (bool, error) {
	return false, errors.New("lookup failed")
}

func TestRequirePermissionStoreFailure(t *testing.T) {
	ctx := WithUser(context.Background(), auth.UserContext{UserID: "1", RoleName: auth.RoleAdmin})
	for name, store := range map[string]PermissionStore{"error": brokenPermissions{}, "missing": nil} {
		t.Run(name, func(t *testing.T) {
			handler := RequirePermission(auth.PermRead, store)(http.HandlerFunc(noContent))
			req := httptest.NewRequest(http.MethodGet, "/api/rcti", nil).WithContext(ctx)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", rec.Code)
			}
		})
	}
}
