package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"worklog/internal/transport/http/api"
)

type PermissionStore interface {
	HasPermission(ctx context.Context, role, permission string) (bool, error)
}

// RequirePermission admits authenticated users whose role grants permission.
func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			user, ok := GetUser(ctx)
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
				return
			}
			if store == nil {
				slog.Error("permission store missing", "permission", permission, "requestId", requestID)
				api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", requestID)
				return
			}

			allowed, err := store.HasPermission(ctx, user.RoleName, permission)
			switch {
			case err != nil:
				slog.Error("permission check failed", "err", err, "role", user.RoleName, "permission", permission, "requestId", requestID)
				api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", requestID)
			case !allowed:
				slog.Info("permission denied", "userId", user.UserID, "role", user.RoleName, "permission", permission, "path", r.URL.Path, "requestId", requestID)
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", requestID)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
