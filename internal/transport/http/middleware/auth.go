package middleware

import (
	"context"
	"net/http"
	"strings"

	"worklog/internal/domain/auth"
	"worklog/internal/requestctx"
	"worklog/internal/transport/http/api"
)

type ctxKey struct{}

// Auth attaches the bearer token's user to the context. Requests without an
// Authorization header continue anonymously and RequirePermission decides;
// a header that does not carry a valid token is refused outright.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
				api.Fail(w, http.StatusUnauthorized, "invalid_token", "expected a bearer token", GetRequestID(r.Context()))
				return
			}
			claims, err := auth.ParseToken(secret, strings.TrimSpace(token))
			if err != nil {
				requestctx.Logger(r.Context()).Info("bearer token rejected", "err", err)
				api.Fail(w, http.StatusUnauthorized, "invalid_token", "token is invalid or expired", GetRequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), auth.UserContext{
				UserID:   claims.UserID,
				Email:    claims.Email,
				RoleName: claims.RoleName,
			})))
		})
	}
}

func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKey{}).(auth.UserContext)
	return user, ok
}
