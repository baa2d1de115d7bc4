package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"worklog/internal/requestctx"
)

const requestIDHeader = "X-Request-ID"

// RequestID honours a caller-supplied id when it is short and made of safe
// characters, otherwise mints a UUID. The id is echoed on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(requestctx.WithRequestID(r.Context(), id)))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

func GetRequestID(ctx context.Context) string {
	return requestctx.GetRequestID(ctx)
}
