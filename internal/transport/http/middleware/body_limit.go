package middleware

import (
	"net/http"
	"strconv"

	"worklog/internal/transport/http/api"
)

// BodyLimit caps request bodies of mutating calls. A declared length over
// the cap is refused before the handler runs; undeclared bodies are cut off
// by http.MaxBytesReader while decoding.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes <= 0 || !carriesBody(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > maxBytes {
				api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large",
					"request body exceeds "+strconv.FormatInt(maxBytes, 10)+" bytes", GetRequestID(r.Context()))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func carriesBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
