package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"worklog/internal/transport/http/api"
	"worklog/internal/transport/http/shared"
)

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*tokenLimiter)

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(l *tokenLimiter) {
		if fn != nil {
			l.keyFn = fn
		}
	}
}

// RateLimit allows limit requests per window for each key, refilling
// continuously. Keys default to the authenticated user, else the client IP.
func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	l := newTokenLimiter(limit, window, actorOrIPKey)
	for _, opt := range opts {
		opt(l)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.enforce(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// SensitiveMutationRateLimit adds tighter budgets for login and for the
// calls that move money: draft creation, ledger edits, finalize and
// mark-paid.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	authLimit := max(baseLimit/4, 1)
	loginByIP := newTokenLimiter(authLimit, window, clientIPKey)
	loginByEmail := newTokenLimiter(authLimit, window, AuthEmailOrIPKey("email"))
	money := newTokenLimiter(max(baseLimit/2, 1), window, actorOrIPKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch sensitiveRateScope(r) {
			case sensitiveScopeAuth:
				if !loginByIP.enforce(w, r) || !loginByEmail.enforce(w, r) {
					return
				}
			case sensitiveScopeActor:
				if !money.enforce(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func AuthEmailOrIPKey(field string) RateLimitKeyFunc {
	if field = strings.TrimSpace(field); field == "" {
		field = "email"
	}
	return func(r *http.Request) string {
		if email := extractJSONField(r, field); email != "" {
			return "email:" + strings.ToLower(email)
		}
		return clientIPKey(r)
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return clientIPKey(r)
}

func clientIPKey(r *http.Request) string {
	return "ip:" + shared.ClientIP(r)
}

type tokenBucket struct {
	tokens float64
	seen   time.Time
}

type tokenLimiter struct {
	mu        sync.Mutex
	capacity  float64
	window    time.Duration
	keyFn     RateLimitKeyFunc
	buckets   map[string]*tokenBucket
	nextSweep time.Time
	now       func() time.Time
}

func newTokenLimiter(limit int, window time.Duration, keyFn RateLimitKeyFunc) *tokenLimiter {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	return &tokenLimiter{
		capacity: float64(limit),
		window:   window,
		keyFn:    keyFn,
		buckets:  map[string]*tokenBucket{},
		now:      time.Now,
	}
}

// take spends one token for key. It reports whether the request may
// proceed, the whole tokens left and how long until the next token.
func (l *tokenLimiter) take(key string) (bool, int, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: l.capacity, seen: now}
		l.buckets[key] = b
	}
	refill := float64(now.Sub(b.seen)) * l.capacity / float64(l.window)
	b.tokens = math.Min(l.capacity, b.tokens+refill)
	b.seen = now

	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) * float64(l.window) / l.capacity)
		return false, 0, wait
	}
	b.tokens--
	return true, int(b.tokens), 0
}

// sweep forgets buckets that have refilled completely. Callers hold l.mu.
func (l *tokenLimiter) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.seen) >= l.window {
			delete(l.buckets, key)
		}
	}
	l.nextSweep = now.Add(l.window)
}

func (l *tokenLimiter) enforce(w http.ResponseWriter, r *http.Request) bool {
	if l.capacity <= 0 || l.window <= 0 {
		return true
	}
	key := l.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}

	ok, remaining, wait := l.take(key)
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(int(l.capacity)))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if ok {
		return true
	}

	retryAfter := max(int(math.Ceil(wait.Seconds())), 1)
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(retryAfter))
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	slog.Warn("rate limit exceeded",
		"key", key,
		"method", r.Method,
		"path", r.URL.Path,
		"limit", int(l.capacity),
		"windowSec", int(l.window.Seconds()),
		"requestId", GetRequestID(r.Context()),
	)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

// extractJSONField peeks at a string field of a JSON body and restores the
// body for the handler.
func extractJSONField(r *http.Request, field string) string {
	if r == nil || r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var payload map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &payload) != nil {
		return ""
	}
	var value string
	if json.Unmarshal(payload[field], &value) != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

type sensitiveScope string

const (
	sensitiveScopeNone  sensitiveScope = ""
	sensitiveScopeAuth  sensitiveScope = "auth"
	sensitiveScopeActor sensitiveScope = "actor"
)

type sensitiveRoute struct {
	scope   sensitiveScope
	methods string
	match   func(path string) bool
}

var sensitiveRoutes = []sensitiveRoute{
	{scope: sensitiveScopeAuth, methods: "POST", match: func(p string) bool { return p == "/auth/login" }},
	{scope: sensitiveScopeActor, methods: "POST", match: func(p string) bool { return p == "/rcti" }},
	{scope: sensitiveScopeActor, methods: "POST PATCH DELETE", match: func(p string) bool {
		return p == "/rcti-deductions" || strings.HasPrefix(p, "/rcti-deductions/")
	}},
	{scope: sensitiveScopeActor, methods: "POST", match: func(p string) bool {
		return strings.HasPrefix(p, "/rcti/") && (strings.HasSuffix(p, "/finalize") || strings.HasSuffix(p, "/mark-paid"))
	}},
}

func sensitiveRateScope(r *http.Request) sensitiveScope {
	if r == nil {
		return sensitiveScopeNone
	}
	method := strings.ToUpper(r.Method)
	path := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api"), "/")
	for _, route := range sensitiveRoutes {
		if strings.Contains(" "+route.methods+" ", " "+method+" ") && route.match(path) {
			return route.scope
		}
	}
	return sensitiveScopeNone
}
