package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"worklog/internal/platform/querier"
)

var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

// IdempotencyStore remembers the response of a keyed request for ttl. Rows
// older than ttl are ignored here and removed by the maintenance job.
type IdempotencyStore struct {
	db  querier.Querier
	ttl time.Duration
	now func() time.Time
}

func NewIdempotencyStore(db querier.Querier, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{db: db, ttl: ttl, now: time.Now}
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// cutoff is the oldest created_at still honoured. A zero ttl keeps keys forever.
func (s *IdempotencyStore) cutoff() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.now().UTC().Add(-s.ttl)
}

// Check returns the stored response for a key already used with the same
// request. A reused key with a different request yields ErrIdempotencyConflict.
func (s *IdempotencyStore) Check(ctx context.Context, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, nil
	}
	var storedHash string
	var stored json.RawMessage
	err := s.db.QueryRow(ctx, `
    SELECT request_hash, response_json
    FROM idempotency_keys
    WHERE user_id = $1 AND key = $2 AND endpoint = $3 AND created_at >= $4
  `, userID, key, endpoint, s.cutoff()).Scan(&storedHash, &stored)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	case storedHash != requestHash:
		return nil, false, ErrIdempotencyConflict
	}
	return stored, true, nil
}

// Save records the response. An expired row under the same key is replaced;
// a live row for a different request is a conflict.
func (s *IdempotencyStore) Save(ctx context.Context, userID, endpoint, key, requestHash string, response json.RawMessage) error {
	if s == nil || s.db == nil {
		return nil
	}
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (user_id, key, endpoint, request_hash, response_json)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (user_id, key, endpoint)
    DO UPDATE SET request_hash = EXCLUDED.request_hash,
                  response_json = EXCLUDED.response_json,
                  created_at = now()
    WHERE idempotency_keys.request_hash = EXCLUDED.request_hash
       OR idempotency_keys.created_at < $6
  `, userID, key, endpoint, requestHash, response, s.cutoff())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}
