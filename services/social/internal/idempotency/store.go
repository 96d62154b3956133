// Package idempotency replays the response of a create request retried with
// the same Idempotency-Key.
//
// Primary backend: Redis SET NX with TTL (env REDIS_DSN).
// Fallback: Postgres INSERT ... ON CONFLICT (env DATABASE_URL).
// If neither is available, an in-memory store is used (development only).
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Response is the stored outcome of a completed request.
type Response struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// Store claims keys and remembers responses.
type Store interface {
	// Claim marks key as in progress. When key was claimed before it
	// returns claimed=false and, if the earlier request completed, its
	// response.
	Claim(ctx context.Context, key string) (prior *Response, claimed bool, err error)
	// Complete stores the response for a claimed key.
	Complete(ctx context.Context, key string, resp Response) error
	// Release forgets a claimed key so the request can be retried.
	Release(ctx context.Context, key string) error
}

// NewStore creates the best available idempotency store:
// Redis > Postgres > in-memory (dev fallback).
// When isProd is true, in-memory fallback is not allowed and the function
// returns nil with an error.
func NewStore(redisDSN string, pool *pgxpool.Pool, ttl time.Duration, isProd bool) (Store, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if redisDSN != "" {
		return newRedisStore(redisDSN, ttl), nil
	}
	if pool != nil {
		return newPostgresStore(pool, ttl), nil
	}
	if isProd {
		return nil, errors.New("production requires REDIS_DSN or DATABASE_URL for idempotency; in-memory store is not allowed")
	}
	return newMemoryStore(ttl), nil
}
