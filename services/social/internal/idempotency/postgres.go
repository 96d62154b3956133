package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresStore uses the idempotency_keys table created by the store
// schema.
type postgresStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func newPostgresStore(pool *pgxpool.Pool, ttl time.Duration) *postgresStore {
	return &postgresStore{pool: pool, ttl: ttl}
}

// Claim uses INSERT ... ON CONFLICT to atomically claim the key after
// dropping an expired row for it.
func (s *postgresStore) Claim(ctx context.Context, key string) (*Response, bool, error) {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE key = $1 AND created_at < now() - make_interval(secs => $2)`,
		key, s.ttl.Seconds()); err != nil {
		return nil, false, err
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO idempotency_keys (key) VALUES ($1) ON CONFLICT (key) DO NOTHING`, key)
	if err != nil {
		return nil, false, err
	}
	if tag.RowsAffected() == 1 {
		return nil, true, nil
	}

	var raw []byte
	if err := s.pool.QueryRow(ctx, `SELECT response FROM idempotency_keys WHERE key = $1`, key).Scan(&raw); err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false, err
	}
	return &resp, false, nil
}

func (s *postgresStore) Complete(ctx context.Context, key string, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `UPDATE idempotency_keys SET response = $1 WHERE key = $2`, data, key)
	return err
}

func (s *postgresStore) Release(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key)
	return err
}
