package store

import (
	"context"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LikeStore keeps the (user, post) like set. Add and Remove are
// idempotent; the post's like counter is maintained separately.
type LikeStore interface {
	Add(ctx context.Context, userID, postID string) error
	Remove(ctx context.Context, userID, postID string) error
	// ListByUser returns the ids of posts userID likes.
	ListByUser(ctx context.Context, userID string) ([]string, error)
}

type InMemoryLikeStore struct {
	mu    sync.RWMutex
	likes map[string]map[string]bool // user_id -> post_id set
	// exists, when set, rejects likes on unknown posts.
	exists func(postID string) bool
}

func NewInMemoryLikeStore() *InMemoryLikeStore {
	return &InMemoryLikeStore{likes: make(map[string]map[string]bool)}
}

func (s *InMemoryLikeStore) Add(_ context.Context, userID, postID string) error {
	if s.exists != nil && !s.exists(postID) {
		return ErrNotFoundOrForbidden
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.likes[userID] == nil {
		s.likes[userID] = make(map[string]bool)
	}
	s.likes[userID][postID] = true
	return nil
}

func (s *InMemoryLikeStore) Remove(_ context.Context, userID, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.likes[userID], postID)
	return nil
}

func (s *InMemoryLikeStore) ListByUser(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.likes[userID]))
	for id := range s.likes[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// DeleteByPost drops every like of a post.
func (s *InMemoryLikeStore) DeleteByPost(postID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, posts := range s.likes {
		delete(posts, postID)
	}
}

// PostgresLikeStore persists likes in Postgres.
type PostgresLikeStore struct {
	pool *pgxpool.Pool
}

func NewPostgresLikeStore(pool *pgxpool.Pool) *PostgresLikeStore {
	return &PostgresLikeStore{pool: pool}
}

func (s *PostgresLikeStore) Add(ctx context.Context, userID, postID string) error {
	const q = `INSERT INTO likes (user_id, post_id)
	           VALUES ($1, $2)
	           ON CONFLICT (user_id, post_id) DO NOTHING`
	_, err := s.pool.Exec(ctx, q, userID, postID)
	if isForeignKeyViolation(err) {
		return ErrNotFoundOrForbidden
	}
	return err
}

func (s *PostgresLikeStore) Remove(ctx context.Context, userID, postID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM likes WHERE user_id = $1 AND post_id = $2`, userID, postID)
	return err
}

func (s *PostgresLikeStore) ListByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT post_id FROM likes WHERE user_id = $1 ORDER BY post_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
