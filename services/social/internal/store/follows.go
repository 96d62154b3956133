package store

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/orbit/services/social/internal/domain"
)

// FollowStore keeps who follows whom. Follow and Unfollow are idempotent.
type FollowStore interface {
	Follow(ctx context.Context, followerID, followingID string) error
	Unfollow(ctx context.Context, followerID, followingID string) error
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	Counts(ctx context.Context, userID string) (domain.FollowCounts, error)
}

func checkFollow(followerID, followingID string) error {
	if followerID == followingID {
		return domain.Invalid("follows.follow", "cannot follow yourself")
	}
	return nil
}

type InMemoryFollowStore struct {
	mu      sync.RWMutex
	follows map[domain.Follow]bool
}

func NewInMemoryFollowStore() *InMemoryFollowStore {
	return &InMemoryFollowStore{follows: make(map[domain.Follow]bool)}
}

func (s *InMemoryFollowStore) Follow(_ context.Context, followerID, followingID string) error {
	if err := checkFollow(followerID, followingID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.follows[domain.Follow{FollowerID: followerID, FollowingID: followingID}] = true
	return nil
}

func (s *InMemoryFollowStore) Unfollow(_ context.Context, followerID, followingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.follows, domain.Follow{FollowerID: followerID, FollowingID: followingID})
	return nil
}

func (s *InMemoryFollowStore) IsFollowing(_ context.Context, followerID, followingID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.follows[domain.Follow{FollowerID: followerID, FollowingID: followingID}], nil
}

func (s *InMemoryFollowStore) Counts(_ context.Context, userID string) (domain.FollowCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c domain.FollowCounts
	for f := range s.follows {
		if f.FollowingID == userID {
			c.Followers++
		}
		if f.FollowerID == userID {
			c.Following++
		}
	}
	return c, nil
}

// PostgresFollowStore persists follows in Postgres.
type PostgresFollowStore struct {
	pool *pgxpool.Pool
}

func NewPostgresFollowStore(pool *pgxpool.Pool) *PostgresFollowStore {
	return &PostgresFollowStore{pool: pool}
}

func (s *PostgresFollowStore) Follow(ctx context.Context, followerID, followingID string) error {
	if err := checkFollow(followerID, followingID); err != nil {
		return err
	}
	const q = `INSERT INTO follows (follower_id, following_id)
	           VALUES ($1, $2)
	           ON CONFLICT (follower_id, following_id) DO NOTHING`
	_, err := s.pool.Exec(ctx, q, followerID, followingID)
	return err
}

func (s *PostgresFollowStore) Unfollow(ctx context.Context, followerID, followingID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`, followerID, followingID)
	return err
}

func (s *PostgresFollowStore) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND following_id = $2)`,
		followerID, followingID).Scan(&ok)
	return ok, err
}

func (s *PostgresFollowStore) Counts(ctx context.Context, userID string) (domain.FollowCounts, error) {
	const q = `SELECT
	             (SELECT COUNT(*) FROM follows WHERE following_id = $1),
	             (SELECT COUNT(*) FROM follows WHERE follower_id = $1)`
	var c domain.FollowCounts
	err := s.pool.QueryRow(ctx, q, userID).Scan(&c.Followers, &c.Following)
	return c, err
}
