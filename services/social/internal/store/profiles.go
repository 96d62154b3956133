package store

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/orbit/services/social/internal/domain"
)

// ProfileStore keeps one profile per user with a unique username.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (domain.Profile, error)
	GetByUsername(ctx context.Context, username string) (domain.Profile, error)
	// Upsert creates or replaces the profile with p.ID. A username held by
	// another user yields ErrUsernameTaken.
	Upsert(ctx context.Context, p domain.Profile) (domain.Profile, error)
}

type InMemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile // user_id -> profile
}

func NewInMemoryProfileStore() *InMemoryProfileStore {
	return &InMemoryProfileStore{profiles: make(map[string]domain.Profile)}
}

func (s *InMemoryProfileStore) Get(_ context.Context, userID string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return domain.Profile{}, domain.NotFound("profiles.get", "profile not found")
	}
	return p, nil
}

// author returns the public profile of userID, or nil without one.
func (s *InMemoryProfileStore) author(userID string) *domain.Author {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil
	}
	return domain.AuthorOf(p)
}

func (s *InMemoryProfileStore) GetByUsername(_ context.Context, username string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.Username == username {
			return p, nil
		}
	}
	return domain.Profile{}, domain.NotFound("profiles.get", "profile %s not found", username)
}

func (s *InMemoryProfileStore) Upsert(_ context.Context, p domain.Profile) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.profiles {
		if id != p.ID && other.Username == p.Username {
			return domain.Profile{}, ErrUsernameTaken
		}
	}
	s.profiles[p.ID] = p
	return p, nil
}

// PostgresProfileStore persists profiles in Postgres.
type PostgresProfileStore struct {
	pool *pgxpool.Pool
}

func NewPostgresProfileStore(pool *pgxpool.Pool) *PostgresProfileStore {
	return &PostgresProfileStore{pool: pool}
}

func (s *PostgresProfileStore) get(ctx context.Context, where string, arg string) (domain.Profile, error) {
	var p domain.Profile
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, avatar_url, bio FROM profiles WHERE `+where+` = $1`, arg).
		Scan(&p.ID, &p.Username, &p.AvatarURL, &p.Bio)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, domain.NotFound("profiles.get", "profile not found")
	}
	return p, err
}

func (s *PostgresProfileStore) Get(ctx context.Context, userID string) (domain.Profile, error) {
	return s.get(ctx, "id", userID)
}

func (s *PostgresProfileStore) GetByUsername(ctx context.Context, username string) (domain.Profile, error) {
	return s.get(ctx, "username", username)
}

func (s *PostgresProfileStore) Upsert(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	const q = `INSERT INTO profiles (id, username, avatar_url, bio)
	           VALUES ($1, $2, $3, $4)
	           ON CONFLICT (id) DO UPDATE SET
	             username = EXCLUDED.username,
	             avatar_url = EXCLUDED.avatar_url,
	             bio = EXCLUDED.bio,
	             updated_at = now()
	           RETURNING id, username, avatar_url, bio`
	var out domain.Profile
	err := s.pool.QueryRow(ctx, q, p.ID, p.Username, p.AvatarURL, p.Bio).
		Scan(&out.ID, &out.Username, &out.AvatarURL, &out.Bio)
	if isUniqueViolation(err) {
		return domain.Profile{}, ErrUsernameTaken
	}
	return out, err
}
