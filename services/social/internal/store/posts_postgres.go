package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/orbit/services/social/internal/domain"
)

// PostgresPostStore persists posts in Postgres.
type PostgresPostStore struct {
	pool *pgxpool.Pool
}

func NewPostgresPostStore(pool *pgxpool.Pool) *PostgresPostStore {
	return &PostgresPostStore{pool: pool}
}

// Post queries read from "p" joined with the author's profile; writes
// name their RETURNING rows "p" in a CTE.
const (
	postColumns = `p.id, p.user_id, p.content, p.image_url, p.created_at, p.likes, p.comment_count,
	               pr.username, pr.avatar_url`
	postAuthor = ` LEFT JOIN profiles pr ON pr.id = p.user_id`
	postSelect = `SELECT ` + postColumns + ` FROM posts p` + postAuthor
)

// postWrite wraps a data-modifying statement ending in RETURNING * so the
// written row comes back with its author.
func postWrite(stmt string) string {
	return `WITH p AS (` + stmt + `) SELECT ` + postColumns + ` FROM p` + postAuthor
}

func scanPost(row pgx.Row) (domain.Post, error) {
	var (
		p                domain.Post
		username, avatar *string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Content, &p.ImageURL, &p.CreatedAt, &p.Likes, &p.CommentCount, &username, &avatar)
	p.Author = scanAuthor(username, avatar)
	return p, err
}

// scanAuthor builds an Author from LEFT JOIN columns, which are NULL for
// users without a profile.
func scanAuthor(username, avatar *string) *domain.Author {
	if username == nil {
		return nil
	}
	a := &domain.Author{Username: *username}
	if avatar != nil {
		a.AvatarURL = *avatar
	}
	return a
}

func (s *PostgresPostStore) queryPosts(ctx context.Context, q string, args ...any) ([]domain.Post, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresPostStore) List(ctx context.Context, page domain.Page) ([]domain.Post, error) {
	page = page.Normalize()
	return s.queryPosts(ctx,
		postSelect+`
		 ORDER BY p.created_at DESC, p.id DESC
		 LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
}

func (s *PostgresPostStore) ListByAuthor(ctx context.Context, userID string, page domain.Page) ([]domain.Post, error) {
	page = page.Normalize()
	return s.queryPosts(ctx,
		postSelect+`
		 WHERE p.user_id = $1
		 ORDER BY p.created_at DESC, p.id DESC
		 LIMIT $2 OFFSET $3`, userID, page.Limit, page.Offset)
}

func (s *PostgresPostStore) CountByAuthor(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (s *PostgresPostStore) Get(ctx context.Context, id string) (domain.Post, error) {
	p, err := scanPost(s.pool.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Post{}, domain.NotFound("posts.get", "post %s not found", id)
	}
	return p, err
}

func (s *PostgresPostStore) Create(ctx context.Context, p domain.Post) (domain.Post, error) {
	q := postWrite(`INSERT INTO posts (user_id, content, image_url)
	                 VALUES ($1, $2, $3)
	                 RETURNING *`)
	return scanPost(s.pool.QueryRow(ctx, q, p.UserID, p.Content, p.ImageURL))
}

func (s *PostgresPostStore) UpdateContent(ctx context.Context, id, userID, content string) (domain.Post, error) {
	q := postWrite(`UPDATE posts SET content = $1
	                 WHERE id = $2 AND user_id = $3
	                 RETURNING *`)
	p, err := scanPost(s.pool.QueryRow(ctx, q, content, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Post{}, ErrNotFoundOrForbidden
	}
	return p, err
}

// Delete relies on ON DELETE CASCADE for comments and likes.
func (s *PostgresPostStore) Delete(ctx context.Context, id, userID string) (domain.Post, error) {
	q := postWrite(`DELETE FROM posts WHERE id = $1 AND user_id = $2 RETURNING *`)
	p, err := scanPost(s.pool.QueryRow(ctx, q, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Post{}, ErrNotFoundOrForbidden
	}
	return p, err
}

func (s *PostgresPostStore) AdjustCommentCount(ctx context.Context, id string, delta int) (domain.Post, error) {
	q := postWrite(`UPDATE posts SET comment_count = GREATEST(comment_count + $1, 0)
	                 WHERE id = $2
	                 RETURNING *`)
	p, err := scanPost(s.pool.QueryRow(ctx, q, delta, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Post{}, domain.NotFound("posts.adjust_comment_count", "post %s not found", id)
	}
	return p, err
}

func (s *PostgresPostStore) SetLikes(ctx context.Context, id string, likes int) (domain.Post, error) {
	if likes < 0 {
		return domain.Post{}, domain.Invalid("posts.set_likes", "likes must not be negative")
	}
	q := postWrite(`UPDATE posts SET likes = $1 WHERE id = $2 RETURNING *`)
	p, err := scanPost(s.pool.QueryRow(ctx, q, likes, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Post{}, domain.NotFound("posts.set_likes", "post %s not found", id)
	}
	return p, err
}
