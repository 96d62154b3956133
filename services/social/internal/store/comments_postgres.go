package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/orbit/services/social/internal/domain"
)

// PostgresCommentStore persists comments in Postgres.
type PostgresCommentStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCommentStore creates a store backed by Postgres.
func NewPostgresCommentStore(pool *pgxpool.Pool) *PostgresCommentStore {
	return &PostgresCommentStore{pool: pool}
}

const (
	commentColumns = `c.id, c.post_id, c.user_id, c.parent_comment_id, c.content, c.created_at, c.updated_at,
	                  pr.username, pr.avatar_url`
	commentAuthor = ` LEFT JOIN profiles pr ON pr.id = c.user_id`
	commentSelect = `SELECT ` + commentColumns + ` FROM comments c` + commentAuthor
)

// commentWrite returns the row of a statement ending in RETURNING * with
// its author.
func commentWrite(stmt string) string {
	return `WITH c AS (` + stmt + `) SELECT ` + commentColumns + ` FROM c` + commentAuthor
}

func scanComment(row pgx.Row) (domain.Comment, error) {
	var (
		c                domain.Comment
		username, avatar *string
	)
	err := row.Scan(&c.ID, &c.PostID, &c.UserID, &c.ParentID, &c.Content, &c.CreatedAt, &c.UpdatedAt, &username, &avatar)
	c.Author = scanAuthor(username, avatar)
	return c, err
}

func (s *PostgresCommentStore) Get(ctx context.Context, id string) (domain.Comment, error) {
	c, err := scanComment(s.pool.QueryRow(ctx, commentSelect+` WHERE c.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comment{}, domain.NotFound("comments.get", "comment %s not found", id)
	}
	return c, err
}

func (s *PostgresCommentStore) ListByPost(ctx context.Context, postID string) ([]domain.Comment, error) {
	rows, err := s.pool.Query(ctx,
		commentSelect+`
		 WHERE c.post_id = $1
		 ORDER BY c.created_at ASC, c.id ASC`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresCommentStore) Create(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	// The parent must exist on the same post; the foreign key alone would
	// accept a comment from another thread.
	q := commentWrite(`INSERT INTO comments (post_id, user_id, parent_comment_id, content)
	                    SELECT $1, $2, $3, $4
	                    WHERE $3::text IS NULL
	                       OR EXISTS (SELECT 1 FROM comments p WHERE p.id = $3 AND p.post_id = $1)
	                    RETURNING *`)
	out, err := scanComment(s.pool.QueryRow(ctx, q, c.PostID, c.UserID, c.ParentID, c.Content))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.Comment{}, ErrUnknownParent
	case isForeignKeyViolation(err):
		return domain.Comment{}, domain.NotFound("comments.create", "post %s not found", c.PostID)
	}
	return out, err
}

func (s *PostgresCommentStore) UpdateContent(ctx context.Context, id, userID, content string) (domain.Comment, error) {
	q := commentWrite(`UPDATE comments SET content = $1, updated_at = now()
	                    WHERE id = $2 AND user_id = $3
	                    RETURNING *`)
	c, err := scanComment(s.pool.QueryRow(ctx, q, content, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comment{}, ErrNotFoundOrForbidden
	}
	return c, err
}

// Delete relies on ON DELETE CASCADE of parent_comment_id for the replies.
func (s *PostgresCommentStore) Delete(ctx context.Context, id, userID string) (domain.Comment, error) {
	q := commentWrite(`DELETE FROM comments WHERE id = $1 AND user_id = $2 RETURNING *`)
	c, err := scanComment(s.pool.QueryRow(ctx, q, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comment{}, ErrNotFoundOrForbidden
	}
	return c, err
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
