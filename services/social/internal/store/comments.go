// Package store persists posts, comments, likes, profiles and follows.
//
// Each store has an in-memory implementation for development and tests and
// a Postgres implementation for production. The HTTP client in
// internal/client implements the same interfaces against a remote service.
package store

import (
	"context"

	"github.com/example/orbit/services/social/internal/domain"
)

// CommentStore defines the contract for comment persistence.
type CommentStore interface {
	Get(ctx context.Context, id string) (domain.Comment, error)
	// ListByPost returns every comment of a post ordered by created_at
	// ascending. Replies are not nested; see package thread.
	ListByPost(ctx context.Context, postID string) ([]domain.Comment, error)
	Create(ctx context.Context, c domain.Comment) (domain.Comment, error)
	UpdateContent(ctx context.Context, id, userID, content string) (domain.Comment, error)
	// Delete removes the comment and its replies. It returns the deleted
	// comment.
	Delete(ctx context.Context, id, userID string) (domain.Comment, error)
}

// Sentinel errors
var (
	ErrNotFoundOrForbidden = &domain.Error{Kind: domain.KindNotFound, Msg: "not found or not owned by user"}
	ErrUsernameTaken       = &domain.Error{Kind: domain.KindValidation, Msg: "username is already taken"}
	ErrUnknownParent       = &domain.Error{Kind: domain.KindValidation, Msg: "parent comment does not belong to this post"}
)
