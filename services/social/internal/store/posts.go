package store

import (
	"context"

	"github.com/example/orbit/services/social/internal/domain"
)

// PostStore defines the contract for post persistence. Counters are only
// changed through AdjustCommentCount and SetLikes and never drop below zero.
type PostStore interface {
	// List returns posts newest first.
	List(ctx context.Context, page domain.Page) ([]domain.Post, error)
	ListByAuthor(ctx context.Context, userID string, page domain.Page) ([]domain.Post, error)
	CountByAuthor(ctx context.Context, userID string) (int, error)
	Get(ctx context.Context, id string) (domain.Post, error)
	Create(ctx context.Context, p domain.Post) (domain.Post, error)
	UpdateContent(ctx context.Context, id, userID, content string) (domain.Post, error)
	// Delete removes the post together with its comments and likes.
	Delete(ctx context.Context, id, userID string) (domain.Post, error)
	AdjustCommentCount(ctx context.Context, id string, delta int) (domain.Post, error)
	SetLikes(ctx context.Context, id string, likes int) (domain.Post, error)
}
