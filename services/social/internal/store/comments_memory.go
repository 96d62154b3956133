package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/orbit/services/social/internal/domain"
)

// InMemoryCommentStore is a development-only in-memory implementation.
type InMemoryCommentStore struct {
	mu       sync.RWMutex
	comments map[string]domain.Comment // id -> comment
	seq      int64
	now      func() time.Time
	// author looks up the profile shown with a comment.
	author func(userID string) *domain.Author
}

func NewInMemoryCommentStore() *InMemoryCommentStore {
	return &InMemoryCommentStore{
		comments: make(map[string]domain.Comment),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryCommentStore) Get(_ context.Context, id string) (domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return domain.Comment{}, domain.NotFound("comments.get", "comment %s not found", id)
	}
	return s.withAuthor(c), nil
}

func (s *InMemoryCommentStore) withAuthor(c domain.Comment) domain.Comment {
	c.Author = nil
	if s.author != nil {
		c.Author = s.author(c.UserID)
	}
	return c
}

func (s *InMemoryCommentStore) ListByPost(_ context.Context, postID string) ([]domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Comment, 0)
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, s.withAuthor(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *InMemoryCommentStore) Create(_ context.Context, c domain.Comment) (domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ParentID != nil {
		parent, ok := s.comments[*c.ParentID]
		if !ok || parent.PostID != c.PostID {
			return domain.Comment{}, ErrUnknownParent
		}
	}

	c.ID = uuid.New().String()
	// created_at is strictly increasing within the store.
	s.seq++
	c.CreatedAt = s.now().Add(time.Duration(s.seq))
	c.UpdatedAt = nil
	c.ClientRef = ""
	c.Author = nil
	s.comments[c.ID] = c
	return s.withAuthor(c), nil
}

func (s *InMemoryCommentStore) UpdateContent(_ context.Context, id, userID, content string) (domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok || c.UserID != userID {
		return domain.Comment{}, ErrNotFoundOrForbidden
	}
	c.Content = content
	now := s.now()
	c.UpdatedAt = &now
	s.comments[id] = c
	return s.withAuthor(c), nil
}

func (s *InMemoryCommentStore) Delete(_ context.Context, id, userID string) (domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok || c.UserID != userID {
		return domain.Comment{}, ErrNotFoundOrForbidden
	}

	doomed := map[string]bool{id: true}
	for grew := true; grew; {
		grew = false
		for cid, other := range s.comments {
			if !doomed[cid] && other.ParentID != nil && doomed[*other.ParentID] {
				doomed[cid] = true
				grew = true
			}
		}
	}
	for cid := range doomed {
		delete(s.comments, cid)
	}
	return s.withAuthor(c), nil
}

// DeleteByPost drops every comment of a post. Used when a post is removed.
func (s *InMemoryCommentStore) DeleteByPost(postID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.comments {
		if c.PostID == postID {
			delete(s.comments, id)
		}
	}
}
