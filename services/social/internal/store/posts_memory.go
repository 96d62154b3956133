package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/orbit/services/social/internal/domain"
)

// InMemoryPostStore is a development-only in-memory implementation.
type InMemoryPostStore struct {
	mu    sync.RWMutex
	posts map[string]domain.Post
	seq   int64
	now   func() time.Time

	// onDelete runs after a post is removed, outside the lock.
	onDelete func(postID string)
	// author looks up the profile shown with a post.
	author func(userID string) *domain.Author
}

func NewInMemoryPostStore() *InMemoryPostStore {
	return &InMemoryPostStore{
		posts: make(map[string]domain.Post),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryPostStore) sorted(keep func(domain.Post) bool) []domain.Post {
	out := make([]domain.Post, 0)
	for _, p := range s.posts {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// withAuthor attaches the author's profile to a copy of p.
func (s *InMemoryPostStore) withAuthor(p domain.Post) domain.Post {
	p.Author = nil
	if s.author != nil {
		p.Author = s.author(p.UserID)
	}
	return p
}

func (s *InMemoryPostStore) withAuthors(posts []domain.Post) []domain.Post {
	for i := range posts {
		posts[i] = s.withAuthor(posts[i])
	}
	return posts
}

func window(posts []domain.Post, page domain.Page) []domain.Post {
	page = page.Normalize()
	if page.Offset >= len(posts) {
		return []domain.Post{}
	}
	end := page.Offset + page.Limit
	if end > len(posts) {
		end = len(posts)
	}
	return posts[page.Offset:end]
}

func (s *InMemoryPostStore) List(_ context.Context, page domain.Page) ([]domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.withAuthors(window(s.sorted(func(domain.Post) bool { return true }), page)), nil
}

func (s *InMemoryPostStore) ListByAuthor(_ context.Context, userID string, page domain.Page) ([]domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.withAuthors(window(s.sorted(func(p domain.Post) bool { return p.UserID == userID }), page)), nil
}

func (s *InMemoryPostStore) CountByAuthor(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.posts {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryPostStore) Get(_ context.Context, id string) (domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return domain.Post{}, domain.NotFound("posts.get", "post %s not found", id)
	}
	return s.withAuthor(p), nil
}

func (s *InMemoryPostStore) Create(_ context.Context, p domain.Post) (domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = uuid.New().String()
	s.seq++
	p.CreatedAt = s.now().Add(time.Duration(s.seq))
	p.Likes = 0
	p.CommentCount = 0
	p.ClientRef = ""
	p.Author = nil
	s.posts[p.ID] = p
	return s.withAuthor(p), nil
}

func (s *InMemoryPostStore) UpdateContent(_ context.Context, id, userID, content string) (domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok || p.UserID != userID {
		return domain.Post{}, ErrNotFoundOrForbidden
	}
	p.Content = content
	s.posts[id] = p
	return s.withAuthor(p), nil
}

func (s *InMemoryPostStore) Delete(_ context.Context, id, userID string) (domain.Post, error) {
	s.mu.Lock()
	p, ok := s.posts[id]
	if !ok || p.UserID != userID {
		s.mu.Unlock()
		return domain.Post{}, ErrNotFoundOrForbidden
	}
	delete(s.posts, id)
	hook := s.onDelete
	s.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	return s.withAuthor(p), nil
}

func (s *InMemoryPostStore) AdjustCommentCount(_ context.Context, id string, delta int) (domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return domain.Post{}, domain.NotFound("posts.adjust_comment_count", "post %s not found", id)
	}
	p.CommentCount += delta
	if p.CommentCount < 0 {
		p.CommentCount = 0
	}
	s.posts[id] = p
	return s.withAuthor(p), nil
}

func (s *InMemoryPostStore) SetLikes(_ context.Context, id string, likes int) (domain.Post, error) {
	if likes < 0 {
		return domain.Post{}, domain.Invalid("posts.set_likes", "likes must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return domain.Post{}, domain.NotFound("posts.set_likes", "post %s not found", id)
	}
	p.Likes = likes
	s.posts[id] = p
	return s.withAuthor(p), nil
}
