package reconcile

import (
	"context"
	"sort"
	"sync"

	"github.com/example/orbit/services/social/internal/domain"
)

// LikeWriter changes like membership.
type LikeWriter interface {
	Add(ctx context.Context, userID, postID string) error
	Remove(ctx context.Context, userID, postID string) error
}

// LikeCounter reads and writes a post's like counter.
type LikeCounter interface {
	Get(ctx context.Context, id string) (domain.Post, error)
	SetLikes(ctx context.Context, id string, likes int) (domain.Post, error)
}

// LikeState is what a view shows for one post.
type LikeState struct {
	Liked bool
	Likes int
}

// LikeToggler keeps the set of posts the current user likes and performs
// toggles in two writes: membership first, then the counter computed from
// a fresh read of the post.
type LikeToggler struct {
	likes   LikeWriter
	posts   LikeCounter
	tracker *Tracker

	mu    sync.RWMutex
	liked map[string]bool
}

func NewLikeToggler(likes LikeWriter, posts LikeCounter, tracker *Tracker) *LikeToggler {
	if tracker == nil {
		tracker = NewTracker()
	}
	return &LikeToggler{likes: likes, posts: posts, tracker: tracker, liked: make(map[string]bool)}
}

// Reset replaces the liked set.
func (l *LikeToggler) Reset(postIDs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.liked = make(map[string]bool, len(postIDs))
	for _, id := range postIDs {
		l.liked[id] = true
	}
}

func (l *LikeToggler) Liked(postID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.liked[postID]
}

func (l *LikeToggler) LikedIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.liked))
	for id := range l.liked {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (l *LikeToggler) set(postID string, liked bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if liked {
		l.liked[postID] = true
		return
	}
	delete(l.liked, postID)
}

// Toggle flips the like of userID on postID. current is the like count
// the caller displays. show is called with the optimistic state before any
// write and again whenever the state the caller should display changes.
//
// A failed membership write restores both the liked flag and the count.
// A failed counter write keeps the new membership and restores the count.
// Both return the error; the second one is tagged with op "like.count".
func (l *LikeToggler) Toggle(ctx context.Context, userID, postID string, current int, show func(LikeState)) (LikeState, error) {
	const op = "like"
	if userID == "" {
		return LikeState{}, domain.Unauthorized(op, "sign in to like posts")
	}
	if show == nil {
		show = func(LikeState) {}
	}

	m, err := l.tracker.Begin(LikeTarget(postID), "")
	if err != nil {
		return LikeState{Liked: l.Liked(postID), Likes: current}, err
	}

	was := l.Liked(postID)
	now := !was
	delta := 1
	if was {
		delta = -1
	}
	optimistic := LikeState{Liked: now, Likes: clamp(current + delta)}
	l.set(postID, now)
	show(optimistic)

	if now {
		err = l.likes.Add(ctx, userID, postID)
	} else {
		err = l.likes.Remove(ctx, userID, postID)
	}
	if err != nil {
		_ = m.RollBack()
		l.set(postID, was)
		prev := LikeState{Liked: was, Likes: current}
		show(prev)
		return prev, domain.Wrap(op, err)
	}

	fresh, err := l.posts.Get(ctx, postID)
	if err == nil {
		fresh, err = l.posts.SetLikes(ctx, postID, clamp(fresh.Likes+delta))
	}
	if err != nil {
		_ = m.RollBack()
		kept := LikeState{Liked: now, Likes: current}
		show(kept)
		return kept, domain.Wrap("like.count", err)
	}

	_ = m.Confirm()
	settled := LikeState{Liked: now, Likes: fresh.Likes}
	if settled != optimistic {
		show(settled)
	}
	return settled, nil
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
