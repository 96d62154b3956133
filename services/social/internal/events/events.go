// Package events fans view changes out to whoever renders them.
package events

import (
	"sync"

	"github.com/example/orbit/services/social/internal/domain"
)

type Kind string

const (
	CommentAdded   Kind = "comment.added"
	CommentEdited  Kind = "comment.edited"
	CommentRemoved Kind = "comment.removed"
	PostCreated    Kind = "post.created"
	PostEdited     Kind = "post.edited"
	PostDeleted    Kind = "post.deleted"
	LikeToggled    Kind = "like.toggled"
	FollowToggled  Kind = "follow.toggled"
	// MutationFailed is the user-visible notification for a rolled back or
	// rejected change.
	MutationFailed Kind = "mutation.failed"
)

// Event describes one change. Only the fields relevant to Kind are set.
type Event struct {
	Kind Kind

	PostID    string
	CommentID string
	// TempID is the optimistic id a confirmed record replaced, if any.
	TempID string

	Comment *domain.Comment
	Post    *domain.Post

	Liked     bool
	Likes     int
	Following bool
	UserID    string
	// Removed is the number of comments dropped by a cascading delete.
	Removed int

	Op      string
	ErrKind domain.Kind
	Err     error
}

type Handler func(Event)

// Bus is a synchronous observer list. A nil *Bus drops events.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs []subscription
}

type subscription struct {
	id    int
	kinds map[Kind]bool
	fn    Handler
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for the given kinds, or for every kind when none
// are given. The returned func removes the subscription.
func (b *Bus) Subscribe(fn Handler, kinds ...Kind) (unsubscribe func()) {
	if b == nil || fn == nil {
		return func() {}
	}
	s := subscription{fn: fn}
	if len(kinds) > 0 {
		s.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = true
		}
	}

	b.mu.Lock()
	b.next++
	s.id = b.next
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(s.id) })
	}
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	b.subs = out
}

// Publish calls matching handlers in subscription order on the caller's
// goroutine. Handlers may subscribe or unsubscribe while being called.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, s := range subs {
		if s.kinds == nil || s.kinds[e.Kind] {
			s.fn(e)
		}
	}
}

// Failed publishes MutationFailed for err.
func (b *Bus) Failed(op string, err error) {
	b.Publish(Event{Kind: MutationFailed, Op: op, ErrKind: domain.KindOf(err), Err: err})
}
