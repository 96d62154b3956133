package view

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/orbit/internal/platform/retry"
	"github.com/example/orbit/services/social/internal/domain"
	"github.com/example/orbit/services/social/internal/events"
	"github.com/example/orbit/services/social/internal/session"
	"github.com/example/orbit/services/social/internal/store"
)

var errNetwork = errors.New("connection reset")

func fastRetry() retry.Policy {
	return retry.Policy{Attempts: 3, Base: time.Millisecond, Max: time.Millisecond}
}

func newDeps(st store.Stores, userID string) Deps {
	return Deps{
		Stores:  st,
		Session: session.Static(userID),
		Bus:     events.NewBus(),
		Load:    fastRetry(),
	}
}

// recorder collects bus events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func record(bus *events.Bus) *recorder {
	r := &recorder{}
	bus.Subscribe(func(e events.Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) of(kind events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// hookComments runs hooks around CommentStore calls.
type hookComments struct {
	store.CommentStore
	calls    atomic.Int32
	createFn func(ctx context.Context, c domain.Comment) (domain.Comment, error)
}

func (h *hookComments) Create(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	h.calls.Add(1)
	if h.createFn != nil {
		return h.createFn(ctx, c)
	}
	return h.CommentStore.Create(ctx, c)
}

// flakyPosts fails Get a fixed number of times and counter writes on demand.
type flakyPosts struct {
	store.PostStore
	getFailures  atomic.Int32
	getCalls     atomic.Int32
	failCounters bool
	failCreate   bool
}

func (f *flakyPosts) Get(ctx context.Context, id string) (domain.Post, error) {
	f.getCalls.Add(1)
	if f.getFailures.Load() > 0 {
		f.getFailures.Add(-1)
		return domain.Post{}, errNetwork
	}
	return f.PostStore.Get(ctx, id)
}

func (f *flakyPosts) AdjustCommentCount(ctx context.Context, id string, delta int) (domain.Post, error) {
	if f.failCounters {
		return domain.Post{}, errNetwork
	}
	return f.PostStore.AdjustCommentCount(ctx, id, delta)
}

func (f *flakyPosts) Create(ctx context.Context, p domain.Post) (domain.Post, error) {
	if f.failCreate {
		return domain.Post{}, errNetwork
	}
	return f.PostStore.Create(ctx, p)
}

// blockingLikes holds Add until release is closed.
type blockingLikes struct {
	store.LikeStore
	started chan struct{}
	release chan struct{}
}

func (b *blockingLikes) Add(ctx context.Context, userID, postID string) error {
	close(b.started)
	<-b.release
	return b.LikeStore.Add(ctx, userID, postID)
}

type failingFollows struct {
	store.FollowStore
}

func (failingFollows) Follow(context.Context, string, string) error { return errNetwork }

func seedPost(t *testing.T, st store.Stores, userID string) domain.Post {
	t.Helper()
	p, err := st.Posts.Create(context.Background(), domain.Post{UserID: userID, Content: "a post"})
	if err != nil {
		t.Fatalf("seed post: %v", err)
	}
	return p
}

func seedComment(t *testing.T, st store.Stores, postID, userID string, parent *string) domain.Comment {
	t.Helper()
	c, err := st.Comments.Create(context.Background(), domain.Comment{PostID: postID, UserID: userID, ParentID: parent, Content: "c"})
	if err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func newStores(t *testing.T) store.Stores {
	t.Helper()
	return store.NewInMemory()
}
