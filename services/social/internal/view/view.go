// Package view holds the state one screen shows: a post with its comment
// thread, the home feed, or a profile. Views apply user changes
// optimistically, reconcile them with the backend and merge realtime
// changes from other clients. Every change is announced on an events.Bus.
//
// Views are safe for concurrent use. After Close every pending
// continuation becomes a no-op.
package view

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/example/orbit/internal/platform/retry"
	"github.com/example/orbit/services/social/internal/domain"
	"github.com/example/orbit/services/social/internal/events"
	"github.com/example/orbit/services/social/internal/objects"
	"github.com/example/orbit/services/social/internal/realtime"
	"github.com/example/orbit/services/social/internal/session"
	"github.com/example/orbit/services/social/internal/store"
)

// Deps are the collaborators a view talks to. Realtime, Objects and Bus
// may be nil.
type Deps struct {
	Stores   store.Stores
	Objects  objects.Store
	Realtime realtime.Subscriber
	Session  session.Source
	Bus      *events.Bus
	Logger   *zap.Logger
	// Load bounds retries of the initial fetch. User changes are never
	// retried.
	Load retry.Policy
}

func (d Deps) log() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// loadPolicy retries transient failures only.
func (d Deps) loadPolicy() retry.Policy {
	p := d.Load
	if p.Retryable == nil {
		p.Retryable = func(err error) bool { return domain.KindOf(err) == domain.KindTransient }
	}
	return p
}

// viewer returns the signed-in user, or the zero User for anonymous
// visitors. Only failures other than Unauthorized are returned.
func (d Deps) viewer(ctx context.Context) (domain.User, error) {
	if d.Session == nil {
		return domain.User{}, nil
	}
	u, err := d.Session.CurrentUser(ctx)
	if err != nil {
		if domain.KindOf(err) == domain.KindUnauthorized {
			return domain.User{}, nil
		}
		return domain.User{}, domain.Wrap("session", err)
	}
	return u, nil
}

// base is the lifecycle shared by all views.
type base struct {
	d    Deps
	user domain.User

	mu     sync.Mutex
	closed bool
	subs   []realtime.Subscription
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (b *base) alive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

// update runs fn under the view lock unless the view is closed. It reports
// whether fn ran.
func (b *base) update(fn func()) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	fn()
	return true
}

// publish sends e unless the view is closed.
func (b *base) publish(e events.Event) {
	if b.alive() {
		b.d.Bus.Publish(e)
	}
}

// fail announces err and returns it tagged with op.
func (b *base) fail(op string, err error) error {
	err = domain.Wrap(op, err)
	if b.alive() {
		b.d.Bus.Failed(op, err)
	}
	return err
}

func (b *base) requireUser(op string) error {
	if b.user.ID == "" {
		return domain.Unauthorized(op, "sign in first")
	}
	return nil
}

// watch subscribes to table changes and feeds them to apply until the view
// closes. Without a Subscriber it does nothing.
func (b *base) watch(ctx context.Context, table string, types []realtime.ChangeType, filter realtime.Filter, apply func(realtime.Change)) error {
	if b.d.Realtime == nil {
		return nil
	}
	b.mu.Lock()
	if b.ctx == nil {
		b.ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))
	}
	ctx = b.ctx
	b.mu.Unlock()

	sub, err := b.d.Realtime.Subscribe(ctx, table, types, filter)
	if err != nil {
		return domain.Transient("realtime.subscribe", err)
	}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for c := range sub.Changes() {
			if !b.alive() {
				return
			}
			apply(c)
		}
	}()
	return nil
}

// Close unsubscribes from realtime changes and waits for the change loops
// to stop. It is safe to call more than once.
func (b *base) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	cancel := b.cancel
	b.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
}

// decode reads a change row, logging rows that do not parse.
func decode[T any](b *base, c realtime.Change) (T, bool) {
	var v T
	if err := c.Decode(&v); err != nil {
		b.d.log().Warn("view: bad realtime row", zap.String("table", c.Table), zap.Error(err))
		return v, false
	}
	return v, true
}
