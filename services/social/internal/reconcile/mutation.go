// Package reconcile tracks optimistic changes until the backend confirms or
// rejects them.
package reconcile

import (
	"errors"
	"sync"

	"github.com/example/orbit/services/social/internal/domain"
)

type State int

const (
	Pending State = iota
	Confirmed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Confirmed:
		return "confirmed"
	case RolledBack:
		return "rolled_back"
	default:
		return "pending"
	}
}

var ErrNotPending = errors.New("reconcile: mutation already settled")

// ErrInFlight rejects a change to a target that still has one pending.
var ErrInFlight = &domain.Error{Kind: domain.KindConflict, Msg: "another change to this item is still in progress"}

// Mutation is one optimistic change. It settles exactly once.
type Mutation struct {
	Target string
	// TempID is the client-generated id of an optimistic insert, if any.
	TempID string

	mu      sync.Mutex
	state   State
	release func()
}

func (m *Mutation) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Confirm marks the change as accepted by the backend.
func (m *Mutation) Confirm() error { return m.settle(Confirmed) }

// RollBack marks the change as undone. The caller restores its own state.
func (m *Mutation) RollBack() error { return m.settle(RolledBack) }

func (m *Mutation) settle(to State) error {
	m.mu.Lock()
	if m.state != Pending {
		m.mu.Unlock()
		return ErrNotPending
	}
	m.state = to
	release := m.release
	m.mu.Unlock()

	if release != nil {
		release()
	}
	return nil
}

// Tracker allows one pending mutation per target.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]*Mutation
}

func NewTracker() *Tracker {
	return &Tracker{pending: make(map[string]*Mutation)}
}

// Begin starts a mutation on target, or returns ErrInFlight while another
// one is pending there. The target is released when the mutation settles.
func (t *Tracker) Begin(target, tempID string) (*Mutation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.pending[target]; busy {
		return nil, ErrInFlight
	}
	m := &Mutation{Target: target, TempID: tempID}
	m.release = func() {
		t.mu.Lock()
		if t.pending[target] == m {
			delete(t.pending, target)
		}
		t.mu.Unlock()
	}
	t.pending[target] = m
	return m, nil
}

func (t *Tracker) Busy(target string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[target]
	return ok
}

// ByTempID finds the pending mutation that created tempID.
func (t *Tracker) ByTempID(tempID string) (*Mutation, bool) {
	if tempID == "" {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.pending {
		if m.TempID == tempID {
			return m, true
		}
	}
	return nil, false
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Target keys for Tracker.Begin.
func LikeTarget(postID string) string { return "like:" + postID }
func PostTarget(postID string) string { return "post:" + postID }
func CommentTarget(id string) string { return "comment:" + id }
func FollowTarget(userID string) string { return "follow:" + userID }
func ProfileTarget(userID string) string { return "profile:" + userID }
