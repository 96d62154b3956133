package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Hub is an in-process Publisher and Subscriber.
type Hub struct {
	mu   sync.Mutex
	subs map[*hubSub]struct{}
	log  *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{subs: make(map[*hubSub]struct{}), log: log}
}

type hubSub struct {
	hub    *Hub
	table  string
	types  []ChangeType
	filter Filter
	ch     chan Change
	done   chan struct{}
	once   sync.Once
}

func (s *hubSub) Changes() <-chan Change { return s.ch }

func (s *hubSub) Unsubscribe() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.ch)
		s.hub.mu.Unlock()
		close(s.done)
	})
}

func (h *Hub) Subscribe(ctx context.Context, table string, types []ChangeType, filter Filter) (Subscription, error) {
	s := &hubSub{
		hub:    h,
		table:  table,
		types:  types,
		filter: filter,
		ch:     make(chan Change, subscriptionBuffer),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			s.Unsubscribe()
		case <-s.done:
		}
	}()
	return s, nil
}

// Publish delivers c to every matching subscription without blocking.
func (h *Hub) Publish(_ context.Context, c Change) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if !c.Matches(s.table, s.types, s.filter) {
			continue
		}
		select {
		case s.ch <- c:
		default:
			logDropped(h.log, c)
		}
	}
	return nil
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
