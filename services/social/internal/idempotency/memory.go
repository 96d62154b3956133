package idempotency

import (
	"context"
	"sync"
	"time"
)

// memoryStore is a development-only in-memory idempotency store.
// WARNING: not suitable for production; state is lost on restart and
// does not work across multiple instances.
type memoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	keys map[string]memoryEntry
}

type memoryEntry struct {
	resp    *Response
	expires time.Time
}

func newMemoryStore(ttl time.Duration) *memoryStore {
	return &memoryStore{ttl: ttl, now: time.Now, keys: make(map[string]memoryEntry)}
}

func (s *memoryStore) Claim(_ context.Context, key string) (*Response, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.keys[key]; ok && now.Before(e.expires) {
		return e.resp, false, nil
	}
	s.keys[key] = memoryEntry{expires: now.Add(s.ttl)}
	return nil, true, nil
}

func (s *memoryStore) Complete(_ context.Context, key string, resp Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = memoryEntry{resp: &resp, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *memoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}
