package objects

import (
	"context"
	"sync"

	"github.com/example/orbit/services/social/internal/domain"
)

// MemoryStore is a development-only in-memory implementation.
type MemoryStore struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string]Object // bucket/path -> object
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{BaseURL: baseURL, objects: make(map[string]Object)}
}

func (s *MemoryStore) Put(_ context.Context, bucket, dir string, data []byte) (string, error) {
	p, ct, err := prepare(bucket, dir, data)
	if err != nil {
		return "", err
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+p] = Object{Bucket: bucket, Path: p, ContentType: ct, Data: cp}
	return p, nil
}

func (s *MemoryStore) Get(_ context.Context, bucket, objectPath string) (Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[bucket+"/"+objectPath]
	if !ok {
		return Object{}, domain.NotFound("objects.get", "object not found")
	}
	return o, nil
}

func (s *MemoryStore) PublicURL(bucket, objectPath string) string {
	return publicURL(s.BaseURL, bucket, objectPath)
}
