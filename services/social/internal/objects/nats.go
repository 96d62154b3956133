package objects

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/example/orbit/services/social/internal/domain"
)

// NATSStore keeps objects in JetStream object store buckets, creating a
// bucket on first use.
type NATSStore struct {
	BaseURL string

	js      nats.JetStreamContext
	mu      sync.Mutex
	buckets map[string]nats.ObjectStore
}

func NewNATSStore(js nats.JetStreamContext, baseURL string) *NATSStore {
	return &NATSStore{BaseURL: baseURL, js: js, buckets: make(map[string]nats.ObjectStore)}
}

func (s *NATSStore) bucket(name string) (nats.ObjectStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obs, ok := s.buckets[name]; ok {
		return obs, nil
	}
	obs, err := s.js.ObjectStore(name)
	if err != nil {
		obs, err = s.js.CreateObjectStore(&nats.ObjectStoreConfig{
			Bucket:      name,
			Description: "orbit " + name,
		})
		if err != nil {
			return nil, err
		}
	}
	s.buckets[name] = obs
	return obs, nil
}

func (s *NATSStore) Put(_ context.Context, bucket, dir string, data []byte) (string, error) {
	p, ct, err := prepare(bucket, dir, data)
	if err != nil {
		return "", err
	}
	obs, err := s.bucket(bucket)
	if err != nil {
		return "", domain.Transient("objects.put", err)
	}
	meta := &nats.ObjectMeta{
		Name:    p,
		Headers: nats.Header{"Content-Type": []string{ct}},
	}
	if _, err := obs.Put(meta, bytes.NewReader(data)); err != nil {
		return "", domain.Transient("objects.put", err)
	}
	return p, nil
}

func (s *NATSStore) Get(_ context.Context, bucket, objectPath string) (Object, error) {
	const op = "objects.get"
	if !KnownBucket(bucket) {
		return Object{}, domain.NotFound(op, "object not found")
	}
	obs, err := s.bucket(bucket)
	if err != nil {
		return Object{}, domain.Transient(op, err)
	}
	res, err := obs.Get(objectPath)
	if errors.Is(err, nats.ErrObjectNotFound) {
		return Object{}, domain.NotFound(op, "object not found")
	}
	if err != nil {
		return Object{}, domain.Transient(op, err)
	}
	defer res.Close()

	data, err := io.ReadAll(res)
	if err != nil {
		return Object{}, domain.Transient(op, err)
	}
	o := Object{Bucket: bucket, Path: objectPath, Data: data, ContentType: "application/octet-stream"}
	if info, err := res.Info(); err == nil && info.Headers != nil {
		if ct := info.Headers.Get("Content-Type"); ct != "" {
			o.ContentType = ct
		}
	}
	return o, nil
}

func (s *NATSStore) PublicURL(bucket, objectPath string) string {
	return publicURL(s.BaseURL, bucket, objectPath)
}
