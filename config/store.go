package config

import (
	"context"
	"slices"
	"sync"
)

// Store persists one JSON blob per colony name. Get returns a nil blob and
// no error when the name is unknown.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Set(ctx context.Context, name string, blob []byte) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Get returns a copy of the stored blob.
func (s *MemoryStore) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.blobs[name]), nil
}

// Set stores a copy of blob. A nil blob deletes the entry.
func (s *MemoryStore) Set(_ context.Context, name string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if blob == nil {
		delete(s.blobs, name)
		return nil
	}
	s.blobs[name] = slices.Clone(blob)
	return nil
}
