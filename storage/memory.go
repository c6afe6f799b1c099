// Package storage provides in-memory key-value storage.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
// - Suitable for testing and ephemeral sessions

package storage

import (
	"bytes"
	"context"
	"sync"
)

// InMemoryStore implements Store using an in-memory map.
// Data is lost when process terminates.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
	writes  int
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string][]byte),
	}
}

// Load returns a copy of the value stored under key.
func (s *InMemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return bytes.Clone(value), nil
}

// Save stores a copy of value under key.
func (s *InMemoryStore) Save(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Make a copy to avoid external mutations
	s.entries[key] = bytes.Clone(value)
	s.writes++
	return nil
}

// Delete removes key.
func (s *InMemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	s.writes++
	return nil
}

// Writes returns the number of mutating calls served so far.
func (s *InMemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Close is a no-op.
func (s *InMemoryStore) Close() error {
	return nil
}

// Verify InMemoryStore implements Store
var _ Store = (*InMemoryStore)(nil)
