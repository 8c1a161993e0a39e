// Package memory is a process-local KV driver, used for tests and ephemeral runs.
package memory

import (
	"context"
	"sync"

	"github.com/Rrens/tnt-ai/internal/domain"
)

// Store implements domain.KVStore using an in-memory map.
type Store struct {
	mu    sync.RWMutex
	items map[string]string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{items: make(map[string]string)}
}

// GetItem implements domain.KVStore.
func (s *Store) GetItem(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return v, nil
}

// SetItem implements domain.KVStore.
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = value
	return nil
}

// RemoveItem implements domain.KVStore.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Close implements domain.KVStore.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]string)
	return nil
}
