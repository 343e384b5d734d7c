package config

import (
	"context"
	"slices"
	"sync"
)

// MemStore is an in-memory Store for tests that never writes to disk.
// SaveErr, when set, is returned by every Save without storing anything.
type MemStore struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	SaveErr error
}

// NewMemStore returns a new empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// NewMemStoreWith returns an in-memory store preloaded with data.
func NewMemStoreWith(data []byte) *MemStore {
	return &MemStore{data: slices.Clone(data)}
}

// Load returns a copy of the stored blob, or ErrNotFound if none has been saved yet.
func (m *MemStore) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrNotFound
	}
	return slices.Clone(m.data), nil
}

// Save stores a copy of data in memory.
func (m *MemStore) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.data = slices.Clone(data)
	m.saves++
	return nil
}

// Saves returns how many writes succeeded.
func (m *MemStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Path returns ":memory:" to indicate this is an in-memory store.
func (m *MemStore) Path() string { return ":memory:" }

// Close is a no-op for in-memory stores.
func (m *MemStore) Close() error { return nil }

// Ensure MemStore implements config.Store
var _ Store = (*MemStore)(nil)
