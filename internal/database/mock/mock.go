// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/memory-anchor/internal/database"
)

// MockKVStore is an in-memory database.KVStore
type MockKVStore struct {
	mu     sync.RWMutex
	values map[string][]byte

	// Error injection
	GetError    error
	PutError    error
	DeleteError error

	// Call tracking
	PutCalls int
}

// NewMockKVStore creates an empty mock store
func NewMockKVStore() *MockKVStore {
	return &MockKVStore{values: make(map[string][]byte)}
}

// Set seeds a raw value without counting a Put call
func (m *MockKVStore) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
}

// Value returns the raw stored bytes and whether the key exists
func (m *MockKVStore) Value(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Get returns the stored value or database.ErrNotFound
func (m *MockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, database.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put stores a copy of value
func (m *MockKVStore) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	if m.PutError != nil {
		return m.PutError
	}
	m.values[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key
func (m *MockKVStore) Delete(ctx context.Context, key string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

var _ database.KVStore = (*MockKVStore)(nil)
var _ database.KVDeleter = (*MockKVStore)(nil)
