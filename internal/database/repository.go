package database

import (
	"context"
	"errors"
)

// ErrNotFound is returned by KVStore.Get when the key has never been written.
var ErrNotFound = errors.New("key not found")

// KVStore is the persistence boundary for the face registry: one opaque value
// per string key. Backends live in the subpackages of database.
type KVStore interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
}

// KVDeleter is implemented by stores that can remove a key.
type KVDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Closer is implemented by stores holding connections.
type Closer interface {
	Close() error
}
