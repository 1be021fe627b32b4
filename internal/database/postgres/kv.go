package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/memory-anchor/internal/database"
)

// KVRepository stores registry blobs in the kv_store table.
type KVRepository struct {
	pool *Pool
}

// NewKVRepository creates a key-value repository on top of a migrated pool.
func NewKVRepository(pool *Pool) *KVRepository {
	return &KVRepository{pool: pool}
}

// Get returns the value stored under key or database.ErrNotFound.
func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.pool.db.QueryRowContext(ctx, `SELECT kv_value FROM kv_store WHERE kv_key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Put upserts the value under key.
func (r *KVRepository) Put(ctx context.Context, key string, value []byte) error {
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO kv_store (kv_key, kv_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (kv_key) DO UPDATE SET kv_value = EXCLUDED.kv_value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *KVRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.pool.db.ExecContext(ctx, `DELETE FROM kv_store WHERE kv_key = $1`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying pool.
func (r *KVRepository) Close() error {
	return r.pool.Close()
}

var _ database.KVStore = (*KVRepository)(nil)
var _ database.KVDeleter = (*KVRepository)(nil)
var _ database.Closer = (*KVRepository)(nil)
