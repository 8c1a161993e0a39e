package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Rrens/tnt-ai/internal/domain"
)

// KVStore implements domain.KVStore on the kv_items table.
type KVStore struct {
	db *DB
}

// NewKVStore creates a KV store on an open pool. The schema must already be
// migrated.
func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db}
}

func (s *KVStore) GetItem(ctx context.Context, key string) (string, error) {
	query := `SELECT item_value FROM kv_items WHERE item_key = $1`

	var value string
	err := s.db.Pool.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get item: %w", err)
	}
	return value, nil
}

func (s *KVStore) SetItem(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO kv_items (item_key, item_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (item_key) DO UPDATE SET
			item_value = EXCLUDED.item_value,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.Pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set item: %w", err)
	}
	return nil
}

func (s *KVStore) RemoveItem(ctx context.Context, key string) error {
	query := `DELETE FROM kv_items WHERE item_key = $1`
	if _, err := s.db.Pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	return nil
}

func (s *KVStore) Close() error {
	s.db.Close()
	return nil
}
