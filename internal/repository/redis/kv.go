package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Rrens/tnt-ai/internal/domain"
)

const kvPrefix = "kv:"

// KVStore implements domain.KVStore with plain string keys. Values never expire.
type KVStore struct {
	client *Client
}

// NewKVStore creates a KV store on client.
func NewKVStore(client *Client) *KVStore {
	return &KVStore{client: client}
}

func (s *KVStore) GetItem(ctx context.Context, key string) (string, error) {
	val, err := s.client.rdb.Get(ctx, s.client.key(kvPrefix, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get item: %w", err)
	}
	return val, nil
}

func (s *KVStore) SetItem(ctx context.Context, key, value string) error {
	if err := s.client.rdb.Set(ctx, s.client.key(kvPrefix, key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set item: %w", err)
	}
	return nil
}

func (s *KVStore) RemoveItem(ctx context.Context, key string) error {
	if err := s.client.rdb.Del(ctx, s.client.key(kvPrefix, key)).Err(); err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	return nil
}

func (s *KVStore) Close() error {
	return s.client.Close()
}
