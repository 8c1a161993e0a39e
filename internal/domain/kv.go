package domain

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by a KVStore when a key holds no value.
var ErrKeyNotFound = errors.New("key not found")

// KVStore is the durable key-value primitive under the session store.
// A single SetItem is atomic from the caller's perspective.
type KVStore interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	Close() error
}
