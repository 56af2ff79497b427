package core

import (
	"context"
	"time"
)

// KVStore is the durable document store behind the schema repository and
// the index cache. Implementations include memory, file, Redis and DynamoDB.
type KVStore interface {
	// Get retrieves a value by key. Missing keys return an error wrapping ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a key-value pair. A ttl of 0 never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key from the store.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in the store.
	Exists(ctx context.Context, key string) (bool, error)

	// BatchSet stores multiple key-value pairs with a shared TTL.
	BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error

	// Keys lists keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases resources.
	Close() error
}
