package kvstore

import (
	"context"
	"strings"
	"time"

	"github.com/rzpsarthak13/tablesync/internal/core"
)

// Namespaced prefixes every key of an underlying store so that several
// deployments can share one Redis database or DynamoDB table.
type Namespaced struct {
	inner  core.KVStore
	prefix string
}

// NewNamespaced wraps inner with prefix.
func NewNamespaced(inner core.KVStore, prefix string) *Namespaced {
	return &Namespaced{inner: inner, prefix: prefix}
}

// Unwrap returns the underlying store.
func (n *Namespaced) Unwrap() core.KVStore {
	return n.inner
}

func (n *Namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *Namespaced) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return n.inner.Set(ctx, n.prefix+key, value, ttl)
}

func (n *Namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}

func (n *Namespaced) Exists(ctx context.Context, key string) (bool, error) {
	return n.inner.Exists(ctx, n.prefix+key)
}

func (n *Namespaced) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	prefixed := make(map[string][]byte, len(items))
	for k, v := range items {
		prefixed[n.prefix+k] = v
	}
	return n.inner.BatchSet(ctx, prefixed, ttl)
}

func (n *Namespaced) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := n.inner.Keys(ctx, n.prefix+prefix)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, n.prefix)
	}
	return keys, nil
}

func (n *Namespaced) Close() error {
	return n.inner.Close()
}
