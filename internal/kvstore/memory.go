package kvstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rzpsarthak13/tablesync/internal/config"
	"github.com/rzpsarthak13/tablesync/internal/core"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryKVStore is a process-local core.KVStore. Values are copied on the
// way in and out so callers cannot mutate stored data.
type MemoryKVStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	closed  bool
	now     func() time.Time
}

// NewMemoryKVStore creates an empty in-memory store.
func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryKVStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, core.ErrClosed
	}
	e, ok := m.entries[key]
	if !ok || e.expired(m.now()) {
		return nil, fmt.Errorf("key %s: %w", key, core.ErrNotFound)
	}
	return append([]byte(nil), e.value...), nil
}

func (m *MemoryKVStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return core.ErrClosed
	}
	m.entries[key] = m.entry(value, ttl)
	return nil
}

func (m *MemoryKVStore) entry(value []byte, ttl time.Duration) memoryEntry {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	return e
}

func (m *MemoryKVStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return core.ErrClosed
	}
	delete(m.entries, key)
	return nil
}

func (m *MemoryKVStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, core.ErrClosed
	}
	e, ok := m.entries[key]
	return ok && !e.expired(m.now()), nil
}

func (m *MemoryKVStore) BatchSet(_ context.Context, items map[string][]byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return core.ErrClosed
	}
	for k, v := range items {
		m.entries[k] = m.entry(v, ttl)
	}
	return nil
}

// Keys returns matching unexpired keys in sorted order.
func (m *MemoryKVStore) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, core.ErrClosed
	}
	now := m.now()
	var keys []string
	for k, e := range m.entries {
		if strings.HasPrefix(k, prefix) && !e.expired(now) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryKVStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MemoryKVStoreFactory creates in-memory stores.
type MemoryKVStoreFactory struct{}

func (f *MemoryKVStoreFactory) Type() string {
	return "memory"
}

func (f *MemoryKVStoreFactory) Validate(cfg config.StoreConfig) error {
	if cfg.Type != "memory" {
		return fmt.Errorf("invalid type for memory factory: %s", cfg.Type)
	}
	return nil
}

func (f *MemoryKVStoreFactory) Create(config.StoreConfig) (core.KVStore, error) {
	return NewMemoryKVStore(), nil
}

func init() {
	RegisterFactory(&MemoryKVStoreFactory{})
}
