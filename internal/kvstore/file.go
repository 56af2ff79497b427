package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rzpsarthak13/tablesync/internal/config"
	"github.com/rzpsarthak13/tablesync/internal/core"
)

const fileSuffix = ".json"

// fileRecord is the on-disk envelope of one key.
type fileRecord struct {
	Value     []byte     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// FileKVStore keeps one JSON file per key inside a directory. It is meant for
// single-process use such as the CLI keeping schemas between runs.
type FileKVStore struct {
	dir    string
	mu     sync.RWMutex
	closed bool
}

// NewFileKVStore creates the directory if needed.
func NewFileKVStore(dir string) (*FileKVStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("path is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	return &FileKVStore{dir: dir}, nil
}

func (f *FileKVStore) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+fileSuffix)
}

func (f *FileKVStore) read(key string) (*fileRecord, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("key %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode key %s: %w", key, err)
	}
	if rec.ExpiresAt != nil && time.Now().After(*rec.ExpiresAt) {
		return nil, fmt.Errorf("key %s: %w", key, core.ErrNotFound)
	}
	return &rec, nil
}

func (f *FileKVStore) write(key string, value []byte, ttl time.Duration) error {
	rec := fileRecord{Value: value}
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		rec.ExpiresAt = &exp
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode key %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

func (f *FileKVStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, core.ErrClosed
	}
	rec, err := f.read(key)
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

func (f *FileKVStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return core.ErrClosed
	}
	return f.write(key, value, ttl)
}

func (f *FileKVStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return core.ErrClosed
	}
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

func (f *FileKVStore) Exists(_ context.Context, key string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return false, core.ErrClosed
	}
	_, err := f.read(key)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (f *FileKVStore) BatchSet(_ context.Context, items map[string][]byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return core.ErrClosed
	}
	for k, v := range items {
		if err := f.write(k, v, ttl); err != nil {
			return fmt.Errorf("failed to batch set keys: %w", err)
		}
	}
	return nil
}

func (f *FileKVStore) Keys(_ context.Context, prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, core.ErrClosed
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list store directory: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			log.Printf("[FILESTORE] Skipping unreadable entry %s: %v", name, err)
			continue
		}
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if _, err := f.read(key); err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *FileKVStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// FileKVStoreFactory creates directory-backed stores.
type FileKVStoreFactory struct{}

func (f *FileKVStoreFactory) Type() string {
	return "file"
}

func (f *FileKVStoreFactory) Validate(cfg config.StoreConfig) error {
	if cfg.Type != "file" {
		return fmt.Errorf("invalid type for file factory: %s", cfg.Type)
	}
	if cfg.Path == "" {
		return fmt.Errorf("path is required for the file store")
	}
	return nil
}

func (f *FileKVStoreFactory) Create(cfg config.StoreConfig) (core.KVStore, error) {
	store, err := NewFileKVStore(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file KV store: %w", err)
	}
	return store, nil
}

func init() {
	RegisterFactory(&FileKVStoreFactory{})
}
