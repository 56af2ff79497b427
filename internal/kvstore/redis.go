package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rzpsarthak13/tablesync/internal/config"
	"github.com/rzpsarthak13/tablesync/internal/core"
)

// RedisKVStore implements core.KVStore on Redis strings. It also exposes the
// list operations used by the Redis job queue.
type RedisKVStore struct {
	client *redis.Client
	closed bool
}

// NewRedisKVStore connects to the first endpoint and pings it.
func NewRedisKVStore(cfg config.RedisConfig, dialTimeout, readTimeout, writeTimeout time.Duration, maxRetries int) (*RedisKVStore, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	// TODO: support cluster mode through redis.NewClusterClient when more than one endpoint is configured.
	opts := &redis.Options{
		Addr:         cfg.Endpoints[0],
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   maxRetries,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[REDIS] Connected to %s (db %d)", cfg.Endpoints[0], cfg.DB)
	return &RedisKVStore{client: client}, nil
}

// NewRedisKVStoreFromClient wraps an existing client.
func NewRedisKVStoreFromClient(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

func (r *RedisKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if r.closed {
		return nil, core.ErrClosed
	}

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("key %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		log.Printf("[REDIS] ERROR: Failed to get key %s: %v", key, err)
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	log.Printf("[REDIS] GET %s (%d bytes)", key, len(val))
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.closed {
		return core.ErrClosed
	}

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Printf("[REDIS] ERROR: Failed to set key %s: %v", key, err)
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	log.Printf("[REDIS] SET %s (%d bytes, ttl %v)", key, len(value), ttl)
	return nil
}

func (r *RedisKVStore) Delete(ctx context.Context, key string) error {
	if r.closed {
		return core.ErrClosed
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

func (r *RedisKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if r.closed {
		return false, core.ErrClosed
	}
	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	return count > 0, nil
}

// BatchSet writes all pairs in one pipeline.
func (r *RedisKVStore) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if r.closed {
		return core.ErrClosed
	}

	pipe := r.client.Pipeline()
	for key, value := range items {
		pipe.Set(ctx, key, value, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to batch set keys: %w", err)
	}
	return nil
}

// Keys walks the keyspace with SCAN so large databases are not blocked.
func (r *RedisKVStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if r.closed {
		return nil, core.ErrClosed
	}

	var keys []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys with prefix %s: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *RedisKVStore) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

// Client returns the underlying Redis client.
func (r *RedisKVStore) Client() *redis.Client {
	return r.client
}

// ListPush appends a value to a list (RPUSH).
func (r *RedisKVStore) ListPush(ctx context.Context, key string, value []byte) error {
	if r.closed {
		return core.ErrClosed
	}
	return r.client.RPush(ctx, key, value).Err()
}

// ListPop removes and returns the first element of a list (LPOP).
// Returns nil if the list is empty.
func (r *RedisKVStore) ListPop(ctx context.Context, key string) ([]byte, error) {
	if r.closed {
		return nil, core.ErrClosed
	}
	val, err := r.client.LPop(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

// ListLength returns the length of a list (LLEN).
func (r *RedisKVStore) ListLength(ctx context.Context, key string) (int64, error) {
	if r.closed {
		return 0, core.ErrClosed
	}
	return r.client.LLen(ctx, key).Result()
}

// RedisKVStoreFactory creates Redis stores.
type RedisKVStoreFactory struct{}

func (f *RedisKVStoreFactory) Type() string {
	return "redis"
}

func (f *RedisKVStoreFactory) Validate(cfg config.StoreConfig) error {
	if cfg.Type != "redis" {
		return fmt.Errorf("invalid type for Redis factory: %s", cfg.Type)
	}
	if len(cfg.Redis.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	if cfg.Redis.DB < 0 || cfg.Redis.DB > 15 {
		return fmt.Errorf("Redis DB must be between 0 and 15, got: %d", cfg.Redis.DB)
	}
	if cfg.Redis.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0, got: %d", cfg.Redis.PoolSize)
	}
	if cfg.Redis.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns must be non-negative, got: %d", cfg.Redis.MinIdleConns)
	}
	if cfg.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be greater than 0, got: %v", cfg.DialTimeout)
	}
	if cfg.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be greater than 0, got: %v", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be greater than 0, got: %v", cfg.WriteTimeout)
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got: %d", cfg.MaxRetries)
	}
	return nil
}

func (f *RedisKVStoreFactory) Create(cfg config.StoreConfig) (core.KVStore, error) {
	store, err := NewRedisKVStore(cfg.Redis, cfg.DialTimeout, cfg.ReadTimeout, cfg.WriteTimeout, cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis KV store: %w", err)
	}
	return store, nil
}

func init() {
	RegisterFactory(&RedisKVStoreFactory{})
}
