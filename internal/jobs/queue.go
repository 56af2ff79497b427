// Package jobs queues sync jobs and drains them through a rate-limited worker.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rzpsarthak13/tablesync/internal/config"
	"github.com/rzpsarthak13/tablesync/internal/core"
)

var (
	// ErrQueueClosed is returned when using a closed queue.
	ErrQueueClosed = errors.New("job queue is closed")

	// ErrQueueFull is returned when a bounded queue cannot take another job.
	ErrQueueFull = errors.New("job queue is full")

	// ErrInvalidJob is returned for nil or incomplete jobs.
	ErrInvalidJob = errors.New("invalid sync job")

	// ErrListOperationsNotSupported is returned when the store behind a Redis
	// queue has no list operations.
	ErrListOperationsNotSupported = errors.New("KVStore does not support list operations")
)

// ListOperations are the Redis list commands a RedisQueue needs.
type ListOperations interface {
	// ListPush appends a value to a list (RPUSH).
	ListPush(ctx context.Context, key string, value []byte) error

	// ListPop removes and returns the first element of a list (LPOP).
	// Returns nil if the list is empty.
	ListPop(ctx context.Context, key string) ([]byte, error)

	// ListLength returns the length of a list (LLEN).
	ListLength(ctx context.Context, key string) (int64, error)
}

// prepareJob validates job and fills in its id, kind and timestamp.
func prepareJob(job *core.SyncJob) error {
	if job == nil {
		return ErrInvalidJob
	}
	if job.Source == "" {
		return fmt.Errorf("%w: source connection is required", ErrInvalidJob)
	}
	if job.Kind == "" {
		job.Kind = core.JobSynchronize
	}
	if job.Kind == core.JobSynchronize && job.Target == "" {
		return fmt.Errorf("%w: target connection is required", ErrInvalidJob)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	return nil
}

// RedisQueue stores jobs as JSON in one Redis list.
type RedisQueue struct {
	ops    ListOperations
	key    string
	closed bool
}

// NewRedisQueue creates a queue on store, which must implement ListOperations
// directly or through an Unwrap() core.KVStore chain.
func NewRedisQueue(store core.KVStore, prefix string) (*RedisQueue, error) {
	if prefix == "" {
		prefix = "tablesync:jobs"
	}
	ops := listOperationsOf(store)
	if ops == nil {
		return nil, ErrListOperationsNotSupported
	}
	return &RedisQueue{ops: ops, key: prefix + ":queue"}, nil
}

// NewRedisQueueFromOps creates a queue directly on a list implementation.
func NewRedisQueueFromOps(ops ListOperations, key string) *RedisQueue {
	return &RedisQueue{ops: ops, key: key}
}

func listOperationsOf(store core.KVStore) ListOperations {
	for store != nil {
		if ops, ok := store.(ListOperations); ok {
			return ops
		}
		u, ok := store.(interface{ Unwrap() core.KVStore })
		if !ok {
			return nil
		}
		store = u.Unwrap()
	}
	return nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *core.SyncJob) error {
	if q.closed {
		return ErrQueueClosed
	}
	if err := prepareJob(job); err != nil {
		return err
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal sync job: %w", err)
	}
	if err := q.ops.ListPush(ctx, q.key, data); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	log.Printf("[REDIS] Enqueued job %s (%s %s -> %s)", job.ID, job.Kind, job.Source, job.Target)
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.SyncJob, error) {
	if q.closed {
		return nil, ErrQueueClosed
	}
	if batchSize <= 0 {
		batchSize = 10
	}

	jobs := make([]*core.SyncJob, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		data, err := q.ops.ListPop(ctx, q.key)
		if err != nil {
			return jobs, fmt.Errorf("failed to dequeue job: %w", err)
		}
		if data == nil {
			break
		}

		var job core.SyncJob
		if err := json.Unmarshal(data, &job); err != nil {
			log.Printf("[REDIS] WARNING: Skipping undecodable job: %v", err)
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

func (q *RedisQueue) Size() int {
	if q.closed {
		return 0
	}
	n, err := q.ops.ListLength(context.Background(), q.key)
	if err != nil {
		return 0
	}
	return int(n)
}

func (q *RedisQueue) Close() error {
	q.closed = true
	return nil
}

// NewQueue creates the queue selected by cfg.QueueType. store backs the
// "redis" queue type and may be nil otherwise.
func NewQueue(cfg config.JobsConfig, store core.KVStore) (core.JobQueue, error) {
	switch cfg.QueueType {
	case "", "memory":
		return NewMemoryQueue(cfg.QueueBufferSize), nil
	case "redis":
		return NewRedisQueue(store, cfg.QueuePrefix)
	case "kafka":
		return NewKafkaQueue(cfg.Kafka)
	default:
		return nil, fmt.Errorf("unknown job queue type: %s", cfg.QueueType)
	}
}
