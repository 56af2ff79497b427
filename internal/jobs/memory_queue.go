package jobs

import (
	"context"
	"sync"

	"github.com/rzpsarthak13/tablesync/internal/core"
)

// MemoryQueue is a bounded in-process FIFO of jobs.
type MemoryQueue struct {
	queue  chan *core.SyncJob
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates a queue holding at most bufferSize jobs.
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &MemoryQueue{queue: make(chan *core.SyncJob, bufferSize)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job *core.SyncJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if err := prepareJob(job); err != nil {
		return err
	}

	select {
	case q.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.SyncJob, error) {
	if batchSize <= 0 {
		batchSize = 10
	}

	jobs := make([]*core.SyncJob, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		select {
		case job, ok := <-q.queue:
			if !ok {
				return jobs, nil
			}
			jobs = append(jobs, job)
		case <-ctx.Done():
			return jobs, ctx.Err()
		default:
			return jobs, nil
		}
	}
	return jobs, nil
}

func (q *MemoryQueue) Size() int {
	return len(q.queue)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.queue)
	return nil
}
