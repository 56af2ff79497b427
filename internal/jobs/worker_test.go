package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/tablesync/internal/core"
)

func fastConfig() WorkerConfig {
	return WorkerConfig{
		Name:            "test",
		Rate:            1000,
		BatchSize:       5,
		PollInterval:    5 * time.Millisecond,
		MaxRetries:      2,
		RetryBackoff:    time.Millisecond,
		RetryBackoffMax: 2 * time.Millisecond,
	}
}

func TestWorkerConfig_Backoff(t *testing.T) {
	cfg := WorkerConfig{RetryBackoff: time.Second, RetryBackoffMax: 5 * time.Second}
	assert.Equal(t, time.Second, cfg.Backoff(0))
	assert.Equal(t, 2*time.Second, cfg.Backoff(1))
	assert.Equal(t, 4*time.Second, cfg.Backoff(2))
	assert.Equal(t, 5*time.Second, cfg.Backoff(3))
	assert.Equal(t, 5*time.Second, cfg.Backoff(10))
}

func TestWorker_DrainRetriesGeneralFailures(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(10)
	require.NoError(t, q.Enqueue(ctx, &core.SyncJob{ID: "ok", Source: "a", Target: "b"}))
	require.NoError(t, q.Enqueue(ctx, &core.SyncJob{ID: "flaky", Source: "a", Target: "b"}))
	require.NoError(t, q.Enqueue(ctx, &core.SyncJob{ID: "broken", Source: "a", Target: "b"}))
	require.NoError(t, q.Enqueue(ctx, &core.SyncJob{ID: "misconfigured", Source: "a", Target: "b"}))

	attempts := map[string]int{}
	runner := RunnerFunc(func(ctx context.Context, job *core.SyncJob) (*Statistics, error) {
		attempts[job.ID]++
		switch job.ID {
		case "flaky":
			if attempts[job.ID] < 2 {
				return nil, fmt.Errorf("%w: connection reset", ErrJobFailed)
			}
		case "broken":
			return &Statistics{RowsFailed: 1}, fmt.Errorf("%w: still down", ErrJobFailed)
		case "misconfigured":
			return nil, fmt.Errorf("%w: unknown connection", core.ErrConfiguration)
		}
		return &Statistics{RowsUpdated: 3}, nil
	})

	w := NewWorker(q, runner, fastConfig())
	require.NoError(t, w.Drain(ctx))

	assert.Equal(t, 1, attempts["ok"])
	assert.Equal(t, 2, attempts["flaky"])
	assert.Equal(t, 3, attempts["broken"], "one run plus MaxRetries retries")
	assert.Equal(t, 1, attempts["misconfigured"], "configuration errors are not retried")

	stats, completed, failed := w.Statistics()
	assert.Equal(t, 2, completed)
	assert.Equal(t, 2, failed)
	assert.Equal(t, 6, stats.RowsUpdated)
	assert.Equal(t, 1, stats.RowsFailed)
}

func TestWorker_StartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewMemoryQueue(10)
	var runs int32
	done := make(chan struct{}, 3)
	runner := RunnerFunc(func(context.Context, *core.SyncJob) (*Statistics, error) {
		atomic.AddInt32(&runs, 1)
		done <- struct{}{}
		return &Statistics{}, nil
	})

	w := NewWorker(q, runner, fastConfig())
	require.NoError(t, w.Start(ctx))
	assert.True(t, w.IsRunning())
	require.NoError(t, w.Start(ctx))

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, &core.SyncJob{Source: "a", Target: "b"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not run queued jobs")
		}
	}

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
	assert.Equal(t, int32(3), atomic.LoadInt32(&runs))
	require.NoError(t, w.Stop())
}

func TestWorker_StopsOnClosedQueue(t *testing.T) {
	q := NewRedisQueueFromOps(newListStore(), "k")
	require.NoError(t, q.Close())

	w := NewWorker(q, RunnerFunc(func(context.Context, *core.SyncJob) (*Statistics, error) {
		return nil, errors.New("unreachable")
	}), fastConfig())
	require.NoError(t, w.Start(context.Background()))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-w.doneCh:
			require.NoError(t, w.Stop())
			return
		case <-deadline:
			t.Fatal("worker kept running on a closed queue")
		}
	}
}
