package jobs

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/tablesync/internal/config"
	"github.com/rzpsarthak13/tablesync/internal/core"
)

// WorkerConfig controls how fast and how persistently a Worker drains its queue.
type WorkerConfig struct {
	// Name labels log lines.
	Name string

	// Rate is the maximum number of jobs started per second.
	Rate int

	// BatchSize is how many jobs to dequeue at once.
	BatchSize int

	// PollInterval is how long to wait when the queue is empty.
	PollInterval time.Duration

	// MaxRetries is how many times a failed job is run again.
	MaxRetries int

	// RetryBackoff is the first retry delay. Each retry doubles it up to
	// RetryBackoffMax.
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
}

// DefaultWorkerConfig returns sensible defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Name:            "default",
		Rate:            10,
		BatchSize:       10,
		PollInterval:    time.Second,
		MaxRetries:      3,
		RetryBackoff:    time.Second,
		RetryBackoffMax: 30 * time.Second,
	}
}

// WorkerConfigFrom builds a worker config from the jobs section.
func WorkerConfigFrom(name string, cfg config.JobsConfig) WorkerConfig {
	return WorkerConfig{
		Name:            name,
		Rate:            cfg.Rate,
		BatchSize:       cfg.BatchSize,
		PollInterval:    cfg.PollInterval,
		MaxRetries:      cfg.MaxRetries,
		RetryBackoff:    cfg.RetryBackoff,
		RetryBackoffMax: cfg.RetryBackoffMax,
	}
}

// Backoff returns the delay before retry number attempt (starting at 0).
func (c WorkerConfig) Backoff(attempt int) time.Duration {
	d := c.RetryBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if c.RetryBackoffMax > 0 && d >= c.RetryBackoffMax {
			return c.RetryBackoffMax
		}
	}
	if c.RetryBackoffMax > 0 && d > c.RetryBackoffMax {
		return c.RetryBackoffMax
	}
	return d
}

// Worker drains a job queue through a Runner at a controlled rate.
type Worker struct {
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	queue   core.JobQueue
	runner  Runner
	config  WorkerConfig
	limiter *rate.Limiter

	statsMu   sync.Mutex
	stats     Statistics
	completed int
	failed    int
}

// NewWorker creates a stopped worker.
func NewWorker(queue core.JobQueue, runner Runner, cfg WorkerConfig) *Worker {
	defaults := DefaultWorkerConfig()
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.Rate <= 0 {
		cfg.Rate = defaults.Rate
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &Worker{
		queue:   queue,
		runner:  runner,
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start runs the worker loop in a goroutine. Call Stop to shut it down.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		log.Printf("[WORKER:%s] Already running", w.config.Name)
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.run(ctx)
	log.Printf("[WORKER:%s] Started with rate: %d jobs/sec", w.config.Name, w.config.Rate)
	return nil
}

// Stop signals the loop and waits for the current job to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	log.Printf("[WORKER:%s] Stopped", w.config.Name)
	return nil
}

// IsRunning reports whether the loop is active.
func (w *Worker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Statistics returns the accumulated row statistics and job counts.
func (w *Worker) Statistics() (stats Statistics, completed, failed int) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	stats = w.stats
	if w.stats.Errors != nil {
		stats.Errors = make(map[string]string, len(w.stats.Errors))
		for k, v := range w.stats.Errors {
			stats.Errors[k] = v
		}
	}
	return stats, w.completed, w.failed
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		n, err := w.RunOnce(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || ctx.Err() != nil {
				return
			}
			log.Printf("[WORKER:%s] Dequeue error: %v", w.config.Name, err)
		}
		if n == 0 {
			if !w.sleep(ctx, w.config.PollInterval) {
				return
			}
		}
	}
}

// RunOnce dequeues one batch and runs every job in it. It returns the number
// of jobs dequeued.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	jobs, err := w.queue.Dequeue(ctx, w.config.BatchSize)
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if werr := w.limiter.Wait(ctx); werr != nil {
			return len(jobs), werr
		}
		w.process(ctx, job)
	}
	return len(jobs), err
}

// Drain runs batches until the queue reports no more jobs.
func (w *Worker) Drain(ctx context.Context) error {
	for {
		n, err := w.RunOnce(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

func (w *Worker) process(ctx context.Context, job *core.SyncJob) {
	for attempt := 0; ; attempt++ {
		job.Attempts++
		start := time.Now()
		stats, err := w.runner.Run(ctx, job)
		if err == nil {
			w.record(stats, true)
			log.Printf("[WORKER:%s] Job %s (%s) done in %v: %s", w.config.Name, job.ID, job.Kind, time.Since(start), stats)
			return
		}

		if !errors.Is(err, ErrJobFailed) || attempt >= w.config.MaxRetries {
			w.record(stats, false)
			log.Printf("[WORKER:%s] ERROR: Job %s failed after %d attempts: %v", w.config.Name, job.ID, job.Attempts, err)
			return
		}

		delay := w.config.Backoff(attempt)
		log.Printf("[WORKER:%s] Job %s attempt %d failed: %v. Retrying in %v", w.config.Name, job.ID, job.Attempts, err, delay)
		if !w.sleep(ctx, delay) {
			w.record(stats, false)
			return
		}
	}
}

func (w *Worker) record(stats *Statistics, ok bool) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.Append(stats)
	if ok {
		w.completed++
	} else {
		w.failed++
	}
}

// sleep waits for d, returning false if the worker is stopped or ctx ends first.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	w.mu.RLock()
	stopCh := w.stopCh
	w.mu.RUnlock()

	select {
	case <-timer.C:
		return true
	case <-stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}
