package core

import (
	"context"
	"time"
)

// JobKind selects what a queued job runs.
type JobKind string

const (
	// JobSynchronize runs a source to target synchronization.
	JobSynchronize JobKind = "SYNCHRONIZE"

	// JobIndexRefresh runs an incremental index diff and pushes the cache.
	JobIndexRefresh JobKind = "INDEX_REFRESH"
)

// SyncJob is one unit of work for the job pipeline.
type SyncJob struct {
	// ID uniquely identifies the job.
	ID string `json:"id"`

	// Kind defaults to JobSynchronize.
	Kind JobKind `json:"kind,omitempty"`

	// Source and Target are connection names resolved through configuration.
	Source string `json:"source"`
	Target string `json:"target"`

	SourceTable string `json:"source_table"`
	TargetTable string `json:"target_table"`

	// IdentifierKeys overrides the configured identifier convention.
	IdentifierKeys []string `json:"identifier_keys,omitempty"`

	// EnqueuedAt is when the job entered the queue.
	EnqueuedAt time.Time `json:"enqueued_at"`

	// Attempts counts how many times the job has been run.
	Attempts int `json:"attempts"`
}

// JobQueue stores sync jobs until a worker picks them up.
type JobQueue interface {
	// Enqueue adds a job to the queue.
	Enqueue(ctx context.Context, job *SyncJob) error

	// Dequeue retrieves up to batchSize jobs. Returns an empty slice if none are available.
	Dequeue(ctx context.Context, batchSize int) ([]*SyncJob, error)

	// Size returns the current (possibly approximate) number of queued jobs.
	Size() int

	// Close closes the queue and releases resources.
	Close() error
}
