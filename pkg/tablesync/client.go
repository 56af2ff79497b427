// Package tablesync copies rows between tables held in different stores and
// keeps an index of what it has seen.
package tablesync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/rzpsarthak13/tablesync/internal/adapter"
	"github.com/rzpsarthak13/tablesync/internal/config"
	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/indexdiff"
	"github.com/rzpsarthak13/tablesync/internal/jobs"
	"github.com/rzpsarthak13/tablesync/internal/kvstore"
	"github.com/rzpsarthak13/tablesync/internal/logging"
	"github.com/rzpsarthak13/tablesync/internal/schema"
	"github.com/rzpsarthak13/tablesync/internal/syncer"
)

var (
	// ErrSetupFailed is returned when a connection could not be opened.
	ErrSetupFailed = errors.New("connection setup failed")

	// ErrUnreachable is returned by Ping when the backend does not answer.
	ErrUnreachable = errors.New("connection unreachable")

	// ErrUnknownConnection is returned for names missing from the configuration.
	ErrUnknownConnection = errors.New("unknown connection")
)

// Client is the entry point for synchronizing tables.
//
// Typical usage:
//
//	client, _ := tablesync.NewClient(cfg)
//	defer client.Close()
//
//	res, err := client.Synchronize(ctx, tablesync.WithTables("People", "People"))
//
//	client.Start(ctx) // drain queued jobs in the background
//	client.Enqueue(ctx, &tablesync.SyncJob{Source: "crm", Target: "warehouse"})
type Client interface {
	// Synchronize upserts every row of the source table into the target table.
	// Defaults come from the sync section of the configuration.
	Synchronize(ctx context.Context, opts ...SyncOption) (*SyncResult, error)

	// Diff compares the rows of a table with the index cached by the previous
	// Diff and records the new snapshot.
	Diff(ctx context.Context, connection, table string, identifierKeys ...string) (*DiffOutput, error)

	// Read returns the rows of a table, split by the connection's identifier keys.
	Read(ctx context.Context, connection, table string, opts ReadOptions) ([]*Item, error)

	// Ping opens the connection and checks that the backend answers.
	Ping(ctx context.Context, connection string) error

	// Schema returns the schema of a table. Relational connections discover it
	// from the catalog; other connections return the schema recorded by the
	// last synchronization that read the table.
	Schema(ctx context.Context, connection, table string) (*TableSchema, error)

	// Enqueue adds a job for the background worker.
	Enqueue(ctx context.Context, job *SyncJob) error

	// Start runs the background worker. It is non-blocking.
	Start(ctx context.Context) error

	// Stop waits for the current job and stops the worker.
	Stop() error

	// IsRunning reports whether the worker is running.
	IsRunning() bool

	// Statistics returns the row statistics and job counts of the worker.
	Statistics() (stats Statistics, completed, failed int)

	// Close stops the worker and releases the store and queue.
	Close() error
}

// SyncResult is the outcome of one Synchronize call.
type SyncResult struct {
	Items      []*Item
	Response   *OperationResponse
	Statistics *Statistics
}

// clientWrapper implements Client on top of the internal packages.
type clientWrapper struct {
	mu     sync.RWMutex
	config *Config

	store      core.KVStore
	ownsStore  bool
	queueStore core.KVStore
	schemas    *schema.Repository
	cache      *indexdiff.Cache
	queue      core.JobQueue
	worker     *jobs.Worker
	logCloser  io.Closer
	closed     bool
}

// NewClient validates cfg and creates the metadata store, job queue and
// worker it describes. Connections are opened per call.
func NewClient(cfg *Config, opts ...ClientOption) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	cw := &clientWrapper{config: cfg}
	cw.logCloser = logging.Setup(cfg.Logging)

	cw.store = o.store
	if cw.store == nil {
		store, err := kvstore.Create(cfg.Store)
		if err != nil {
			cw.logCloser.Close()
			return nil, fmt.Errorf("failed to create store: %w", err)
		}
		cw.store = store
		cw.ownsStore = true
	}
	cw.schemas = schema.NewRepository(cw.store)
	cw.cache = indexdiff.NewCache(cw.store)

	cw.queue = o.queue
	if cw.queue == nil {
		queue, err := cw.newQueue()
		if err != nil {
			cw.release()
			return nil, err
		}
		cw.queue = queue
	}

	runner := jobs.NewSyncRunner(cfg, cw.deps(), cw.cache)
	cw.worker = jobs.NewWorker(cw.queue, runner, jobs.WorkerConfigFrom("sync", cfg.Jobs))

	log.Printf("[CLIENT] Ready with %d connections, store: %s, queue: %s",
		len(cfg.Connections), cfg.Store.Type, cfg.Jobs.QueueType)
	return cw, nil
}

// newQueue creates the configured queue. A Redis queue reuses the metadata
// store when it is Redis and opens its own client otherwise.
func (cw *clientWrapper) newQueue() (core.JobQueue, error) {
	queue, err := jobs.NewQueue(cw.config.Jobs, cw.store)
	if !errors.Is(err, jobs.ErrListOperationsNotSupported) {
		if err != nil {
			return nil, fmt.Errorf("failed to create job queue: %w", err)
		}
		return queue, nil
	}

	s := cw.config.Store
	redisStore, err := kvstore.NewRedisKVStore(s.Redis, s.DialTimeout, s.ReadTimeout, s.WriteTimeout, s.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to connect job queue to Redis: %w", err)
	}
	cw.queueStore = redisStore
	queue, err = jobs.NewQueue(cw.config.Jobs, redisStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create job queue: %w", err)
	}
	return queue, nil
}

func (cw *clientWrapper) deps() adapter.Dependencies {
	return adapter.Dependencies{Schemas: cw.schemas}
}

func (cw *clientWrapper) connection(name string) (core.AdapterConfig, error) {
	conn, ok := cw.config.Connection(name)
	if !ok {
		return core.AdapterConfig{}, fmt.Errorf("%w: %q", ErrUnknownConnection, name)
	}
	return conn, nil
}

func (cw *clientWrapper) open(ctx context.Context, name string) (core.Adapter, core.AdapterConfig, error) {
	conn, err := cw.connection(name)
	if err != nil {
		return nil, conn, err
	}
	a, resp := adapter.Create(ctx, conn, cw.deps())
	if a == nil || !resp.IsOk() {
		if a != nil {
			a.Close()
		}
		return nil, conn, fmt.Errorf("%w: %s: %s", ErrSetupFailed, name, generalMessages(resp))
	}
	return a, conn, nil
}

func (cw *clientWrapper) Synchronize(ctx context.Context, opts ...SyncOption) (*SyncResult, error) {
	s := syncSettings{
		source:         cw.config.Sync.Source,
		target:         cw.config.Sync.Target,
		sourceTable:    cw.config.Sync.SourceTable,
		targetTable:    cw.config.Sync.TargetTable,
		identifierKeys: cw.config.Sync.IdentifierKeys,
	}
	for _, opt := range opts {
		opt(&s)
	}

	source, err := cw.connection(s.source)
	if err != nil {
		return nil, err
	}
	target, err := cw.connection(s.target)
	if err != nil {
		return nil, err
	}

	o := syncer.New(syncer.RegistryFactory(cw.deps()), syncer.Options{
		SourceTable:    s.sourceTable,
		TargetTable:    s.targetTable,
		IdentifierKeys: s.identifierKeys,
		Schemas:        cw.schemas,
		SchemaDatabase: cw.config.Sync.Database,
	})
	defer o.Close()

	if resp := o.SetupConnections(ctx, source, target); !resp.IsOk() {
		return &SyncResult{Response: resp}, fmt.Errorf("%w: %s", ErrSetupFailed, generalMessages(resp))
	}

	res, err := o.Synchronize(ctx)
	if err != nil {
		return nil, err
	}
	return &SyncResult{
		Items:      res.Items,
		Response:   res.Response,
		Statistics: jobs.StatisticsFromResponse(res.Response),
	}, nil
}

func (cw *clientWrapper) Diff(ctx context.Context, connection, table string, identifierKeys ...string) (*DiffOutput, error) {
	a, conn, err := cw.open(ctx, connection)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	if len(identifierKeys) == 0 {
		identifierKeys = conn.Identifiers()
	}
	return indexdiff.Refresh(ctx, a, cw.cache, conn.Name, table, identifierKeys)
}

func (cw *clientWrapper) Read(ctx context.Context, connection, table string, opts ReadOptions) ([]*Item, error) {
	a, conn, err := cw.open(ctx, connection)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	rows, err := a.Read(ctx, table, opts)
	if err != nil {
		return nil, err
	}
	items := core.CloneItems(rows)
	if err := core.SplitItemsByIdentifierKeys(items, conn.Identifiers()); err != nil {
		return nil, err
	}
	return items, nil
}

func (cw *clientWrapper) Ping(ctx context.Context, connection string) error {
	a, _, err := cw.open(ctx, connection)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.TestConnection(ctx) {
		return fmt.Errorf("%w: %s", ErrUnreachable, connection)
	}
	return nil
}

// schemaSource is implemented by adapters that can describe their tables.
type schemaSource interface {
	TableSchema(ctx context.Context, table string) (*schema.TableSchema, error)
}

func (cw *clientWrapper) Schema(ctx context.Context, connection, table string) (*TableSchema, error) {
	a, _, err := cw.open(ctx, connection)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	if src, ok := a.(schemaSource); ok {
		ts, err := src.TableSchema(ctx, table)
		if err != nil {
			return nil, err
		}
		if ts == nil {
			return nil, fmt.Errorf("table %s: %w", table, core.ErrNotFound)
		}
		return ts, nil
	}
	return cw.schemas.GetTableSchemaByName(ctx, cw.config.Sync.Database, table)
}

func (cw *clientWrapper) Enqueue(ctx context.Context, job *SyncJob) error {
	if job != nil && job.Source != "" {
		if _, err := cw.connection(job.Source); err != nil {
			return err
		}
	}
	if job != nil && job.Target != "" {
		if _, err := cw.connection(job.Target); err != nil {
			return err
		}
	}
	return cw.queue.Enqueue(ctx, job)
}

func (cw *clientWrapper) Start(ctx context.Context) error {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	if cw.closed {
		return core.ErrClosed
	}
	return cw.worker.Start(ctx)
}

func (cw *clientWrapper) Stop() error {
	return cw.worker.Stop()
}

func (cw *clientWrapper) IsRunning() bool {
	return cw.worker.IsRunning()
}

func (cw *clientWrapper) Statistics() (Statistics, int, int) {
	return cw.worker.Statistics()
}

func (cw *clientWrapper) Close() error {
	cw.mu.Lock()
	if cw.closed {
		cw.mu.Unlock()
		return nil
	}
	cw.closed = true
	cw.mu.Unlock()

	if err := cw.worker.Stop(); err != nil {
		log.Printf("[CLIENT] WARNING: Error stopping worker: %v", err)
	}
	if err := cw.queue.Close(); err != nil {
		log.Printf("[CLIENT] WARNING: Error closing job queue: %v", err)
	}
	return cw.release()
}

// release closes what NewClient opened. The log output is closed last.
func (cw *clientWrapper) release() error {
	var firstErr error
	if cw.queueStore != nil {
		firstErr = cw.queueStore.Close()
	}
	if cw.ownsStore && cw.store != nil {
		if err := cw.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if cw.logCloser != nil {
		cw.logCloser.Close()
	}
	return firstErr
}

func generalMessages(resp *core.OperationResponse) string {
	if resp == nil || len(resp.GeneralErrors) == 0 {
		return "no details"
	}
	msg := ""
	for i, g := range resp.GeneralErrors {
		if i > 0 {
			msg += "; "
		}
		msg += g.Message
	}
	return msg
}
