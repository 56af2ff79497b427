package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/rzpsarthak13/tablesync/internal/adapter"
	"github.com/rzpsarthak13/tablesync/internal/config"
	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/indexdiff"
	"github.com/rzpsarthak13/tablesync/internal/syncer"
)

// ErrJobFailed wraps a job run that ended with a general error. Such runs are
// retried by the worker.
var ErrJobFailed = errors.New("job failed")

// Runner executes one job.
type Runner interface {
	Run(ctx context.Context, job *core.SyncJob) (*Statistics, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, job *core.SyncJob) (*Statistics, error)

func (f RunnerFunc) Run(ctx context.Context, job *core.SyncJob) (*Statistics, error) {
	return f(ctx, job)
}

// SyncRunner runs jobs against the connections of a configuration.
type SyncRunner struct {
	cfg   *config.Config
	deps  adapter.Dependencies
	cache *indexdiff.Cache
}

// NewSyncRunner creates a runner. cache is needed only for index refresh jobs.
func NewSyncRunner(cfg *config.Config, deps adapter.Dependencies, cache *indexdiff.Cache) *SyncRunner {
	return &SyncRunner{cfg: cfg, deps: deps, cache: cache}
}

func (r *SyncRunner) Run(ctx context.Context, job *core.SyncJob) (*Statistics, error) {
	switch job.Kind {
	case "", core.JobSynchronize:
		return r.synchronize(ctx, job)
	case core.JobIndexRefresh:
		return r.refresh(ctx, job)
	default:
		return nil, fmt.Errorf("%w: unknown job kind %q", ErrInvalidJob, job.Kind)
	}
}

func (r *SyncRunner) connection(name string) (core.AdapterConfig, error) {
	conn, ok := r.cfg.Connection(name)
	if !ok {
		return core.AdapterConfig{}, fmt.Errorf("%w: unknown connection %q", core.ErrConfiguration, name)
	}
	return conn, nil
}

func (r *SyncRunner) identifierKeys(job *core.SyncJob) []string {
	if len(job.IdentifierKeys) > 0 {
		return job.IdentifierKeys
	}
	return r.cfg.Sync.IdentifierKeys
}

func (r *SyncRunner) synchronize(ctx context.Context, job *core.SyncJob) (*Statistics, error) {
	source, err := r.connection(job.Source)
	if err != nil {
		return nil, err
	}
	target, err := r.connection(job.Target)
	if err != nil {
		return nil, err
	}

	opts := syncer.Options{
		SourceTable:    firstNonEmpty(job.SourceTable, r.cfg.Sync.SourceTable),
		TargetTable:    firstNonEmpty(job.TargetTable, r.cfg.Sync.TargetTable),
		IdentifierKeys: r.identifierKeys(job),
		Schemas:        r.deps.Schemas,
		SchemaDatabase: r.cfg.Sync.Database,
	}
	o := syncer.New(syncer.RegistryFactory(r.deps), opts)
	defer o.Close()

	if resp := o.SetupConnections(ctx, source, target); !resp.IsOk() {
		return nil, fmt.Errorf("%w: %s", ErrJobFailed, lastGeneralError(resp))
	}

	res, err := o.Synchronize(ctx)
	if err != nil {
		return nil, err
	}
	stats := StatisticsFromResponse(res.Response)
	if !res.Response.IsOk() {
		return stats, fmt.Errorf("%w: %s", ErrJobFailed, lastGeneralError(res.Response))
	}
	log.Printf("[SYNC] Job %s: %s", job.ID, stats)
	return stats, nil
}

func (r *SyncRunner) refresh(ctx context.Context, job *core.SyncJob) (*Statistics, error) {
	if r.cache == nil {
		return nil, fmt.Errorf("%w: no index cache configured", core.ErrConfiguration)
	}
	source, err := r.connection(job.Source)
	if err != nil {
		return nil, err
	}

	a, resp := adapter.Create(ctx, source, r.deps)
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrJobFailed, lastGeneralError(resp))
	}
	defer a.Close()

	table := firstNonEmpty(job.SourceTable, r.cfg.Sync.SourceTable)
	out, err := indexdiff.Refresh(ctx, a, r.cache, source.Name, table, r.identifierKeys(job))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJobFailed, err)
	}
	return StatisticsFromDiff(out.Stats), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func lastGeneralError(resp *core.OperationResponse) string {
	if resp == nil {
		return "no response"
	}
	for i := len(resp.GeneralErrors) - 1; i >= 0; i-- {
		if resp.GeneralErrors[i].Severity == core.SeverityError {
			return resp.GeneralErrors[i].Message
		}
	}
	return resp.Result().String()
}
