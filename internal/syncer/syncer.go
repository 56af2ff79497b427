// Package syncer runs a one-shot synchronization from a source adapter to a
// target adapter.
package syncer

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/rzpsarthak13/tablesync/internal/adapter"
	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/schema"
)

// State is the lifecycle state of an Orchestrator.
type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateSynchronized
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "Unconfigured"
	case StateConfigured:
		return "Configured"
	case StateSynchronized:
		return "Synchronized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Default table names used when Options leaves them empty.
const (
	DefaultSourceTable = "SourceTable"
	DefaultTargetTable = "TargetTable"
)

// AdapterFactory resolves a connection config to a configured adapter. A nil
// adapter comes with a response carrying the reason.
type AdapterFactory interface {
	CreateAdapter(ctx context.Context, cfg core.AdapterConfig) (core.Adapter, *core.OperationResponse)
}

// AdapterFactoryFunc adapts a function to AdapterFactory.
type AdapterFactoryFunc func(ctx context.Context, cfg core.AdapterConfig) (core.Adapter, *core.OperationResponse)

func (f AdapterFactoryFunc) CreateAdapter(ctx context.Context, cfg core.AdapterConfig) (core.Adapter, *core.OperationResponse) {
	return f(ctx, cfg)
}

// RegistryFactory creates adapters through the adapter package registry.
func RegistryFactory(deps adapter.Dependencies) AdapterFactory {
	return AdapterFactoryFunc(func(ctx context.Context, cfg core.AdapterConfig) (core.Adapter, *core.OperationResponse) {
		return adapter.Create(ctx, cfg, deps)
	})
}

// Options configure an Orchestrator.
type Options struct {
	SourceTable    string
	TargetTable    string
	IdentifierKeys []string

	// Schemas, when set, receives the schema inferred from the source rows
	// under SchemaDatabase.
	Schemas        *schema.Repository
	SchemaDatabase string
}

func (o Options) withDefaults() Options {
	if o.SourceTable == "" {
		o.SourceTable = DefaultSourceTable
	}
	if o.TargetTable == "" {
		o.TargetTable = DefaultTargetTable
	}
	if len(o.IdentifierKeys) == 0 {
		o.IdentifierKeys = append([]string(nil), core.DefaultIdentifierKeys...)
	}
	if o.SchemaDatabase == "" {
		o.SchemaDatabase = "default"
	}
	return o
}

// Orchestrator copies every row of a source table into a target table.
//
// Unconfigured -> SetupConnections -> Configured -> Synchronize -> Synchronized.
// Synchronize may be called again from Synchronized.
type Orchestrator struct {
	factory AdapterFactory
	opts    Options

	mu     sync.Mutex
	state  State
	source core.Adapter
	target core.Adapter
}

// New creates an unconfigured orchestrator.
func New(factory AdapterFactory, opts Options) *Orchestrator {
	return &Orchestrator{
		factory: factory,
		opts:    opts.withDefaults(),
		state:   StateUnconfigured,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Options returns the effective options.
func (o *Orchestrator) Options() Options {
	return o.opts
}

// SetupConnections creates both adapters. If either fails the state is
// unchanged and the failing side's response is returned with an extra
// general error naming it.
func (o *Orchestrator) SetupConnections(ctx context.Context, sourceConfig, targetConfig core.AdapterConfig) *core.OperationResponse {
	source, resp := o.factory.CreateAdapter(ctx, sourceConfig)
	if source == nil || !resp.IsOk() {
		resp = orEmpty(resp)
		resp.AddGeneral(core.SeverityError, "SetupConnections could not create adapter for sourceConfig")
		log.Printf("[SYNC] ERROR: Source adapter %s could not be created", sourceConfig.Name)
		return resp
	}

	target, resp := o.factory.CreateAdapter(ctx, targetConfig)
	if target == nil || !resp.IsOk() {
		resp = orEmpty(resp)
		resp.AddGeneral(core.SeverityError, "SetupConnections could not create adapter for targetConfig")
		log.Printf("[SYNC] ERROR: Target adapter %s could not be created", targetConfig.Name)
		closeAdapter(source)
		return resp
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	closeAdapter(o.source)
	closeAdapter(o.target)
	o.source = source
	o.target = target
	o.state = StateConfigured

	log.Printf("[SYNC] Connections ready: %s (%s) -> %s (%s)", sourceConfig.Name, source.Type(), targetConfig.Name, target.Type())
	return core.NewOperationResponse()
}

// UseAdapters installs already configured adapters and moves to Configured.
func (o *Orchestrator) UseAdapters(source, target core.Adapter) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.source = source
	o.target = target
	o.state = StateConfigured
}

// Synchronize reads the source table, splits every row by the identifier
// keys and upserts the rows into the target table. Per-row outcomes are in
// the returned response; an error means the run could not proceed.
func (o *Orchestrator) Synchronize(ctx context.Context) (*core.ItemsResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateUnconfigured {
		return nil, fmt.Errorf("%w: SetupConnections has not completed", core.ErrNotConfigured)
	}

	rows, err := o.source.Read(ctx, o.opts.SourceTable, core.ReadOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read source table %s: %w", o.opts.SourceTable, err)
	}
	items := core.CloneItems(rows)
	if err := core.SplitItemsByIdentifierKeys(items, o.opts.IdentifierKeys); err != nil {
		return nil, fmt.Errorf("failed to split source rows by identifier keys: %w", err)
	}
	log.Printf("[SYNC] Read %d rows from %s", len(items), o.opts.SourceTable)

	o.recordSourceSchema(ctx, items)

	upserted, err := o.target.Upsert(ctx, o.opts.TargetTable, items, o.opts.IdentifierKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert into target table %s: %w", o.opts.TargetTable, err)
	}

	result := core.NewItemsResult()
	result.Response.Append(upserted.Response)
	result.Items = append(result.Items, upserted.Items...)
	o.state = StateSynchronized

	log.Printf("[SYNC] Upserted %d of %d rows into %s: %s", len(result.Items), len(items), o.opts.TargetTable, result.Response.Result())
	return result, nil
}

// recordSourceSchema infers the source table schema from items and stores
// it. Failures are logged only.
func (o *Orchestrator) recordSourceSchema(ctx context.Context, items []*core.Item) {
	if o.opts.Schemas == nil || len(items) == 0 {
		return
	}

	ts := schema.NewTableSchema(o.opts.SourceTable)
	ts.DatabaseName = o.opts.SchemaDatabase
	var err error
	items[0].Identifiers.Range(func(k string, v interface{}) bool {
		f := schema.NewField(k, schema.TypeCodeOf(v).FieldType())
		f.IsPrimaryKey = true
		_, err = ts.AddField(f)
		return err == nil
	})
	if err == nil {
		err = ts.LoadFromItems(items)
	}
	if err == nil {
		err = o.opts.Schemas.RegisterTableSchema(ctx, o.opts.SchemaDatabase, ts)
	}
	if err != nil {
		log.Printf("[SYNC] WARNING: Could not record schema of %s: %v", o.opts.SourceTable, err)
		return
	}
	log.Printf("[SYNC] Recorded schema of %s in %s with %d fields", o.opts.SourceTable, o.opts.SchemaDatabase, len(ts.Fields()))
}

// Source returns the source adapter, or nil before SetupConnections.
func (o *Orchestrator) Source() core.Adapter {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.source
}

// Target returns the target adapter, or nil before SetupConnections.
func (o *Orchestrator) Target() core.Adapter {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.target
}

// Close closes both adapters and returns to Unconfigured.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var firstErr error
	for _, a := range []core.Adapter{o.source, o.target} {
		if a == nil {
			continue
		}
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	o.source, o.target = nil, nil
	o.state = StateUnconfigured
	return firstErr
}

func orEmpty(resp *core.OperationResponse) *core.OperationResponse {
	if resp == nil {
		return core.NewOperationResponse()
	}
	return resp
}

func closeAdapter(a core.Adapter) {
	if a == nil {
		return
	}
	if err := a.Close(); err != nil {
		log.Printf("[SYNC] WARNING: Failed to close %s adapter: %v", a.Type(), err)
	}
}
