package syncer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/tablesync/internal/adapter"
	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/kvstore"
	"github.com/rzpsarthak13/tablesync/internal/schema"
)

// fixedFactory hands out pre-built adapters by connection name.
func fixedFactory(t *testing.T, adapters map[string]*adapter.MemoryAdapter) AdapterFactory {
	return AdapterFactoryFunc(func(ctx context.Context, cfg core.AdapterConfig) (core.Adapter, *core.OperationResponse) {
		m, ok := adapters[cfg.Name]
		if !ok {
			resp := core.NewOperationResponse()
			resp.AddGeneral(core.SeverityError, "no adapter named %s", cfg.Name)
			return nil, resp
		}
		return m, m.Configure(ctx, cfg)
	})
}

func memCfg(name string) core.AdapterConfig {
	return core.AdapterConfig{Name: name, Type: "memory"}
}

func TestOrchestrator_InMemToInMem(t *testing.T) {
	ctx := context.Background()
	source := adapter.NewMemoryAdapter()
	target := adapter.NewMemoryAdapter()
	source.Seed(DefaultSourceTable,
		core.NewDataItem(map[string]interface{}{"Id": 1, "Name": "Lindboe"}),
		core.NewDataItem(map[string]interface{}{"Id": 2, "Name": "Andersen"}),
	)
	target.Seed(DefaultTargetTable, core.NewItem(map[string]interface{}{"Id": 1}, map[string]interface{}{"Name": "Old"}))

	o := New(fixedFactory(t, map[string]*adapter.MemoryAdapter{"src": source, "dst": target}), Options{})
	assert.Equal(t, StateUnconfigured, o.State())

	resp := o.SetupConnections(ctx, memCfg("src"), memCfg("dst"))
	require.True(t, resp.IsOk(), resp.String())
	assert.Equal(t, StateConfigured, o.State())

	res, err := o.Synchronize(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.ResultSuccess, res.Response.Result(), res.Response.String())
	assert.Len(t, res.Items, 2)
	assert.Equal(t, StateSynchronized, o.State())

	rows, err := target.Read(ctx, DefaultTargetTable, core.ReadOptions{Filter: "Id = 1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	name, _ := rows[0].Get("Name")
	assert.Equal(t, "Lindboe", name)

	// Source rows are untouched by the identifier split.
	srcRows, err := source.Read(ctx, DefaultSourceTable, core.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, srcRows[0].Identifiers.Len())

	// A second run updates everything.
	res, err = o.Synchronize(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.ResultSuccess, res.Response.Result())
	all, err := target.Read(ctx, DefaultTargetTable, core.ReadOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, o.Close())
	assert.Equal(t, StateUnconfigured, o.State())
}

func TestOrchestrator_SynchronizeBeforeSetup(t *testing.T) {
	o := New(fixedFactory(t, nil), Options{})
	_, err := o.Synchronize(context.Background())
	assert.ErrorIs(t, err, core.ErrNotConfigured)
}

func TestOrchestrator_SetupFailures(t *testing.T) {
	ctx := context.Background()
	adapters := map[string]*adapter.MemoryAdapter{"src": adapter.NewMemoryAdapter()}
	o := New(fixedFactory(t, adapters), Options{})

	resp := o.SetupConnections(ctx, memCfg("missing"), memCfg("src"))
	assert.False(t, resp.IsOk())
	assert.Equal(t, "SetupConnections could not create adapter for sourceConfig", resp.GeneralErrors[len(resp.GeneralErrors)-1].Message)
	assert.Equal(t, StateUnconfigured, o.State())

	resp = o.SetupConnections(ctx, memCfg("src"), memCfg("missing"))
	assert.False(t, resp.IsOk())
	assert.Equal(t, "SetupConnections could not create adapter for targetConfig", resp.GeneralErrors[len(resp.GeneralErrors)-1].Message)
	assert.Equal(t, StateUnconfigured, o.State())
	assert.False(t, adapters["src"].TestConnection(ctx), "source is closed when the target fails")
}

func TestOrchestrator_KeyConflictIsFatal(t *testing.T) {
	ctx := context.Background()
	source := adapter.NewMemoryAdapter()
	target := adapter.NewMemoryAdapter()
	source.Seed("S", core.NewItem(map[string]interface{}{"Id": 1}, map[string]interface{}{"id": 1}))

	o := New(fixedFactory(t, map[string]*adapter.MemoryAdapter{"src": source, "dst": target}), Options{SourceTable: "S", TargetTable: "T"})
	require.True(t, o.SetupConnections(ctx, memCfg("src"), memCfg("dst")).IsOk())

	_, err := o.Synchronize(ctx)
	assert.ErrorIs(t, err, core.ErrKeyConflict)
	assert.Equal(t, StateConfigured, o.State())
}

func TestOrchestrator_RecordsSourceSchema(t *testing.T) {
	ctx := context.Background()
	repo := schema.NewRepository(kvstore.NewMemoryKVStore())
	source := adapter.NewMemoryAdapter()
	target := adapter.NewMemoryAdapter()
	source.Seed("People", core.NewDataItem(map[string]interface{}{"Id": 7, "Name": "Ann"}))

	o := New(fixedFactory(t, map[string]*adapter.MemoryAdapter{"src": source, "dst": target}), Options{
		SourceTable:    "People",
		TargetTable:    "People",
		Schemas:        repo,
		SchemaDatabase: "inventory",
	})
	require.True(t, o.SetupConnections(ctx, memCfg("src"), memCfg("dst")).IsOk())

	res, err := o.Synchronize(ctx)
	require.NoError(t, err)
	assert.True(t, res.Response.IsOk())

	ts, err := repo.GetTableSchemaByName(ctx, "inventory", "people")
	require.NoError(t, err)
	assert.Equal(t, []string{"Id"}, ts.PrimaryKeyNames())
	assert.Len(t, ts.Fields(), 2)
}

func TestOrchestrator_RegistryFactory(t *testing.T) {
	ctx := context.Background()
	o := New(RegistryFactory(adapter.Dependencies{}), Options{})

	resp := o.SetupConnections(ctx, memCfg("a"), memCfg("b"))
	require.True(t, resp.IsOk(), resp.String())
	assert.Equal(t, "memory", o.Source().Type())

	res, err := o.Synchronize(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, core.ResultSuccess, res.Response.Result())

	resp = o.SetupConnections(ctx, memCfg("a"), core.AdapterConfig{Name: "b", Type: "nope"})
	assert.False(t, resp.IsOk())
	assert.Equal(t, StateSynchronized, o.State(), "a failed setup keeps the previous connections")
}

func TestOrchestrator_CompositeKeysDriveTargetSplit(t *testing.T) {
	ctx := context.Background()
	repo := schema.NewRepository(kvstore.NewMemoryKVStore())

	// The target connection keeps the default "Id" convention.
	target := adapter.NewSQLAdapter(repo)
	resp := target.Configure(ctx, core.AdapterConfig{
		Name:         "dst",
		Type:         "sql",
		Dialect:      "sqlite",
		Database:     filepath.Join(t.TempDir(), "dst.db"),
		MaxOpenConns: 1,
	})
	require.True(t, resp.IsOk(), resp.String())
	for _, stmt := range []string{
		`CREATE TABLE TargetTable (Id1 INTEGER NOT NULL, Id2 INTEGER NOT NULL, Name TEXT, PRIMARY KEY (Id1, Id2))`,
		`INSERT INTO TargetTable (Id1, Id2, Name) VALUES (1, 100, 'Jensen')`,
	} {
		_, err := target.DB().ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	source := adapter.NewMemoryAdapter()
	require.True(t, source.Configure(ctx, memCfg("src")).IsOk())
	source.Seed(DefaultSourceTable,
		core.NewDataItem(map[string]interface{}{"Id1": 1, "Id2": 100, "Name": "Jensen II"}),
		core.NewDataItem(map[string]interface{}{"Id1": 2, "Id2": 200, "Name": "Nielsen"}),
	)

	o := New(fixedFactory(t, nil), Options{IdentifierKeys: []string{"Id1", "Id2"}})
	o.UseAdapters(source, target)
	defer o.Close()

	res, err := o.Synchronize(ctx)
	require.NoError(t, err)
	require.Equal(t, core.ResultSuccess, res.Response.Result(), res.Response.String())
	assert.Len(t, res.Items, 2)

	rows, err := target.Read(ctx, DefaultTargetTable, core.ReadOptions{Filter: "Id1 = 1 AND Id2 = 100"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	name, _ := rows[0].Get("Name")
	assert.Equal(t, "Jensen II", name)
}
