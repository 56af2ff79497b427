package tablesync

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/kvstore"
)

const productsDDL = `CREATE TABLE Products (Code TEXT PRIMARY KEY, Name TEXT NOT NULL, Price REAL)`

func sqliteFile(t *testing.T, name string, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return path
}

// testConfig has a sqlite source and target holding a Products table and an
// in-memory connection.
func testConfig(t *testing.T) *Config {
	t.Helper()
	src := sqliteFile(t, "src.db", productsDDL,
		`INSERT INTO Products (Code, Name, Price) VALUES ('A1', 'Anvil', 10.5), ('B2', 'Bucket', 3)`)
	dst := sqliteFile(t, "dst.db", productsDDL)

	cfg := DefaultConfig()
	cfg.Logging.Quiet = true
	cfg.Connections["src"] = ConnectionConfig{Type: "sql", Dialect: "sqlite", Database: src, MaxOpenConns: 1, IdentifierKeys: []string{"Code"}}
	cfg.Connections["dst"] = ConnectionConfig{Type: "sql", Dialect: "sqlite", Database: dst, MaxOpenConns: 1, IdentifierKeys: []string{"Code"}}
	cfg.Connections["mem"] = ConnectionConfig{Type: "memory"}
	cfg.Sync.Source = "src"
	cfg.Sync.Target = "dst"
	cfg.Sync.SourceTable = "Products"
	cfg.Sync.TargetTable = "Products"
	cfg.Sync.IdentifierKeys = []string{"Code"}
	cfg.Jobs.PollInterval = 10 * time.Millisecond
	cfg.Jobs.Rate = 100
	return cfg
}

func newTestClient(t *testing.T, cfg *Config) Client {
	t.Helper()
	c, err := NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Store.Type = "cassandra"
	_, err = NewClient(cfg)
	assert.ErrorContains(t, err, "unsupported store type")

	cfg = DefaultConfig()
	cfg.Sync.Source = "nowhere"
	_, err = NewClient(cfg)
	assert.ErrorContains(t, err, "unknown connection")
}

func TestClient_Synchronize(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, testConfig(t))

	res, err := c.Synchronize(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.ResultSuccess, res.Response.Result(), res.Response.String())
	assert.Len(t, res.Items, 2)
	assert.Equal(t, 2, res.Statistics.RowsUpdated)

	rows, err := c.Read(ctx, "dst", "Products", ReadOptions{Filter: "Code = 'A1'"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Identifiers.Has("Code"))
	name, _ := rows[0].Get("Name")
	assert.Equal(t, "Anvil", name)
}

func TestClient_SynchronizeOptions(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, testConfig(t))

	_, err := c.Synchronize(ctx, WithConnections("src", "ghost"))
	assert.ErrorIs(t, err, ErrUnknownConnection)

	res, err := c.Synchronize(ctx, WithConnections("mem", "dst"), WithTables("Empty", "Products"), WithIdentifierKeys("Code"))
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, 0, res.Statistics.RowsUpdated)
}

func TestClient_Schema(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, testConfig(t))

	ts, err := c.Schema(ctx, "dst", "Products")
	require.NoError(t, err)
	assert.Equal(t, []string{"Code"}, ts.PrimaryKeyNames())

	// Non-relational connections answer from the schema recorded by a sync.
	_, err = c.Schema(ctx, "mem", "Products")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = c.Synchronize(ctx)
	require.NoError(t, err)
	ts, err = c.Schema(ctx, "mem", "Products")
	require.NoError(t, err)
	assert.Equal(t, []string{"Code"}, ts.PrimaryKeyNames())
}

func TestClient_Diff(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, testConfig(t))

	out, err := c.Diff(ctx, "src", "Products")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Stats.RowsNew)

	out, err = c.Diff(ctx, "src", "Products", "Code")
	require.NoError(t, err)
	assert.Equal(t, 0, out.Stats.RowsNew)
	assert.Equal(t, 2, out.Stats.RowsSkipped)
}

func TestClient_Ping(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Connections["bad"] = ConnectionConfig{Type: "sql", Dialect: "sqlite", Database: filepath.Join(t.TempDir(), "no", "dir", "x.db")}
	c := newTestClient(t, cfg)

	assert.NoError(t, c.Ping(ctx, "mem"))
	assert.NoError(t, c.Ping(ctx, "src"))
	assert.ErrorIs(t, c.Ping(ctx, "bad"), ErrSetupFailed)
	assert.ErrorIs(t, c.Ping(ctx, "ghost"), ErrUnknownConnection)
}

func TestClient_Worker(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, testConfig(t))

	assert.ErrorIs(t, c.Enqueue(ctx, &SyncJob{Source: "src", Target: "ghost"}), ErrUnknownConnection)

	require.NoError(t, c.Enqueue(ctx, &SyncJob{Source: "src", Target: "dst"}))
	require.NoError(t, c.Enqueue(ctx, &SyncJob{Kind: JobIndexRefresh, Source: "src"}))

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.IsRunning())

	require.Eventually(t, func() bool {
		_, completed, _ := c.Statistics()
		return completed == 2
	}, 5*time.Second, 20*time.Millisecond)

	stats, _, failed := c.Statistics()
	assert.Equal(t, 0, failed)
	assert.Equal(t, 2, stats.RowsUpdated)
	assert.Equal(t, 2, stats.RowsNew)

	require.NoError(t, c.Stop())
	assert.False(t, c.IsRunning())
}

func TestClient_Close(t *testing.T) {
	store := kvstore.NewMemoryKVStore()
	c, err := NewClient(testConfig(t), WithStore(store))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Start(context.Background()), core.ErrClosed)

	// A store passed in by the caller stays open.
	assert.NoError(t, store.Set(context.Background(), "k", []byte("v"), 0))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TABLESYNC_SYNC_SOURCE_TABLE", "Customers")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "Customers", cfg.Sync.SourceTable)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
