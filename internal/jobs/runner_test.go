package jobs

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/tablesync/internal/adapter"
	"github.com/rzpsarthak13/tablesync/internal/config"
	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/indexdiff"
	"github.com/rzpsarthak13/tablesync/internal/kvstore"
	"github.com/rzpsarthak13/tablesync/internal/schema"
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

func sqliteConn(path string) core.AdapterConfig {
	return core.AdapterConfig{Type: "sql", Dialect: "sqlite", Database: path, MaxOpenConns: 1, IdentifierKeys: []string{"Code"}}
}

func TestSyncRunner_Synchronize(t *testing.T) {
	ctx := context.Background()
	src := sqliteFile(t, "src.db", productsDDL,
		`INSERT INTO Products (Code, Name, Price) VALUES ('A1', 'Anvil', 10.5), ('B2', 'Bucket', 3)`)
	dst := sqliteFile(t, "dst.db", productsDDL,
		`INSERT INTO Products (Code, Name, Price) VALUES ('A1', 'Old anvil', 9)`)

	cfg := config.Default()
	cfg.Connections["src"] = sqliteConn(src)
	cfg.Connections["dst"] = sqliteConn(dst)
	cfg.Sync.IdentifierKeys = []string{"Code"}

	repo := schema.NewRepository(kvstore.NewMemoryKVStore())
	r := NewSyncRunner(cfg, adapter.Dependencies{Schemas: repo}, nil)

	stats, err := r.Run(ctx, &core.SyncJob{ID: "j1", Source: "src", Target: "dst", SourceTable: "Products", TargetTable: "Products"})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RowsUpdated)
	assert.Equal(t, 0, stats.RowsFailed)

	db, err := sql.Open("sqlite3", dst)
	require.NoError(t, err)
	defer db.Close()
	var name string
	require.NoError(t, db.QueryRow(`SELECT Name FROM Products WHERE Code = 'A1'`).Scan(&name))
	assert.Equal(t, "Anvil", name)
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM Products`).Scan(&count))
	assert.Equal(t, 2, count)

	// The target schema was discovered under the connection name.
	ts, err := repo.GetTableSchemaByName(ctx, "dst", "Products")
	require.NoError(t, err)
	assert.Equal(t, []string{"Code"}, ts.PrimaryKeyNames())
}

func TestSyncRunner_Errors(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Connections["mem"] = core.AdapterConfig{Type: "memory"}
	cfg.Connections["bad"] = core.AdapterConfig{Type: "sql", Dialect: "sqlite", Database: filepath.Join(t.TempDir(), "no", "such", "dir.db")}
	r := NewSyncRunner(cfg, adapter.Dependencies{}, nil)

	_, err := r.Run(ctx, &core.SyncJob{Source: "mem", Target: "missing"})
	assert.ErrorIs(t, err, core.ErrConfiguration)

	_, err = r.Run(ctx, &core.SyncJob{Source: "mem", Target: "bad"})
	assert.ErrorIs(t, err, ErrJobFailed)
	assert.Contains(t, err.Error(), "SetupConnections could not create adapter for targetConfig")

	_, err = r.Run(ctx, &core.SyncJob{Kind: core.JobIndexRefresh, Source: "mem"})
	assert.ErrorIs(t, err, core.ErrConfiguration, "refresh needs a cache")

	_, err = r.Run(ctx, &core.SyncJob{Kind: "REINDEX", Source: "mem"})
	assert.ErrorIs(t, err, ErrInvalidJob)

	stats, err := r.Run(ctx, &core.SyncJob{Source: "mem", Target: "mem"})
	require.NoError(t, err)
	assert.Equal(t, &Statistics{}, stats)
}

func TestSyncRunner_IndexRefresh(t *testing.T) {
	ctx := context.Background()
	src := sqliteFile(t, "src.db", productsDDL,
		`INSERT INTO Products (Code, Name, Price) VALUES ('A1', 'Anvil', 10.5), ('B2', 'Bucket', 3)`)

	cfg := config.Default()
	cfg.Connections["src"] = sqliteConn(src)
	cache := indexdiff.NewCache(kvstore.NewMemoryKVStore())
	r := NewSyncRunner(cfg, adapter.Dependencies{}, cache)

	job := &core.SyncJob{Kind: core.JobIndexRefresh, Source: "src", SourceTable: "Products", IdentifierKeys: []string{"Code"}}
	stats, err := r.Run(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RowsNew)

	stats, err = r.Run(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RowsSkipped)
}
