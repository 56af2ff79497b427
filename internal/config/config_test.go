package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/rzpsarthak13/tablesync/internal/adapter"
	"github.com/rzpsarthak13/tablesync/internal/config"
	"github.com/rzpsarthak13/tablesync/internal/core"
	_ "github.com/rzpsarthak13/tablesync/internal/kvstore"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, config.Validate(cfg))
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, []string{"Id"}, cfg.Sync.IdentifierKeys)
	assert.Equal(t, "memory", cfg.Jobs.QueueType)
}

func TestRegisteredValidators(t *testing.T) {
	assert.Equal(t, []string{"dynamodb", "memory", "sql"}, config.RegisteredConnectionTypes())
	assert.Subset(t, config.RegisteredStoreTypes(), []string{"memory", "file", "redis", "dynamodb"})
}

const sampleYAML = `
connections:
  crm:
    type: sql
    dialect: postgres
    host: crm-db
    database: crm
    identifier_keys: [CustomerId]
  scratch:
    type: memory
sync:
  source: crm
  target: scratch
  source_table: Customers
  target_table: Customers
jobs:
  queue_type: kafka
  rate: 5
  retry_backoff: 2s
  kafka:
    brokers: [k1:9092, k2:9092]
    topic: sync-jobs
`

func TestManager_LoadFromYAML(t *testing.T) {
	m := config.NewManager()
	require.NoError(t, m.LoadFromYAML([]byte(sampleYAML)))
	cfg := m.Get()

	crm, ok := cfg.Connection("crm")
	require.True(t, ok)
	assert.Equal(t, "crm", crm.Name)
	assert.Equal(t, []string{"CustomerId"}, crm.Identifiers())
	assert.Equal(t, []string{"crm", "scratch"}, cfg.ConnectionNames())

	assert.Equal(t, "Customers", cfg.Sync.SourceTable)
	assert.Equal(t, "default", cfg.Sync.Database, "unset fields keep their defaults")
	assert.Equal(t, 5, cfg.Jobs.Rate)
	assert.Equal(t, 2*time.Second, cfg.Jobs.RetryBackoff)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Jobs.Kafka.Brokers)
	assert.Equal(t, "tablesync-workers", cfg.Jobs.Kafka.GroupID)
}

func TestManager_LoadFromJSON(t *testing.T) {
	m := config.NewManager()
	require.NoError(t, m.LoadFromJSON([]byte(`{"connections":{"a":{"type":"memory"}},"store":{"type":"file","path":"/tmp/ts"}}`)))
	assert.Equal(t, "file", m.Get().Store.Type)
	assert.Equal(t, "a", m.Get().Connections["a"].Name)

	assert.Error(t, m.LoadFromJSON([]byte(`{"connections":`)))
}

func TestManager_LoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "tablesync.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(sampleYAML), 0o644))

	m := config.NewManager()
	require.NoError(t, m.LoadFromFile(yamlPath))
	assert.Len(t, m.Get().Connections, 2)

	txtPath := filepath.Join(dir, "tablesync.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("x"), 0o644))
	assert.ErrorContains(t, m.LoadFromFile(txtPath), "unsupported config file format")
	assert.Error(t, m.LoadFromFile(filepath.Join(dir, "missing.yaml")))
}

func TestManager_InvalidConfigKeepsPrevious(t *testing.T) {
	m := config.NewManager()
	err := m.LoadFromYAML([]byte("connections:\n  x:\n    type: cassandra\n"))
	assert.ErrorContains(t, err, "unsupported adapter type")
	assert.Empty(t, m.Get().Connections)
}

func TestManager_LoadFromEnv(t *testing.T) {
	t.Setenv("TABLESYNC_STORE_TYPE", "redis")
	t.Setenv("TABLESYNC_STORE_REDIS_ENDPOINTS", "r1:6379, r2:6379")
	t.Setenv("TABLESYNC_SYNC_IDENTIFIER_KEYS", "Id1,Id2")
	t.Setenv("TABLESYNC_JOBS_QUEUE_TYPE", "redis")
	t.Setenv("TABLESYNC_JOBS_POLL_INTERVAL", "250ms")
	t.Setenv("TABLESYNC_CONNECTION_WAREHOUSE_TYPE", "sql")
	t.Setenv("TABLESYNC_CONNECTION_WAREHOUSE_DIALECT", "mysql")
	t.Setenv("TABLESYNC_CONNECTION_WAREHOUSE_HOST", "wh")
	t.Setenv("TABLESYNC_CONNECTION_WAREHOUSE_PORT", "3307")
	t.Setenv("TABLESYNC_CONNECTION_WAREHOUSE_IDENTIFIER_KEYS", "Sku")

	m := config.NewManager()
	require.NoError(t, m.LoadFromEnv())
	cfg := m.Get()

	assert.Equal(t, "redis", cfg.Store.Type)
	assert.Equal(t, []string{"r1:6379", "r2:6379"}, cfg.Store.Redis.Endpoints)
	assert.Equal(t, []string{"Id1", "Id2"}, cfg.Sync.IdentifierKeys)
	assert.Equal(t, 250*time.Millisecond, cfg.Jobs.PollInterval)

	wh, ok := cfg.Connection("warehouse")
	require.True(t, ok)
	assert.Equal(t, "mysql", wh.Dialect)
	assert.Equal(t, 3307, wh.Port)
	assert.Equal(t, []string{"Sku"}, wh.IdentifierKeys)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{"missing store type", func(c *config.Config) { c.Store.Type = "" }, "store.type is required"},
		{"unknown sync source", func(c *config.Config) { c.Sync.Source = "ghost" }, "sync.source refers to unknown connection"},
		{"empty table", func(c *config.Config) { c.Sync.TargetTable = "" }, "sync.source_table and sync.target_table are required"},
		{"empty database", func(c *config.Config) { c.Sync.Database = "" }, "sync.database is required"},
		{"bad queue", func(c *config.Config) { c.Jobs.QueueType = "sqs" }, "jobs.queue_type"},
		{"kafka without topic", func(c *config.Config) {
			c.Jobs.QueueType = "kafka"
			c.Jobs.Kafka.Topic = ""
		}, "jobs.kafka.topic is required"},
		{"zero rate", func(c *config.Config) { c.Jobs.Rate = 0 }, "jobs.rate must be greater than 0"},
		{"connection without type", func(c *config.Config) { c.Connections["x"] = core.AdapterConfig{} }, "connections.x.type is required"},
		{"sql connection without host", func(c *config.Config) {
			c.Connections["x"] = core.AdapterConfig{Type: "sql", Dialect: "postgres"}
		}, "connections.x validation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := config.Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
