package tablesync

import (
	"fmt"

	"github.com/rzpsarthak13/tablesync/internal/config"
	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/indexdiff"
	"github.com/rzpsarthak13/tablesync/internal/jobs"
	"github.com/rzpsarthak13/tablesync/internal/schema"
)

// Config is the root configuration of a tablesync client.
type Config = config.Config

// ConnectionConfig describes one named connection.
type ConnectionConfig = core.AdapterConfig

// Item is a row split into identifier and data fields.
type Item = core.Item

// ReadOptions narrows a Read call.
type ReadOptions = core.ReadOptions

// OperationResponse is the result envelope of a batch operation.
type OperationResponse = core.OperationResponse

// SyncJob is a unit of work for the background worker.
type SyncJob = core.SyncJob

// Statistics counts the rows touched by synchronizations and index refreshes.
type Statistics = jobs.Statistics

// DiffOutput is the result of comparing a source table to its cached index.
type DiffOutput = indexdiff.Output

// TableSchema describes the fields of a table.
type TableSchema = schema.TableSchema

// Job kinds accepted by Enqueue.
const (
	JobSynchronize  = core.JobSynchronize
	JobIndexRefresh = core.JobIndexRefresh
)

// DefaultConfig returns the default configuration: in-memory store and queue,
// "Id" identifiers, no connections.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig reads a YAML or JSON file, overlays TABLESYNC_* environment
// variables and validates the result. An empty path loads defaults and the
// environment only.
func LoadConfig(path string) (*Config, error) {
	m := config.NewManager()
	if path != "" {
		if err := m.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := m.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	return m.Get(), nil
}
