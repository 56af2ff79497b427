package core

import (
	"context"
	"time"
)

// DefaultIdentifierKeys is the identifier convention used when none is configured.
var DefaultIdentifierKeys = []string{"Id"}

// ReadOptions narrows a Read call. Zero values mean "no restriction".
type ReadOptions struct {
	// Top limits the number of rows returned when greater than zero.
	Top int

	// Fields restricts the columns returned.
	Fields []string

	// Filter is a backend-specific predicate (a WHERE clause for SQL,
	// "field = 'value'" expressions for the in-memory adapter).
	Filter string
}

// Adapter is the capability set every storage backend exposes.
//
// An adapter owns its backend connection. It is safe for concurrent use only
// if the underlying connection is.
type Adapter interface {
	// Configure binds the adapter to a backend. Failures are general errors.
	Configure(ctx context.Context, config AdapterConfig) *OperationResponse

	// Read returns the complete, materialized contents of table.
	Read(ctx context.Context, table string, opts ReadOptions) ([]*Item, error)

	// Insert writes each item and pairs it with the row the backend returned.
	Insert(ctx context.Context, table string, items []*Item) (*InsertResult, error)

	// Update writes each item addressed by its identifier fields.
	Update(ctx context.Context, table string, items []*Item) (*ItemsResult, error)

	// Delete removes each item addressed by its identifier fields.
	Delete(ctx context.Context, table string, items []*Item) (*ItemsResult, error)

	// Upsert routes items that already exist in table to Update and the rest
	// to Insert. Existing rows are split by identifierKeys, which must be the
	// keys the items were split by; empty means the connection's IdentifierKeys.
	Upsert(ctx context.Context, table string, items []*Item, identifierKeys []string) (*ItemsResult, error)

	// TestConnection reports whether the backend is reachable.
	TestConnection(ctx context.Context) bool

	// Type returns the adapter type identifier ("memory", "sql", "dynamodb").
	Type() string

	// Close releases the backend connection.
	Close() error
}

// AdapterConfig describes one named connection.
type AdapterConfig struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`

	// IdentifierKeys is the identifier convention used when splitting rows read
	// from this connection. Defaults to DefaultIdentifierKeys.
	IdentifierKeys []string `yaml:"identifier_keys,omitempty" json:"identifier_keys,omitempty"`

	// Database is the backend database name, or the file path for sqlite.
	// Table schemas are kept in the schema repository under the connection Name.
	Database string `yaml:"database,omitempty" json:"database,omitempty"`

	// Relational settings.
	Dialect           string        `yaml:"dialect,omitempty" json:"dialect,omitempty"`
	DSN               string        `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	Host              string        `yaml:"host,omitempty" json:"host,omitempty"`
	Port              int           `yaml:"port,omitempty" json:"port,omitempty"`
	Username          string        `yaml:"username,omitempty" json:"username,omitempty"`
	Password          string        `yaml:"password,omitempty" json:"password,omitempty"`
	MaxOpenConns      int           `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`
	MaxIdleConns      int           `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout,omitempty" json:"connection_timeout,omitempty"`

	// WriteRate caps per-row write statements per second. Zero disables it.
	WriteRate int `yaml:"write_rate,omitempty" json:"write_rate,omitempty"`

	// DynamoDB settings.
	Region          string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
	TablePrefix     string `yaml:"table_prefix,omitempty" json:"table_prefix,omitempty"`
}

// Identifiers returns the configured identifier keys or the default convention.
func (c AdapterConfig) Identifiers() []string {
	if len(c.IdentifierKeys) == 0 {
		return DefaultIdentifierKeys
	}
	return c.IdentifierKeys
}
