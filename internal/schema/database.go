package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Database is a named container of table schemas. Names are stored lower-cased.
// It is safe for concurrent use.
type Database struct {
	Name string

	mu     sync.RWMutex
	tables map[string]*TableSchema
}

// NewDatabase creates an empty database.
func NewDatabase(name string) *Database {
	return &Database{
		Name:   strings.ToLower(name),
		tables: make(map[string]*TableSchema),
	}
}

// EnsureTableSchema returns the schema for tableName, creating an empty one if needed.
func (d *Database) EnsureTableSchema(tableName string) *TableSchema {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := strings.ToLower(tableName)
	if s, ok := d.tables[key]; ok {
		return s
	}
	s := NewTableSchema(tableName)
	s.DatabaseName = d.Name
	d.tables[key] = s
	return s
}

// AddTableSchema registers s, replacing any schema for the same table.
func (d *Database) AddTableSchema(s *TableSchema) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s.DatabaseName = d.Name
	d.tables[strings.ToLower(s.TableName)] = s
}

// GetTableSchemaByName looks a schema up by table name, ignoring case.
func (d *Database) GetTableSchemaByName(tableName string) (*TableSchema, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.tables[strings.ToLower(tableName)]
	return s, ok
}

// TableSchemas returns all schemas ordered by table name.
func (d *Database) TableSchemas() []*TableSchema {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*TableSchema, 0, len(d.tables))
	for _, s := range d.tables {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableName < out[j].TableName })
	return out
}

type databaseSnapshot struct {
	Version int            `json:"version"`
	Name    string         `json:"name"`
	Tables  []*TableSchema `json:"tables"`
}

// MarshalJSON writes the database and all its schemas.
func (d *Database) MarshalJSON() ([]byte, error) {
	return json.Marshal(databaseSnapshot{
		Version: snapshotVersion,
		Name:    d.Name,
		Tables:  d.TableSchemas(),
	})
}

// UnmarshalJSON restores a database written by MarshalJSON.
func (d *Database) UnmarshalJSON(data []byte) error {
	var snap databaseSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode database: %w", err)
	}
	if snap.Version > snapshotVersion {
		return fmt.Errorf("unsupported database version %d", snap.Version)
	}
	d.mu.Lock()
	d.Name = strings.ToLower(snap.Name)
	d.tables = make(map[string]*TableSchema, len(snap.Tables))
	d.mu.Unlock()
	for _, s := range snap.Tables {
		d.AddTableSchema(s)
	}
	return nil
}
