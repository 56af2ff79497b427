package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/rzpsarthak13/tablesync/internal/core"
)

const databaseKeyPrefix = "database:"

// Repository persists databases and their table schemas in a KVStore.
// Loaded databases are cached; Save writes through.
type Repository struct {
	store core.KVStore

	mu        sync.Mutex
	databases map[string]*Database

	// saveMu orders mutate-and-save sequences so a stale snapshot never
	// overwrites a newer one.
	saveMu sync.Mutex
}

// NewRepository creates a repository backed by store.
func NewRepository(store core.KVStore) *Repository {
	return &Repository{
		store:     store,
		databases: make(map[string]*Database),
	}
}

func databaseKey(name string) string {
	return databaseKeyPrefix + strings.ToLower(name)
}

// EnsureDatabase loads the named database, creating an empty one if it has never been saved.
func (r *Repository) EnsureDatabase(ctx context.Context, name string) (*Database, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(name)
	if db, ok := r.databases[key]; ok {
		return db, nil
	}

	data, err := r.store.Get(ctx, databaseKey(name))
	switch {
	case errors.Is(err, core.ErrNotFound):
		log.Printf("[SCHEMA] Creating database %s", key)
		db := NewDatabase(name)
		r.databases[key] = db
		return db, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load database %s: %w", name, err)
	}

	db := &Database{}
	if err := json.Unmarshal(data, db); err != nil {
		return nil, fmt.Errorf("failed to decode database %s: %w", name, err)
	}
	r.databases[key] = db
	return db, nil
}

// EnsureTableSchema returns the schema for tableName inside the named database.
// A new empty schema is created and saved if none exists.
func (r *Repository) EnsureTableSchema(ctx context.Context, databaseName, tableName string) (*TableSchema, error) {
	db, err := r.EnsureDatabase(ctx, databaseName)
	if err != nil {
		return nil, err
	}
	if s, ok := db.GetTableSchemaByName(tableName); ok {
		return s, nil
	}

	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	s := db.EnsureTableSchema(tableName)
	if err := r.save(ctx, db); err != nil {
		return nil, err
	}
	return s, nil
}

// RegisterTableSchema adds or replaces s in the named database and saves it.
func (r *Repository) RegisterTableSchema(ctx context.Context, databaseName string, s *TableSchema) error {
	if err := s.Validate(); err != nil {
		return err
	}
	db, err := r.EnsureDatabase(ctx, databaseName)
	if err != nil {
		return err
	}

	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	db.AddTableSchema(s)
	return r.save(ctx, db)
}

// Save persists db.
func (r *Repository) Save(ctx context.Context, db *Database) error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	return r.save(ctx, db)
}

func (r *Repository) save(ctx context.Context, db *Database) error {
	data, err := json.Marshal(db)
	if err != nil {
		return fmt.Errorf("failed to encode database %s: %w", db.Name, err)
	}
	if err := r.store.Set(ctx, databaseKey(db.Name), data, 0); err != nil {
		return fmt.Errorf("failed to save database %s: %w", db.Name, err)
	}

	r.mu.Lock()
	r.databases[strings.ToLower(db.Name)] = db
	r.mu.Unlock()
	return nil
}

// GetTableSchemaByName returns the schema for tableName, or an error wrapping
// core.ErrNotFound if the database has no such table.
func (r *Repository) GetTableSchemaByName(ctx context.Context, databaseName, tableName string) (*TableSchema, error) {
	db, err := r.EnsureDatabase(ctx, databaseName)
	if err != nil {
		return nil, err
	}
	s, ok := db.GetTableSchemaByName(tableName)
	if !ok {
		return nil, fmt.Errorf("table schema %s in database %s: %w", tableName, db.Name, core.ErrNotFound)
	}
	return s, nil
}

// ListDatabases returns the names of all persisted databases.
func (r *Repository) ListDatabases(ctx context.Context) ([]string, error) {
	keys, err := r.store.Keys(ctx, databaseKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, databaseKeyPrefix))
	}
	return names, nil
}
