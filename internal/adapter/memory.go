package adapter

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/matching"
)

// MemoryAdapter keeps each table as an ordered slice of items. It is the
// reference backend and the test double for the other adapters. Rows are
// addressed by exact equality of their whole identifier set.
type MemoryAdapter struct {
	mu     sync.Mutex
	cfg    core.AdapterConfig
	tables map[string][]*core.Item
	closed bool
}

// NewMemoryAdapter creates an empty, unconfigured adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{tables: make(map[string][]*core.Item)}
}

func tableKey(table string) string {
	return strings.ToLower(table)
}

func (m *MemoryAdapter) Configure(ctx context.Context, cfg core.AdapterConfig) *core.OperationResponse {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()

	resp := core.NewOperationResponse()
	if !m.TestConnection(ctx) {
		resp.AddGeneral(core.SeverityError, "SetConfiguration could not connect to database.")
		return resp
	}
	resp.AddGeneral(core.SeverityInfo, "SetConfiguration completed successfully.")
	return resp
}

// Seed appends items to table without any checks. Useful to prepare fixtures.
func (m *MemoryAdapter) Seed(table string, items ...*core.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tableKey(table)
	for _, item := range items {
		m.tables[key] = append(m.tables[key], item.Clone())
	}
}

func (m *MemoryAdapter) Read(_ context.Context, table string, opts core.ReadOptions) ([]*core.Item, error) {
	filter, err := ParseFilter(opts.Filter)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, core.ErrClosed
	}

	var out []*core.Item
	for _, item := range m.tables[tableKey(table)] {
		if opts.Top > 0 && len(out) == opts.Top {
			break
		}
		if filter.Match(item) {
			out = append(out, project(item, opts.Fields).Clone())
		}
	}
	log.Printf("[MEMORY] Read %d rows from %s", len(out), table)
	return out, nil
}

// find returns the index of the row whose identifier set equals ids, or -1.
func (m *MemoryAdapter) find(table string, ids core.Fields) int {
	if ids.Len() == 0 {
		return -1
	}
	for idx, row := range m.tables[table] {
		if matching.FieldsEqual(row.Identifiers, ids) {
			return idx
		}
	}
	return -1
}

func (m *MemoryAdapter) Insert(_ context.Context, table string, items []*core.Item) (*core.InsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, core.ErrClosed
	}

	result := core.NewInsertResult()
	key := tableKey(table)
	for _, item := range items {
		if m.find(key, item.Identifiers) >= 0 {
			result.Response.AddItemError(core.SeverityError, "An item with the same identifiers already exists.", item)
			continue
		}
		stored := item.Clone()
		m.tables[key] = append(m.tables[key], stored)

		output := stored.Clone()
		result.Inserted = append(result.Inserted, core.InsertedItem{Input: item, Output: output})
		result.Response.AddSuccess(output)
	}
	log.Printf("[MEMORY] Inserted %d of %d rows into %s", len(result.Inserted), len(items), table)
	return result, nil
}

func (m *MemoryAdapter) Update(_ context.Context, table string, items []*core.Item) (*core.ItemsResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, core.ErrClosed
	}

	result := core.NewItemsResult()
	key := tableKey(table)
	for _, item := range items {
		idx := m.find(key, item.Identifiers)
		if idx < 0 {
			result.Response.AddItemError(core.SeverityError, "Item not found for update.", item)
			continue
		}
		row := m.tables[key][idx]
		row.Data = item.Data.Clone()

		updated := row.Clone()
		result.Items = append(result.Items, updated)
		result.Response.AddSuccess(updated)
	}
	log.Printf("[MEMORY] Updated %d of %d rows in %s", len(result.Items), len(items), table)
	return result, nil
}

func (m *MemoryAdapter) Delete(_ context.Context, table string, items []*core.Item) (*core.ItemsResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, core.ErrClosed
	}

	result := core.NewItemsResult()
	key := tableKey(table)
	for _, item := range items {
		idx := m.find(key, item.Identifiers)
		if idx < 0 {
			result.Response.AddItemError(core.SeverityError, "Item not found for deletion.", item)
			continue
		}
		removed := m.tables[key][idx]
		m.tables[key] = append(m.tables[key][:idx], m.tables[key][idx+1:]...)

		result.Items = append(result.Items, removed)
		result.Response.AddSuccess(removed)
	}
	log.Printf("[MEMORY] Deleted %d of %d rows from %s", len(result.Items), len(items), table)
	return result, nil
}

func (m *MemoryAdapter) Upsert(ctx context.Context, table string, items []*core.Item, identifierKeys []string) (*core.ItemsResult, error) {
	if len(identifierKeys) == 0 {
		m.mu.Lock()
		identifierKeys = m.cfg.Identifiers()
		m.mu.Unlock()
	}
	return Upsert(ctx, m, table, items, identifierKeys)
}

func (m *MemoryAdapter) TestConnection(context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

func (m *MemoryAdapter) Type() string {
	return "memory"
}

func (m *MemoryAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MemoryAdapterFactory creates in-memory adapters.
type MemoryAdapterFactory struct{}

func (f *MemoryAdapterFactory) Type() string {
	return "memory"
}

func (f *MemoryAdapterFactory) Validate(cfg core.AdapterConfig) error {
	if cfg.Type != "memory" {
		return fmt.Errorf("invalid type for memory factory: %s", cfg.Type)
	}
	return nil
}

func (f *MemoryAdapterFactory) New(Dependencies) core.Adapter {
	return NewMemoryAdapter()
}

func init() {
	RegisterFactory(&MemoryAdapterFactory{})
}
