package indexdiff

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"

	"github.com/rzpsarthak13/tablesync/internal/core"
)

const indexKeyPrefix = "index:"

// Cache persists index snapshots in a KVStore, one key per row, grouped by
// connection and table. Ids are query-escaped so ':' only ever separates parts.
type Cache struct {
	store core.KVStore
}

// NewCache creates a cache backed by store.
func NewCache(store core.KVStore) *Cache {
	return &Cache{store: store}
}

func tablePrefix(connectionID, tableID string) string {
	return indexKeyPrefix + url.QueryEscape(connectionID) + ":" + url.QueryEscape(tableID) + ":"
}

func rowKey(connectionID, tableID string, id core.IndexIdentity) string {
	return tablePrefix(connectionID, tableID) + url.QueryEscape(id.PartitionKey) + "|" + url.QueryEscape(id.RowKey)
}

// PushIndexes inserts or replaces the new, updated and deleted rows of output.
// Deleted rows are kept as tombstones with status Deleted.
func (c *Cache) PushIndexes(ctx context.Context, connectionID, tableID string, output *Output) error {
	if connectionID == "" {
		return fmt.Errorf("connection id is required")
	}
	if tableID == "" {
		return fmt.Errorf("table id is required")
	}

	changes := output.Changes()
	if len(changes) == 0 {
		log.Printf("[INDEX] No changes to push for %s/%s", connectionID, tableID)
		return nil
	}

	batch := make(map[string][]byte, len(changes))
	for _, row := range changes {
		row.ConnectionID = connectionID
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to encode index row %s: %w", row.Identity(), err)
		}
		batch[rowKey(connectionID, tableID, row.Identity())] = data
	}

	if err := c.store.BatchSet(ctx, batch, 0); err != nil {
		return fmt.Errorf("failed to push indexes for %s/%s: %w", connectionID, tableID, err)
	}
	log.Printf("[INDEX] Pushed %d index rows for %s/%s (%s)", len(batch), connectionID, tableID, output.Stats)
	return nil
}

// LoadIndexes returns the cached snapshot of a table.
func (c *Cache) LoadIndexes(ctx context.Context, connectionID, tableID string) ([]core.IndexRow, error) {
	prefix := tablePrefix(connectionID, tableID)
	keys, err := c.store.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes for %s/%s: %w", connectionID, tableID, err)
	}

	rows := make([]core.IndexRow, 0, len(keys))
	for _, key := range keys {
		data, err := c.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to load index row %s: %w", key, err)
		}
		var row core.IndexRow
		if err := json.Unmarshal(data, &row); err != nil {
			return nil, fmt.Errorf("failed to decode index row %s: %w", key, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Clear removes every cached row of a table.
func (c *Cache) Clear(ctx context.Context, connectionID, tableID string) error {
	keys, err := c.store.Keys(ctx, tablePrefix(connectionID, tableID))
	if err != nil {
		return fmt.Errorf("failed to list indexes for %s/%s: %w", connectionID, tableID, err)
	}
	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete index row %s: %w", key, err)
		}
	}
	return nil
}
