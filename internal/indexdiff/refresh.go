package indexdiff

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"

	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/matching"
)

// Field names recognised when deriving index rows from items.
const (
	FieldPartitionKey = "PartitionKey"
	FieldRowKey       = "RowKey"
	FieldETag         = "ETag"
	FieldChangeToken  = "ChangeToken"
)

// RowsFromItems derives index rows from table rows.
//
// PartitionKey and RowKey fields are used when the item has them. Otherwise
// the partition is the table name and the row key is the canonical form of the
// item's identifiers. The change token is the item's ETag or ChangeToken
// field, or a digest of its data fields.
func RowsFromItems(table string, items []*core.Item) []core.IndexRow {
	rows := make([]core.IndexRow, 0, len(items))
	for _, item := range items {
		row := core.IndexRow{PartitionKey: table}

		if pk, ok := item.Get(FieldPartitionKey); ok {
			row.PartitionKey = fmt.Sprint(pk)
		}
		if rk, ok := item.Get(FieldRowKey); ok {
			row.RowKey = fmt.Sprint(rk)
		} else {
			row.RowKey = matching.IdentityKey(item.Identifiers)
		}

		switch {
		case item.Has(FieldETag):
			v, _ := item.Get(FieldETag)
			row.ChangeToken = fmt.Sprint(v)
		case item.Has(FieldChangeToken):
			v, _ := item.Get(FieldChangeToken)
			row.ChangeToken = fmt.Sprint(v)
		default:
			sum := sha256.Sum256([]byte(matching.IdentityKey(item.Data)))
			row.ChangeToken = hex.EncodeToString(sum[:])
		}

		rows = append(rows, row)
	}
	return rows
}

// Refresh reads table from source, diffs it against the cached snapshot and
// pushes the changes back to the cache.
func Refresh(ctx context.Context, source core.Adapter, cache *Cache, connectionID, table string, identifierKeys []string) (*Output, error) {
	items, err := source.Read(ctx, table, core.ReadOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from %s: %w", table, connectionID, err)
	}
	if err := core.SplitItemsByIdentifierKeys(items, identifierKeys); err != nil {
		return nil, fmt.Errorf("failed to split %s rows by identifier keys: %w", table, err)
	}

	cached, err := cache.LoadIndexes(ctx, connectionID, table)
	if err != nil {
		return nil, err
	}

	output := CompareSrcToIndex(RowsFromItems(table, items), cached)
	log.Printf("[INDEX] %s/%s: %s", connectionID, table, output.Stats)

	if err := cache.PushIndexes(ctx, connectionID, table, output); err != nil {
		return nil, err
	}
	return output, nil
}
