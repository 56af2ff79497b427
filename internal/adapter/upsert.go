package adapter

import (
	"context"
	"fmt"
	"log"

	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/matching"
)

// Upsert is the default upsert built from Read, Update and Insert. It reads
// the whole target table, splits each row by identifierKeys and routes every
// input item whose identifiers already exist to Update. The rest go to Insert.
// Both results are merged, updates first.
func Upsert(ctx context.Context, a core.Adapter, table string, items []*core.Item, identifierKeys []string) (*core.ItemsResult, error) {
	existing, err := a.Read(ctx, table, core.ReadOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s before upsert: %w", table, err)
	}
	existing = core.CloneItems(existing)
	if err := core.SplitItemsByIdentifierKeys(existing, identifierKeys); err != nil {
		return nil, fmt.Errorf("failed to split %s rows by identifier keys: %w", table, err)
	}

	known := make(map[string]struct{}, len(existing))
	for _, row := range existing {
		if row.Identifiers.Len() > 0 {
			known[matching.IdentityKey(row.Identifiers)] = struct{}{}
		}
	}

	toUpdate, toInsert := PartitionByExistence(items, known)
	log.Printf("[ADAPTER] Upsert into %s: %d to update, %d to insert", table, len(toUpdate), len(toInsert))

	result := core.NewItemsResult()
	if len(toUpdate) > 0 {
		updated, err := a.Update(ctx, table, toUpdate)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, updated.Items...)
		result.Response.Append(updated.Response)
	}
	if len(toInsert) > 0 {
		inserted, err := a.Insert(ctx, table, toInsert)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, inserted.Outputs()...)
		result.Response.Append(inserted.Response)
	}
	return result, nil
}

// PartitionByExistence splits items by whether their identifier set is in
// known, a set of matching.IdentityKey values. Items without identifiers are
// always new.
func PartitionByExistence(items []*core.Item, known map[string]struct{}) (existing, fresh []*core.Item) {
	for _, item := range items {
		if item.Identifiers.Len() > 0 {
			if _, ok := known[matching.IdentityKey(item.Identifiers)]; ok {
				existing = append(existing, item)
				continue
			}
		}
		fresh = append(fresh, item)
	}
	return existing, fresh
}
