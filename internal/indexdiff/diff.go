// Package indexdiff classifies incremental changes between a source index
// snapshot and the cached snapshot of the previous run.
package indexdiff

import (
	"fmt"

	"github.com/rzpsarthak13/tablesync/internal/core"
)

// Stats holds running counts of a diff run.
type Stats struct {
	RowsNew     int `json:"rows_new"`
	RowsUpdated int `json:"rows_updated"`
	RowsDeleted int `json:"rows_deleted"`
	RowsSkipped int `json:"rows_skipped"`
}

// Changed is the number of rows that need to be written to the cache.
func (s Stats) Changed() int {
	return s.RowsNew + s.RowsUpdated + s.RowsDeleted
}

func (s Stats) String() string {
	return fmt.Sprintf("new=%d updated=%d deleted=%d skipped=%d", s.RowsNew, s.RowsUpdated, s.RowsDeleted, s.RowsSkipped)
}

// Output is the classification produced by CompareSrcToIndex. Rows are
// copies; the inputs are never modified.
type Output struct {
	New     []core.IndexRow
	Updated []core.IndexRow
	Deleted []core.IndexRow
	Skipped []core.IndexRow
	Stats   Stats
}

// Changes returns the rows that must be merged into the cache.
func (o *Output) Changes() []core.IndexRow {
	out := make([]core.IndexRow, 0, o.Stats.Changed())
	out = append(out, o.New...)
	out = append(out, o.Updated...)
	out = append(out, o.Deleted...)
	return out
}

// CompareSrcToIndex classifies every source row against the cache by
// (PartitionKey, RowKey):
//   - no cached row: Created
//   - cached change token differs: Updated
//   - otherwise: Skipped
//
// Cached rows absent from the source become Deleted, unless they were
// already Deleted, in which case they are Skipped so tombstones are emitted once.
func CompareSrcToIndex(src, cached []core.IndexRow) *Output {
	out := &Output{}

	cachedByID := make(map[core.IndexIdentity]core.IndexRow, len(cached))
	for _, row := range cached {
		if _, dup := cachedByID[row.Identity()]; !dup {
			cachedByID[row.Identity()] = row
		}
	}

	srcIDs := make(map[core.IndexIdentity]struct{}, len(src))
	for _, row := range src {
		srcIDs[row.Identity()] = struct{}{}

		existing, found := cachedByID[row.Identity()]
		switch {
		case !found:
			row.Status = core.IndexCreated
			out.New = append(out.New, row)
			out.Stats.RowsNew++
		case existing.ChangeToken != row.ChangeToken:
			row.Status = core.IndexUpdated
			out.Updated = append(out.Updated, row)
			out.Stats.RowsUpdated++
		default:
			row.Status = core.IndexSkipped
			out.Skipped = append(out.Skipped, row)
			out.Stats.RowsSkipped++
		}
	}

	for _, row := range cached {
		if _, inSource := srcIDs[row.Identity()]; inSource {
			continue
		}
		if row.Status != core.IndexDeleted {
			row.Status = core.IndexDeleted
			out.Deleted = append(out.Deleted, row)
			out.Stats.RowsDeleted++
		} else {
			row.Status = core.IndexSkipped
			out.Skipped = append(out.Skipped, row)
			out.Stats.RowsSkipped++
		}
	}

	return out
}
