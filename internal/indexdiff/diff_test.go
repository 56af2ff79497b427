package indexdiff

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/kvstore"
)

func idx(pk, rk, token string) core.IndexRow {
	return core.IndexRow{PartitionKey: pk, RowKey: rk, ChangeToken: token}
}

func TestCompareSrcToIndex(t *testing.T) {
	cached := []core.IndexRow{
		{PartitionKey: "p", RowKey: "same", ChangeToken: "v1", Status: core.IndexCreated},
		{PartitionKey: "p", RowKey: "changed", ChangeToken: "v1", Status: core.IndexCreated},
		{PartitionKey: "p", RowKey: "gone", ChangeToken: "v1", Status: core.IndexUpdated},
		{PartitionKey: "p", RowKey: "tombstone", ChangeToken: "v1", Status: core.IndexDeleted},
	}
	src := []core.IndexRow{
		idx("p", "same", "v1"),
		idx("p", "changed", "v2"),
		idx("p", "fresh", "v1"),
		idx("q", "same", "v1"),
	}

	out := CompareSrcToIndex(src, cached)

	assert.Equal(t, Stats{RowsNew: 2, RowsUpdated: 1, RowsDeleted: 1, RowsSkipped: 2}, out.Stats)
	require.Len(t, out.New, 2)
	assert.Equal(t, "fresh", out.New[0].RowKey)
	assert.Equal(t, core.IndexCreated, out.New[0].Status)
	assert.Equal(t, "q", out.New[1].PartitionKey)

	require.Len(t, out.Updated, 1)
	assert.Equal(t, "v2", out.Updated[0].ChangeToken)
	assert.Equal(t, core.IndexUpdated, out.Updated[0].Status)

	require.Len(t, out.Deleted, 1)
	assert.Equal(t, "gone", out.Deleted[0].RowKey)
	assert.Equal(t, core.IndexDeleted, out.Deleted[0].Status)

	require.Len(t, out.Skipped, 2)
	assert.Equal(t, "same", out.Skipped[0].RowKey)
	assert.Equal(t, "tombstone", out.Skipped[1].RowKey)

	assert.Equal(t, core.IndexDeleted, cached[3].Status, "inputs must not be modified")
	assert.Empty(t, src[0].Status)
	assert.Len(t, out.Changes(), 4)
}

func TestCompareSrcToIndex_Empty(t *testing.T) {
	out := CompareSrcToIndex(nil, nil)
	assert.Equal(t, Stats{}, out.Stats)
	assert.Empty(t, out.Changes())
}

// merge applies an output to a cache snapshot the way PushIndexes does.
func merge(cache []core.IndexRow, out *Output) []core.IndexRow {
	byID := make(map[core.IndexIdentity]core.IndexRow)
	var order []core.IndexIdentity
	for _, r := range cache {
		if _, ok := byID[r.Identity()]; !ok {
			order = append(order, r.Identity())
		}
		byID[r.Identity()] = r
	}
	for _, r := range out.Changes() {
		if _, ok := byID[r.Identity()]; !ok {
			order = append(order, r.Identity())
		}
		byID[r.Identity()] = r
	}
	merged := make([]core.IndexRow, 0, len(order))
	for _, id := range order {
		merged = append(merged, byID[id])
	}
	return merged
}

func genRows() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, 63)).Map(func(codes []int) []core.IndexRow {
		seen := make(map[int]bool)
		var rows []core.IndexRow
		for _, c := range codes {
			id := c % 16
			if seen[id] {
				continue
			}
			seen[id] = true
			rows = append(rows, idx(fmt.Sprintf("p%d", id%2), fmt.Sprintf("r%d", id), fmt.Sprintf("t%d", c/16)))
		}
		return rows
	})
}

func TestProperty_IndexDiffIdempotence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("second run over an unchanged source skips everything", prop.ForAll(
		func(src, cached []core.IndexRow) bool {
			first := CompareSrcToIndex(src, cached)
			second := CompareSrcToIndex(src, merge(cached, first))

			return second.Stats.RowsNew == 0 &&
				second.Stats.RowsUpdated == 0 &&
				second.Stats.RowsDeleted == 0 &&
				len(second.Skipped) == second.Stats.RowsSkipped
		},
		genRows(),
		genRows(),
	))

	properties.Property("the previous output used directly as cache is all skipped", prop.ForAll(
		func(src, cached []core.IndexRow) bool {
			first := CompareSrcToIndex(src, cached)
			var previous []core.IndexRow
			previous = append(previous, first.Changes()...)
			previous = append(previous, first.Skipped...)

			second := CompareSrcToIndex(src, previous)
			return second.Stats.Changed() == 0
		},
		genRows(),
		genRows(),
	))

	properties.TestingRun(t)
}

func TestCache_PushAndLoad(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(kvstore.NewMemoryKVStore())

	rows, err := cache.LoadIndexes(ctx, "conn", "People")
	require.NoError(t, err)
	assert.Empty(t, rows)

	first := CompareSrcToIndex([]core.IndexRow{idx("p", "a", "1"), idx("p", "b:c|d", "1")}, rows)
	require.NoError(t, cache.PushIndexes(ctx, "conn", "People", first))

	rows, err = cache.LoadIndexes(ctx, "conn", "People")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "conn", r.ConnectionID)
		assert.Equal(t, core.IndexCreated, r.Status)
	}

	other, err := cache.LoadIndexes(ctx, "conn", "People2")
	require.NoError(t, err)
	assert.Empty(t, other)

	second := CompareSrcToIndex([]core.IndexRow{idx("p", "a", "2")}, rows)
	require.NoError(t, cache.PushIndexes(ctx, "conn", "People", second))

	rows, err = cache.LoadIndexes(ctx, "conn", "People")
	require.NoError(t, err)
	third := CompareSrcToIndex([]core.IndexRow{idx("p", "a", "2")}, rows)
	assert.Equal(t, Stats{RowsSkipped: 2}, third.Stats)

	require.NoError(t, cache.Clear(ctx, "conn", "People"))
	rows, err = cache.LoadIndexes(ctx, "conn", "People")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCache_PushRequiresIDs(t *testing.T) {
	cache := NewCache(kvstore.NewMemoryKVStore())
	assert.Error(t, cache.PushIndexes(context.Background(), "", "t", &Output{}))
	assert.Error(t, cache.PushIndexes(context.Background(), "c", "", &Output{}))
}

func TestRowsFromItems(t *testing.T) {
	items := []*core.Item{
		core.NewDataItem(map[string]interface{}{"PartitionKey": "eu", "RowKey": "42", "ETag": "W/1"}),
		core.NewItem(map[string]interface{}{"Id": 7}, map[string]interface{}{"Name": "Ann"}),
	}
	rows := RowsFromItems("People", items)
	require.Len(t, rows, 2)
	assert.Equal(t, idx("eu", "42", "W/1"), rows[0])

	assert.Equal(t, "People", rows[1].PartitionKey)
	assert.NotEmpty(t, rows[1].RowKey)
	assert.Len(t, rows[1].ChangeToken, 64)

	again := RowsFromItems("People", []*core.Item{core.NewItem(map[string]interface{}{"id": int64(7)}, map[string]interface{}{"name": "Ann"})})
	assert.Equal(t, rows[1], again[0])

	changed := RowsFromItems("People", []*core.Item{core.NewItem(map[string]interface{}{"Id": 7}, map[string]interface{}{"Name": "Bo"})})
	assert.Equal(t, rows[1].RowKey, changed[0].RowKey)
	assert.NotEqual(t, rows[1].ChangeToken, changed[0].ChangeToken)
}
