package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/indexdiff"
)

func TestStatistics_AppendAndString(t *testing.T) {
	total := &Statistics{}
	total.Append(StatisticsFromDiff(indexdiff.Stats{RowsNew: 2, RowsUpdated: 1, RowsDeleted: 1, RowsSkipped: 5}))
	total.Append(&Statistics{RowsFailed: 1, Errors: map[string]string{"Id : 3": "boom"}})
	total.Append(nil)

	assert.Equal(t, "New rows: 2 Updated: 1 Deleted: 1 Skipped: 5 Failed: 1", total.String())
	assert.Equal(t, "boom", total.Errors["Id : 3"])
}

func TestStatisticsFromResponse(t *testing.T) {
	resp := core.NewOperationResponse()
	ok := core.NewItem(map[string]interface{}{"Id": 1}, nil)
	bad := core.NewItem(map[string]interface{}{"Id": 2}, nil)
	resp.AddSuccess(ok)
	resp.AddItemError(core.SeverityError, "Item not found for update.", bad)
	resp.AddItemError(core.SeverityWarning, "soft", bad)

	stats := StatisticsFromResponse(resp)
	assert.Equal(t, 1, stats.RowsUpdated)
	assert.Equal(t, 1, stats.RowsFailed)
	assert.Equal(t, map[string]string{"Id : 2": "Item not found for update."}, stats.Errors)

	assert.Equal(t, &Statistics{}, StatisticsFromResponse(nil))
}
