package core

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatItems(t *testing.T) {
	items := []*Item{
		NewItem(map[string]interface{}{"Id": 1}, map[string]interface{}{"Name": "Anvil", "Note": nil}),
		NewItem(map[string]interface{}{"Id": 22}, map[string]interface{}{"Name": "Bolt"}),
		NewItem(map[string]interface{}{"Id": 3}, map[string]interface{}{"Name": "Cog"}),
	}

	var buf bytes.Buffer
	require.NoError(t, FormatItems(&buf, items, nil, 2))
	assert.Equal(t, ""+
		"Id  Name   Note\n"+
		"1   Anvil  NULL\n"+
		"22  Bolt   \n"+
		"... 1 more rows\n", buf.String())
}

func TestFormatItems_Columns(t *testing.T) {
	items := []*Item{NewDataItem(map[string]interface{}{"A": 1, "B": 2})}

	var buf bytes.Buffer
	require.NoError(t, FormatItems(&buf, items, []string{"b"}, 0))
	assert.Equal(t, "b\n2\n", buf.String())
}

func TestFormatItems_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatItems(&buf, nil, nil, 0))
	assert.Equal(t, "(no rows)\n", buf.String())
}
