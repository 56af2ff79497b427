package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/tablesync/internal/core"
)

func TestParseFilter(t *testing.T) {
	apple := core.NewItem(map[string]interface{}{"Id": 1}, map[string]interface{}{"Name": "Apple", "Color": "red"})
	pear := core.NewItem(map[string]interface{}{"Id": 2}, map[string]interface{}{"Name": "Pear", "Color": "green"})

	tests := []struct {
		name      string
		expr      string
		wantApple bool
		wantPear  bool
	}{
		{"empty matches all", "", true, true},
		{"where only", "WHERE ", true, true},
		{"single condition", "Name = 'Apple'", true, false},
		{"unquoted value", "Id = 2", false, true},
		{"case-insensitive field", "name='Pear'", false, true},
		{"and", "Name = 'Apple' and Color = 'green'", false, false},
		{"or", "Name = 'Apple' Or Color = 'green'", true, true},
		{"and binds tighter", "Id = 1 AND Color = 'green' OR Name = 'Pear'", false, true},
		{"unknown field", "Weight = '3'", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFilter(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.wantApple, f.Match(apple))
			assert.Equal(t, tt.wantPear, f.Match(pear))
		})
	}
}

func TestParseFilter_Invalid(t *testing.T) {
	for _, expr := range []string{"Name", "= 'x'", "Id = 1 AND Name"} {
		_, err := ParseFilter(expr)
		assert.Error(t, err, expr)
	}
}

func TestProject(t *testing.T) {
	item := core.NewItem(map[string]interface{}{"Id": 1}, map[string]interface{}{"Name": "Apple", "Color": "red"})

	assert.Same(t, item, project(item, nil))

	got := project(item, []string{"ID", "color"})
	assert.Equal(t, 1, got.Identifiers.Len())
	assert.Equal(t, 1, got.Data.Len())
	assert.False(t, got.Has("Name"))
}
