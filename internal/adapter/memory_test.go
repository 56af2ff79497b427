package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/tablesync/internal/core"
)

func fruit(id int, name string) *core.Item {
	return core.NewItem(map[string]interface{}{"Id": id}, map[string]interface{}{"Name": name})
}

func newConfiguredMemory(t *testing.T) *MemoryAdapter {
	t.Helper()
	m := NewMemoryAdapter()
	resp := m.Configure(context.Background(), core.AdapterConfig{Name: "mem", Type: "memory"})
	require.True(t, resp.IsOk(), resp.String())
	return m
}

func TestMemoryAdapter_InsertAndRead(t *testing.T) {
	ctx := context.Background()
	m := newConfiguredMemory(t)

	res, err := m.Insert(ctx, "Fruit", []*core.Item{fruit(1, "Apple"), fruit(2, "Banana"), fruit(1, "Again")})
	require.NoError(t, err)

	assert.Equal(t, core.ResultPartialSuccess, res.Response.Result())
	require.Len(t, res.Inserted, 2)
	require.Len(t, res.Response.ItemErrors, 1)
	assert.Equal(t, "An item with the same identifiers already exists.", res.Response.ItemErrors[0].Message)

	rows, err := m.Read(ctx, "fruit", core.ReadOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	name, _ := rows[1].Get("Name")
	assert.Equal(t, "Banana", name)

	rows[0].Data.Set("Name", "Mutated")
	again, err := m.Read(ctx, "Fruit", core.ReadOptions{Top: 1})
	require.NoError(t, err)
	require.Len(t, again, 1)
	name, _ = again[0].Get("Name")
	assert.Equal(t, "Apple", name, "reads return copies")
}

func TestMemoryAdapter_ReadOptions(t *testing.T) {
	ctx := context.Background()
	m := newConfiguredMemory(t)
	m.Seed("Fruit", fruit(1, "Apple"), fruit(2, "Banana"), fruit(3, "Apple"))

	rows, err := m.Read(ctx, "Fruit", core.ReadOptions{Filter: "Name = 'Apple'"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = m.Read(ctx, "Fruit", core.ReadOptions{Filter: "where Name = 'Apple' AND Id = 3"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	id, _ := rows[0].Get("id")
	assert.Equal(t, 3, id)

	rows, err = m.Read(ctx, "Fruit", core.ReadOptions{Filter: "Id = 1 OR Name = 'Banana'"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = m.Read(ctx, "Fruit", core.ReadOptions{Fields: []string{"name"}})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.False(t, rows[0].Has("Id"))
	assert.True(t, rows[0].Has("Name"))

	_, err = m.Read(ctx, "Fruit", core.ReadOptions{Filter: "Name"})
	assert.Error(t, err)
}

func TestMemoryAdapter_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	m := newConfiguredMemory(t)
	m.Seed("Fruit", fruit(1, "Apple"), fruit(2, "Banana"))

	upd, err := m.Update(ctx, "Fruit", []*core.Item{fruit(2, "Blueberry"), fruit(9, "Ghost")})
	require.NoError(t, err)
	assert.Equal(t, core.ResultPartialSuccess, upd.Response.Result())
	require.Len(t, upd.Items, 1)
	require.Len(t, upd.Response.ItemErrors, 1)
	assert.Equal(t, "Item not found for update.", upd.Response.ItemErrors[0].Message)
	assert.Equal(t, "Id : 9", upd.Response.ItemErrors[0].KeyString())

	rows, err := m.Read(ctx, "Fruit", core.ReadOptions{Filter: "Id = 2"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	name, _ := rows[0].Get("Name")
	assert.Equal(t, "Blueberry", name)

	del, err := m.Delete(ctx, "Fruit", []*core.Item{fruit(1, ""), fruit(1, "")})
	require.NoError(t, err)
	require.Len(t, del.Items, 1)
	require.Len(t, del.Response.ItemErrors, 1)
	assert.Equal(t, "Item not found for deletion.", del.Response.ItemErrors[0].Message)

	rows, err = m.Read(ctx, "Fruit", core.ReadOptions{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMemoryAdapter_IdentifierSetEquality(t *testing.T) {
	ctx := context.Background()
	m := newConfiguredMemory(t)
	m.Seed("T", core.NewItem(map[string]interface{}{"Id1": 1, "Id2": 10}, map[string]interface{}{"Name": "a"}))

	// A partial identifier set does not address the row.
	upd, err := m.Update(ctx, "T", []*core.Item{core.NewItem(map[string]interface{}{"Id1": 1}, map[string]interface{}{"Name": "b"})})
	require.NoError(t, err)
	assert.Empty(t, upd.Items)

	upd, err = m.Update(ctx, "T", []*core.Item{core.NewItem(map[string]interface{}{"id2": int64(10), "ID1": 1}, map[string]interface{}{"Name": "b"})})
	require.NoError(t, err)
	assert.Len(t, upd.Items, 1)
}

func TestMemoryAdapter_Upsert(t *testing.T) {
	ctx := context.Background()
	m := newConfiguredMemory(t)
	m.Seed("Fruit", core.NewDataItem(map[string]interface{}{"Id": 1, "Name": "Apple"}))

	res, err := m.Upsert(ctx, "Fruit", []*core.Item{fruit(1, "Avocado"), fruit(2, "Banana")}, nil)
	require.NoError(t, err)
	// The stored row keeps Id as a data field, so the update cannot address it.
	assert.Equal(t, core.ResultPartialSuccess, res.Response.Result())
	require.Len(t, res.Response.ItemErrors, 1)
	assert.Equal(t, "Item not found for update.", res.Response.ItemErrors[0].Message)

	m2 := newConfiguredMemory(t)
	m2.Seed("Fruit", fruit(1, "Apple"))
	res, err = m2.Upsert(ctx, "Fruit", []*core.Item{fruit(1, "Avocado"), fruit(2, "Banana")}, nil)
	require.NoError(t, err)
	assert.Equal(t, core.ResultSuccess, res.Response.Result())
	require.Len(t, res.Items, 2)

	rows, err := m2.Read(ctx, "Fruit", core.ReadOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	name, _ := rows[0].Get("Name")
	assert.Equal(t, "Avocado", name)
}

func TestMemoryAdapter_Closed(t *testing.T) {
	m := newConfiguredMemory(t)
	require.NoError(t, m.Close())

	assert.False(t, m.TestConnection(context.Background()))
	_, err := m.Read(context.Background(), "T", core.ReadOptions{})
	assert.ErrorIs(t, err, core.ErrClosed)
}
