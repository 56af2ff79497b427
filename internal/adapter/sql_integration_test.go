package adapter

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/kvstore"
	"github.com/rzpsarthak13/tablesync/internal/schema"
)

// Each server test runs against the DSN in its environment variable and is
// skipped when the variable is unset.
var serverDialects = []struct {
	dialect string
	env     string
	ddl     string // %s is the table name
}{
	{"mysql", "TABLESYNC_TEST_MYSQL",
		"CREATE TABLE %s (Id INT AUTO_INCREMENT PRIMARY KEY, Name VARCHAR(100) NOT NULL, Age INT)"},
	{"postgres", "TABLESYNC_TEST_POSTGRES",
		`CREATE TABLE "%s" ("Id" SERIAL PRIMARY KEY, "Name" VARCHAR(100) NOT NULL, "Age" INT)`},
	{"sqlserver", "TABLESYNC_TEST_SQLSERVER",
		"CREATE TABLE %s (Id INT IDENTITY(1,1) PRIMARY KEY, Name NVARCHAR(100) NOT NULL, Age INT)"},
}

func TestSQLAdapter_Servers(t *testing.T) {
	for _, tt := range serverDialects {
		t.Run(tt.dialect, func(t *testing.T) {
			dsn := os.Getenv(tt.env)
			if dsn == "" {
				t.Skip(tt.env + " not set")
			}
			ctx := context.Background()

			a := NewSQLAdapter(schema.NewRepository(kvstore.NewMemoryKVStore()))
			resp := a.Configure(ctx, core.AdapterConfig{Name: "it", Type: "sql", Dialect: tt.dialect, DSN: dsn})
			require.True(t, resp.IsOk(), resp.String())
			t.Cleanup(func() { a.Close() })

			table := "People_" + time.Now().Format("150405000000")
			_, err := a.DB().ExecContext(ctx, fmt.Sprintf(tt.ddl, table))
			require.NoError(t, err)
			t.Cleanup(func() {
				a.DB().ExecContext(context.Background(), "DROP TABLE "+a.dialect.quoteTable(table))
			})

			exerciseIdentityTable(t, a, table)
		})
	}
}

// exerciseIdentityTable covers insert with a generated Id, update and delete
// on a People-shaped table.
func exerciseIdentityTable(t *testing.T, a *SQLAdapter, table string) {
	ctx := context.Background()

	lindboe := core.NewDataItem(map[string]interface{}{"Name": "Lindboe", "Age": 89})
	andersen := core.NewDataItem(map[string]interface{}{"Name": "Andersen", "Age": 101})
	ins, err := a.Insert(ctx, table, []*core.Item{lindboe, andersen})
	require.NoError(t, err)
	require.Equal(t, core.ResultSuccess, ins.Response.Result(), ins.Response.String())

	output, ok := ins.OutputFor(andersen)
	require.True(t, ok)
	id, ok := output.Get("Id")
	require.True(t, ok, "the generated identity is returned")
	name, _ := output.Get("Name")
	assert.Equal(t, "Andersen", name)

	upd, err := a.Update(ctx, table, []*core.Item{
		core.NewItem(map[string]interface{}{"Id": id}, map[string]interface{}{"Age": 102}),
		core.NewItem(map[string]interface{}{"Id": 999999}, map[string]interface{}{"Age": 1}),
	})
	require.NoError(t, err)
	assert.Equal(t, core.ResultPartialSuccess, upd.Response.Result())
	require.Len(t, upd.Response.ItemErrors, 1)
	assert.Equal(t, "Updating item failed. No Output Keys received.", upd.Response.ItemErrors[0].Message)

	rows, err := a.Read(ctx, table, core.ReadOptions{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	del, err := a.Delete(ctx, table, []*core.Item{core.NewItem(map[string]interface{}{"Id": id}, nil)})
	require.NoError(t, err)
	assert.Equal(t, core.ResultSuccess, del.Response.Result(), del.Response.String())

	rows, err = a.Read(ctx, table, core.ReadOptions{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
