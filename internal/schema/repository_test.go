package schema

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/kvstore"
)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryKVStore()
	repo := NewRepository(store)

	_, err := repo.GetTableSchemaByName(ctx, "HR", "People")
	assert.ErrorIs(t, err, core.ErrNotFound)

	s := peopleSchema(ReactionIgnore)
	require.NoError(t, repo.RegisterTableSchema(ctx, "HR", s))
	assert.Equal(t, "hr", s.DatabaseName)

	created, err := repo.EnsureTableSchema(ctx, "hr", "Orders")
	require.NoError(t, err)
	assert.Empty(t, created.Fields())

	// A fresh repository sees what the first one saved.
	reloaded := NewRepository(store)
	got, err := reloaded.GetTableSchemaByName(ctx, "Hr", "people")
	require.NoError(t, err)
	assert.Equal(t, s.SchemaID, got.SchemaID)
	assert.Equal(t, []string{"Id"}, got.PrimaryKeyNames())
	assert.Equal(t, ReactionIgnore, got.Config.OnFieldsNotInSchema)

	db, err := reloaded.EnsureDatabase(ctx, "HR")
	require.NoError(t, err)
	assert.Len(t, db.TableSchemas(), 2)

	names, err := reloaded.ListDatabases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hr"}, names)
}

func TestRepository_RejectsInvalidSchema(t *testing.T) {
	repo := NewRepository(kvstore.NewMemoryKVStore())
	err := repo.RegisterTableSchema(context.Background(), "db", &TableSchema{})
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

// Run with -race: schemas are registered from many goroutines at once.
func TestRepository_ConcurrentRegistration(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryKVStore()
	repo := NewRepository(store)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s := peopleSchema(ReactionIgnore)
				s.TableName = fmt.Sprintf("People_%d_%d", w, i%5)
				assert.NoError(t, repo.RegisterTableSchema(ctx, "db", s))
				_, err := repo.EnsureTableSchema(ctx, "db", fmt.Sprintf("Orders_%d", i%3))
				assert.NoError(t, err)
				_, err = repo.GetTableSchemaByName(ctx, "db", s.TableName)
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	// The persisted snapshot holds every table.
	db, err := NewRepository(store).EnsureDatabase(ctx, "db")
	require.NoError(t, err)
	assert.Len(t, db.TableSchemas(), workers*5+3)
}
