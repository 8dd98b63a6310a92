package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthdash/internal/domain/statecache"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='cache_entries'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestKVRepository_SetGetOverwrite(t *testing.T) {
	r := NewKVRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, statecache.KeyTransactions, []byte(`[]`)))
	require.NoError(t, r.Set(ctx, statecache.KeyTransactions, []byte(`[{"id":"t1"}]`)))

	v, err := r.Get(ctx, statecache.KeyTransactions)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"t1"}]`, string(v))
}

func TestKVRepository_GetMissing(t *testing.T) {
	r := NewKVRepository(setupDB(t))

	_, err := r.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, statecache.ErrNotFound)
}

func TestKVRepository_DeleteAndKeys(t *testing.T) {
	r := NewKVRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "b", []byte(`1`)))
	require.NoError(t, r.Set(ctx, "a", []byte(`2`)))

	keys, err := r.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, r.Delete(ctx, "a"))
	require.NoError(t, r.Delete(ctx, "never-existed"))

	keys, err = r.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}

func TestKVRepository_BacksStateCache(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	store := statecache.NewStore(NewKVRepository(db), nil)
	store.ReplaceAll(ctx, statecache.Data{Connected: true})

	restored := statecache.NewStore(NewKVRepository(db), nil)
	restored.Load(ctx)
	assert.True(t, restored.Data().Connected)

	keys, err := NewKVRepository(db).Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, statecache.Keys, keys)
}
