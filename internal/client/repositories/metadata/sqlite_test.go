package metadata

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/keepr/internal/client/migrations"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.UpContext(context.Background(), db, "."))
	return db
}

func TestSetThenGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "salt", []byte{0x01, 0x02}))

	v, err := r.Get(ctx, "salt")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, v)
}

func TestGet_Missing(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	v, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSet_Overwrites(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "wallet", []byte("0xaaa")))
	require.NoError(t, r.Set(ctx, "wallet", []byte("0xbbb")))

	v, err := r.Get(ctx, "wallet")
	require.NoError(t, err)
	assert.Equal(t, []byte("0xbbb"), v)
}

func TestDeleteAndClear(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "a", []byte{1}))
	require.NoError(t, r.Set(ctx, "b", []byte{2}))

	require.NoError(t, r.Delete(ctx, "a"))
	require.NoError(t, r.Delete(ctx, "a"))

	m, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"b": {2}}, m)

	require.NoError(t, r.Clear(ctx))
	m, err = r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestClosedDB_ReturnsErrors(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	require.NoError(t, db.Close())
	ctx := context.Background()

	_, err := r.Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, r.Set(ctx, "k", []byte{1}))
	_, err = r.List(ctx)
	assert.Error(t, err)
}
