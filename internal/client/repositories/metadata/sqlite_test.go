package metadata

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE metadata (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func TestSetGet_Upsert(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeySalt, []byte("old")))
	require.NoError(t, r.Set(ctx, KeySalt, []byte("new")))

	v, err := r.Get(ctx, KeySalt)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), v)
}

func TestGet_AbsentIsNilNil(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	v, err := r.Get(context.Background(), KeyVerifier)
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestDelete(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeySalt, []byte{1}))
	require.NoError(t, r.Set(ctx, KeyLastIdentity, []byte("frodo.example")))

	require.NoError(t, r.Delete(ctx, KeyLastIdentity))
	require.NoError(t, r.Delete(ctx, KeyLastIdentity))

	v, err := r.Get(ctx, KeyLastIdentity)
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = r.Get(ctx, KeySalt)
	require.NoError(t, err)
	require.Equal(t, []byte{1}, v)
}

func TestErrorsAreWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Close())

	_, err := r.Get(ctx, "k")
	require.ErrorContains(t, err, "failed to get metadata[k]")
	require.ErrorContains(t, r.Set(ctx, "k", []byte("v")), "failed to set metadata[k]")
	require.ErrorContains(t, r.Delete(ctx, "k"), "failed to delete metadata[k]")
}
