package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenCreatesSchema(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	var name string
	err = db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name='provider_cache'`).Scan(&name)
	require.NoError(t, err)
	require.Equal(t, "provider_cache", name)
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, db.Close())

	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, `INSERT INTO provider_cache (provider, batch_id, title, link, fetched_at) VALUES ('Nyaa', 'b', 't', 'l', CURRENT_TIMESTAMP)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO provider_cache (provider, batch_id, title, link, fetched_at) VALUES ('Nyaa', 'b', 't', 'l', CURRENT_TIMESTAMP)`)
	require.Error(t, err, "provider+link must be unique")
}
