package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDBRejectsUnknownDriver(t *testing.T) {
	_, err := NewDB("mysql", "whatever")
	assert.Error(t, err)
}

func TestMigrateIsRepeatable(t *testing.T) {
	db, err := NewDB(DriverSQLite, filepath.Join(t.TempDir(), "lf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))
	assert.True(t, db.Healthy(ctx))

	var n int
	require.NoError(t, db.Client.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('lessons', 'users', 'attendance')`).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestNilDBIsSafe(t *testing.T) {
	var db *DB
	assert.NoError(t, db.Close())
	assert.False(t, db.Healthy(context.Background()))
}

func TestOpenFailsWhenUnreachable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	db, err := Open(context.Background(), DriverSQLite, filepath.Join(blocker, "sub", "lf.db"))
	assert.Error(t, err)
	assert.Nil(t, db)

	_, err = Open(context.Background(), "oracle", "x")
	assert.Error(t, err)

	db, err = Open(context.Background(), DriverSQLite, filepath.Join(dir, "lf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	assert.True(t, db.Healthy(context.Background()))
}
