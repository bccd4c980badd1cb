package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ychetra/demo-light/internal/infrastructure/config"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	return db
}

func TestOpen(t *testing.T) {
	t.Run("creates file and nested directories", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "a", "b", "lightbridge.db")

		db, err := Open(config.DatabaseConfig{Path: dbPath, WALMode: true, BusyTimeout: 1})
		require.NoError(t, err)
		defer db.Close() //nolint:errcheck // test cleanup

		_, err = os.Stat(filepath.Dir(dbPath))
		assert.NoError(t, err)
		assert.Equal(t, dbPath, db.Path())
	})

	t.Run("rejects empty path", func(t *testing.T) {
		_, err := Open(config.DatabaseConfig{})
		assert.Error(t, err)
	})

	t.Run("without WAL", func(t *testing.T) {
		db, err := Open(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "plain.db")})
		require.NoError(t, err)
		assert.NoError(t, db.Close())
	})
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, db.HealthCheck(ctx))
}

func TestClose(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Close())

	db.DB = nil
	assert.NoError(t, db.Close())

	var nilDB *DB
	assert.NoError(t, nilDB.Close())
}

func TestStats_SingleWriter(t *testing.T) {
	db := openTestDB(t)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}
