package iocache

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/huangsam/shiftpoint/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateHistoryUnsupported(t *testing.T) {
	for _, backend := range []schema.DatabaseBackend{schema.NoneBackend, schema.RedisBackend} {
		err := MigrateHistory(backend, "", -1)
		assert.ErrorContains(t, err, "migrations are not supported")
	}
}

func indexExists(t *testing.T, path string) bool {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var count int
	row := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_shiftpoint_impacts_event_date'`)
	require.NoError(t, row.Scan(&count))
	return count == 1
}

func TestMigrateHistorySQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	require.NoError(t, MigrateHistory(schema.SQLiteBackend, dbPath, -1))
	assert.True(t, indexExists(t, dbPath))

	// Already at latest
	require.NoError(t, MigrateHistory(schema.SQLiteBackend, dbPath, -1))

	require.NoError(t, MigrateHistory(schema.SQLiteBackend, dbPath, 2))
	assert.False(t, indexExists(t, dbPath))

	require.NoError(t, MigrateHistory(schema.SQLiteBackend, dbPath, 0))
	require.NoError(t, MigrateHistory(schema.SQLiteBackend, dbPath, 3))
	assert.True(t, indexExists(t, dbPath))
}

func TestMigrateHistoryOverExistingStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := NewHistoryStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Base migrations are idempotent against tables the store already created
	require.NoError(t, MigrateHistory(schema.SQLiteBackend, dbPath, -1))
	assert.True(t, indexExists(t, dbPath))
}

func TestMigrationFilesPerBackend(t *testing.T) {
	for _, backend := range []schema.DatabaseBackend{schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend} {
		dir, err := migrationDir(backend)
		require.NoError(t, err)
		entries, err := migrationsFS.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 6, "%s should have up and down files for three versions", backend)
	}
}
