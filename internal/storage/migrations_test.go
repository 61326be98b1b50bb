package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRaw(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(DriverName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestApplyMigrations(t *testing.T) {
	db := openRaw(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, db))

	for _, table := range []string{"schema_version", "datasets", "records", "runs"} {
		assert.True(t, tableExists(t, db, table), "table %s", table)
	}

	v, err := SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v)
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	db := openRaw(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, db))
	require.NoError(t, ApplyMigrations(ctx, db))

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&n))
	assert.Equal(t, len(AllMigrations), n)
}

func TestRollbackMigration(t *testing.T) {
	db := openRaw(t)
	ctx := context.Background()
	require.NoError(t, ApplyMigrations(ctx, db))

	require.NoError(t, RollbackMigration(ctx, db))
	assert.False(t, tableExists(t, db, "runs"))
	assert.True(t, tableExists(t, db, "records"))

	v, err := SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v)

	require.NoError(t, RollbackMigration(ctx, db))
	assert.False(t, tableExists(t, db, "datasets"))

	assert.Error(t, RollbackMigration(ctx, db), "nothing left to roll back")

	// Re-applying after a full rollback rebuilds everything
	require.NoError(t, ApplyMigrations(ctx, db))
	assert.True(t, tableExists(t, db, "runs"))
}

func TestMigrationVersionsAscending(t *testing.T) {
	db := openRaw(t)
	require.NoError(t, ApplyMigrations(context.Background(), db))

	for i := 1; i < len(AllMigrations); i++ {
		assert.Less(t, AllMigrations[i-1].Version, AllMigrations[i].Version)
	}
}
