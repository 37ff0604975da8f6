package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMigrations_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")

	// First open applies the schema, second reopens it unchanged.
	store, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.UpsertDocument(context.Background(), testDoc("a", "survives reopen")))
	require.NoError(t, store.Close())

	store, err = Open(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	doc, err := store.GetDocument(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "survives reopen", doc.Content)

	var version string
	err = store.db.QueryRow("SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestRollbackMigration(t *testing.T) {
	db, err := openDatabase(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	require.NoError(t, ApplyMigrations(ctx, db))
	require.NoError(t, RollbackMigration(ctx, db))

	var name string
	err = db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='documents'").Scan(&name)
	assert.Error(t, err, "rollback must drop the documents table")
}
