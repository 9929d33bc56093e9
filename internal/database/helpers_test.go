package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kdimtricp/anilights/migrations"
)

// newTestDB opens a fresh sqlite file with every migration applied.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(context.Background(), Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = NewMigrator(db.Conn()).Run(context.Background(), migrations.FS)
	require.NoError(t, err)
	return db
}
