package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	// Используем in-memory database для тестов
	s, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNew_RunsMigrations(t *testing.T) {
	s := setupTestStorage(t)

	for _, table := range []string{"sessions", "entities"} {
		var name string
		err := s.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}

	assert.NoError(t, s.Ping(context.Background()))
}

func TestNew_ReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gophsync.db")

	s, err := New(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// повторный запуск не применяет миграции заново
	s, err = New(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	var versions int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM goose_db_version WHERE version_id > 0`).Scan(&versions))
	assert.Equal(t, 2, versions)
}

func TestNew_InvalidPath(t *testing.T) {
	_, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "db.sqlite"))
	assert.Error(t, err)
}
