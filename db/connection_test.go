package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestOpen(t *testing.T) {
	t.Run("opens database successfully", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		conn, err := Open(dbPath, nil)
		require.NoError(t, err)
		defer conn.Close()

		var journalMode string
		require.NoError(t, conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
		assert.Equal(t, "wal", journalMode)

		var busyTimeout int
		require.NoError(t, conn.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
		assert.Equal(t, SQLiteBusyTimeoutMS, busyTimeout)
	})

	t.Run("creates database file if it doesn't exist", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "new.db")
		_, err := os.Stat(dbPath)
		assert.True(t, os.IsNotExist(err))

		conn, err := Open(dbPath, zaptest.NewLogger(t).Sugar())
		require.NoError(t, err)
		defer conn.Close()

		_, err = os.Stat(dbPath)
		assert.NoError(t, err)
	})
}

func TestOpenReadOnly(t *testing.T) {
	t.Run("reads existing schema", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "shop.db")
		rw, err := Open(dbPath, nil)
		require.NoError(t, err)
		_, err = rw.Exec("CREATE TABLE orders (id INTEGER PRIMARY KEY, total REAL)")
		require.NoError(t, err)
		require.NoError(t, rw.Close())

		conn, err := OpenReadOnly(dbPath, zaptest.NewLogger(t).Sugar())
		require.NoError(t, err)
		defer conn.Close()

		var name string
		require.NoError(t, conn.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table'").Scan(&name))
		assert.Equal(t, "orders", name)

		_, err = conn.Exec("CREATE TABLE other (id INTEGER)")
		assert.Error(t, err, "read-only connection must reject writes")
	})

	t.Run("missing file is an error with a hint", func(t *testing.T) {
		_, err := OpenReadOnly(filepath.Join(t.TempDir(), "missing.db"), nil)
		require.Error(t, err)
		assert.NotEmpty(t, errors.GetAllHints(err))
	})
}

func TestIsDatabaseClosed(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "closed.db"), nil)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	_, err = conn.Exec("SELECT 1")
	require.Error(t, err)
	assert.True(t, IsDatabaseClosed(err))
	assert.True(t, IsDatabaseClosed(errors.Wrap(ErrDatabaseClosed, "harvest")))
	assert.False(t, IsDatabaseClosed(nil))
	assert.False(t, IsDatabaseClosed(errors.New("syntax error")))
}
