// Package db opens SQLite databases offered to SQL completion.
package db

import (
	"database/sql"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/teranos/qconsole/errors"
	"github.com/teranos/qconsole/logger"
)

// SQLiteBusyTimeoutMS bounds how long a query waits on a locked database.
const SQLiteBusyTimeoutMS = 5000

// Open opens a SQLite database at path for reading and writing, creating it
// when missing. If logger is provided, logs database operations; otherwise
// operates silently.
func Open(path string, log *zap.SugaredLogger) (*sql.DB, error) {
	log = logger.OrNop(log)
	log.Debugw("Opening database", logger.FieldFile, path)

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "failed to apply %q", p)
		}
	}

	log.Debugw("Database opened", logger.FieldFile, path, "wal_mode", true)
	return conn, nil
}

// OpenReadOnly opens an existing SQLite database without write access.
// Schema inspection must never modify a user's file, so no pragma that
// persists state is applied.
func OpenReadOnly(path string, log *zap.SugaredLogger) (*sql.DB, error) {
	log = logger.OrNop(log)

	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro&_busy_timeout=5000"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, errors.WithHint(
			errors.Wrapf(err, "failed to open database %s", path),
			"check that the file exists and is a SQLite database")
	}

	log.Debugw("Database opened read-only", logger.FieldFile, path)
	return conn, nil
}
