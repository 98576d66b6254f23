package testing

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// CreateTestDB creates an in-memory SQLite test database and applies ddl.
// The pool is pinned to one connection because every :memory: connection
// is a separate database. Cleanup is registered via t.Cleanup().
func CreateTestDB(t *testing.T, ddl ...string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			t.Fatalf("Failed to apply %q: %v", stmt, err)
		}
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
