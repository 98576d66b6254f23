package db

import (
	"strings"

	"github.com/teranos/qconsole/errors"
)

// ErrDatabaseClosed is returned when a query runs against a closed database,
// typically a schema provider replaced by a config reload mid-harvest.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed checks if an error indicates the database connection is
// closed, either our sentinel or the raw driver message.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
