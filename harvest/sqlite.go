package harvest

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/qconsole/db"
	"github.com/teranos/qconsole/errors"
	"github.com/teranos/qconsole/logger"
)

// sqliteCoreFunctions is reported when the linked SQLite was built without
// introspection pragmas and pragma_function_list is unavailable.
var sqliteCoreFunctions = []string{
	"abs", "avg", "changes", "char", "coalesce", "count", "date", "datetime",
	"glob", "group_concat", "hex", "ifnull", "instr", "json", "json_extract",
	"julianday", "last_insert_rowid", "length", "like", "lower", "ltrim",
	"max", "min", "nullif", "printf", "quote", "random", "replace", "round",
	"rtrim", "strftime", "substr", "sum", "time", "total", "trim", "typeof",
	"unicode", "upper",
}

// SQLiteProvider lists the schema of a SQLite database.
type SQLiteProvider struct {
	name   string
	conn   *sql.DB
	owned  bool
	logger *zap.SugaredLogger
}

// NewSQLiteProvider wraps an existing connection. The caller keeps
// ownership of conn; Close does not close it.
func NewSQLiteProvider(name string, conn *sql.DB, log *zap.SugaredLogger) *SQLiteProvider {
	return &SQLiteProvider{name: name, conn: conn, logger: logger.OrNop(log)}
}

// OpenSQLite opens path read-only and returns a provider that owns the
// connection. The provider is named after the file.
func OpenSQLite(path string, log *zap.SugaredLogger) (*SQLiteProvider, error) {
	conn, err := db.OpenReadOnly(path, log)
	if err != nil {
		return nil, err
	}
	name := "sqlite:" + strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &SQLiteProvider{name: name, conn: conn, owned: true, logger: logger.OrNop(log)}, nil
}

// Name returns the provider name.
func (p *SQLiteProvider) Name() string { return p.name }

// ListTables returns user tables and views in name order.
func (p *SQLiteProvider) ListTables(ctx context.Context) ([]string, error) {
	return p.queryNames(ctx, "list tables",
		`SELECT name FROM sqlite_master
		 WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
}

// ListColumns returns the columns of table in declaration order.
func (p *SQLiteProvider) ListColumns(ctx context.Context, table string) ([]string, error) {
	return p.queryNames(ctx, "list columns of "+table,
		`SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
}

// ListFunctions returns the SQL functions known to the connection. Builds
// lacking pragma_function_list fall back to the core function set.
func (p *SQLiteProvider) ListFunctions(ctx context.Context) ([]string, error) {
	names, err := p.queryNames(ctx, "list functions",
		`SELECT DISTINCT name FROM pragma_function_list ORDER BY name`)
	if err != nil {
		if db.IsDatabaseClosed(err) || ctx.Err() != nil {
			return nil, err
		}
		p.logger.Debugw("pragma_function_list unavailable, using core functions",
			logger.FieldProvider, p.name, logger.FieldError, err)
		return append([]string(nil), sqliteCoreFunctions...), nil
	}
	return names, nil
}

// Close releases the connection if the provider opened it.
func (p *SQLiteProvider) Close() error {
	if !p.owned {
		return nil
	}
	return p.conn.Close()
}

func (p *SQLiteProvider) queryNames(ctx context.Context, what, query string, args ...any) ([]string, error) {
	rows, err := p.conn.QueryContext(ctx, query, args...)
	if err != nil {
		if db.IsDatabaseClosed(err) {
			return nil, errors.Mark(errors.Wrap(err, what), db.ErrDatabaseClosed)
		}
		return nil, errors.Wrap(err, what)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrapf(err, "%s: scan", what)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, what)
	}
	return names, nil
}
