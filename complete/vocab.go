package complete

// sqlKeywords are offered in SQL context ahead of schema names.
var sqlKeywords = []string{
	"SELECT", "FROM", "WHERE", "AND", "OR", "NOT", "IN", "EXISTS",
	"JOIN", "LEFT", "RIGHT", "INNER", "OUTER", "FULL", "CROSS", "ON", "USING",
	"GROUP", "BY", "HAVING", "ORDER", "ASC", "DESC", "LIMIT", "OFFSET",
	"INSERT", "INTO", "VALUES", "UPDATE", "SET", "DELETE", "TRUNCATE",
	"CREATE", "ALTER", "DROP", "TABLE", "VIEW", "INDEX", "DATABASE", "SCHEMA",
	"AS", "DISTINCT", "ALL", "UNION", "INTERSECT", "EXCEPT",
	"CASE", "WHEN", "THEN", "ELSE", "END",
	"IS", "NULL", "BETWEEN", "LIKE", "ILIKE", "SIMILAR", "TO",
	"WITH", "RECURSIVE", "CTE",
	// aggregates
	"COUNT", "SUM", "AVG", "MIN", "MAX", "STDDEV", "VARIANCE",
	"STRING_AGG", "ARRAY_AGG", "BOOL_AND", "BOOL_OR",
	// window functions
	"OVER", "PARTITION", "ROW_NUMBER", "RANK", "DENSE_RANK",
	"LAG", "LEAD", "FIRST_VALUE", "LAST_VALUE",
	// types
	"INTEGER", "INT", "BIGINT", "SMALLINT", "DECIMAL", "NUMERIC",
	"FLOAT", "DOUBLE", "REAL", "VARCHAR", "CHAR", "TEXT",
	"DATE", "TIME", "TIMESTAMP", "INTERVAL", "BOOLEAN", "BOOL",
	"JSON", "JSONB", "ARRAY", "STRUCT", "MAP",
	"CAST", "TRY_CAST", "CONVERT",
	"COALESCE", "NULLIF", "IFNULL", "NVL",
}

// languageCompletions are the interpreter keywords, builtins and common
// module names offered after namespace names.
var languageCompletions = []string{
	// keywords
	"False", "None", "True", "and", "as", "assert", "async", "await",
	"break", "class", "continue", "def", "del", "elif", "else", "except",
	"finally", "for", "from", "global", "if", "import", "in", "is",
	"lambda", "nonlocal", "not", "or", "pass", "raise", "return",
	"try", "while", "with", "yield",
	// builtins
	"abs", "all", "any", "ascii", "bin", "bool", "bytearray", "bytes",
	"callable", "chr", "classmethod", "compile", "complex", "delattr",
	"dict", "dir", "divmod", "enumerate", "eval", "exec", "filter",
	"float", "format", "frozenset", "getattr", "globals", "hasattr",
	"hash", "help", "hex", "id", "input", "int", "isinstance",
	"issubclass", "iter", "len", "list", "locals", "map", "max",
	"memoryview", "min", "next", "object", "oct", "open", "ord",
	"pow", "print", "property", "range", "repr", "reversed", "round",
	"set", "setattr", "slice", "sorted", "staticmethod", "str", "sum",
	"super", "tuple", "type", "vars", "zip",
	// common imports
	"pandas", "numpy", "matplotlib", "duckdb", "json", "os", "sys",
	"datetime", "collections", "itertools", "functools", "pathlib",
}

var sqlKeywordSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(sqlKeywords))
	for _, kw := range sqlKeywords {
		set[kw] = struct{}{}
	}
	return set
}()

// SQLKeywords returns a copy of the SQL keyword vocabulary.
func SQLKeywords() []string {
	return append([]string(nil), sqlKeywords...)
}

// LanguageCompletions returns a copy of the static interpreter vocabulary.
func LanguageCompletions() []string {
	return append([]string(nil), languageCompletions...)
}

// IsSQLKeyword reports whether s is exactly one of the SQL keywords.
func IsSQLKeyword(s string) bool {
	_, ok := sqlKeywordSet[s]
	return ok
}
