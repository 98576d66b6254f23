// Package sqlctx classifies a cursor position inside source text as plain
// code, a generic string literal, or a string literal passed to a SQL call.
//
// The scan is purely lexical and restarts from the beginning of the buffer
// on every query. It does not track parentheses, comments or argument
// positions.
package sqlctx

import (
	"strings"
	"unicode"
)

// Context is the lexical classification of a cursor position.
type Context int

const (
	ContextCode Context = iota
	ContextString
	ContextSQL
)

func (c Context) String() string {
	switch c {
	case ContextString:
		return "string"
	case ContextSQL:
		return "sql"
	default:
		return "code"
	}
}

// WindowSize is how many bytes before a string opener are searched for a
// SQL call.
const WindowSize = 1000

// Patterns are the call suffixes whose string argument holds SQL.
var Patterns = []string{
	".sql(",
	".execute(",
	".query(",
	".read_sql(",
	".read_sql_query(",
	".read_sql_table(",
	"spark.sql(",
}

// Classify returns the context of the byte offset cursor in buffer.
func Classify(buffer string, cursor int) Context {
	cursor = clamp(cursor, len(buffer))
	if !inString(buffer, cursor) {
		return ContextCode
	}
	if sqlCall(buffer, cursor) {
		return ContextSQL
	}
	return ContextString
}

// IsInSQLContext reports whether cursor sits inside a string literal that is
// the argument of a recognized SQL call.
func IsInSQLContext(buffer string, cursor int) bool {
	return Classify(buffer, cursor) == ContextSQL
}

// IsInString reports whether cursor sits inside any string literal.
func IsInString(buffer string, cursor int) bool {
	return inString(buffer, clamp(cursor, len(buffer)))
}

func clamp(cursor, n int) int {
	if cursor < 0 {
		return 0
	}
	if cursor > n {
		return n
	}
	return cursor
}

// inString runs the forward two-state toggle from the buffer start.
func inString(buffer string, cursor int) bool {
	var inDouble, inSingle bool
	for pos := 0; pos < cursor; pos++ {
		switch buffer[pos] {
		case '\\':
			if pos+1 < len(buffer) {
				pos++
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		}
	}
	return inDouble || inSingle
}

// sqlCall finds the opener of the string around cursor and checks the text
// immediately before it for a SQL call pattern.
func sqlCall(buffer string, cursor int) bool {
	start, ok := openingQuote(buffer, cursor)
	if !ok {
		return false
	}

	anchor := start
	if anchor > 0 && (buffer[anchor-1] == 'f' || buffer[anchor-1] == 'F') {
		anchor--
	}

	window := buffer[max(0, anchor-WindowSize):anchor]
	trimmed := strings.TrimRightFunc(window, unicode.IsSpace)
	for _, p := range Patterns {
		if strings.HasSuffix(trimmed, p) {
			return true
		}
	}
	return false
}

// openingQuote walks backward from cursor to the nearest unescaped quote.
// When the two bytes before it repeat the same quote, the delimiter is a
// triple quote and its first byte is returned.
func openingQuote(buffer string, cursor int) (int, bool) {
	for pos := cursor - 1; pos >= 0; pos-- {
		q := buffer[pos]
		if q != '"' && q != '\'' {
			continue
		}
		if escaped(buffer, pos) {
			continue
		}
		if pos >= 2 && buffer[pos-1] == q && buffer[pos-2] == q {
			return pos - 2, true
		}
		return pos, true
	}
	return 0, false
}

func escaped(buffer string, pos int) bool {
	n := 0
	for i := pos - 1; i >= 0 && buffer[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}
