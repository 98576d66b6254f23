package console

import (
	"unicode"
	"unicode/utf8"

	"github.com/teranos/qconsole/complete"
	"github.com/teranos/qconsole/sqlctx"
)

// Word is the completion target around the cursor.
type Word struct {
	Context sqlctx.Context
	// Base is the callable whose result is being accessed ("duckdb.sql" for
	// "duckdb.sql(q).pr"); empty when there is none.
	Base string
	// Prefix is the text the accepted suggestion replaces.
	Prefix string
	// Start is the byte offset where Prefix begins; the cursor is Start+len(Prefix).
	Start int
}

// ExtractWord classifies the cursor and splits the text before it into base
// and prefix. Inside a generic string literal the word is empty.
func ExtractWord(buffer string, cursor int) Word {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(buffer) {
		cursor = len(buffer)
	}

	w := Word{Context: sqlctx.Classify(buffer, cursor), Start: cursor}
	switch w.Context {
	case sqlctx.ContextString:
		return w

	case sqlctx.ContextSQL:
		w.Start = scanBack(buffer, cursor, isSQLRune)
		w.Prefix = buffer[w.Start:cursor]
		return w
	}

	start := scanBack(buffer, cursor, isWordRune)
	raw := buffer[start:cursor]
	w.Start = start
	w.Prefix = raw

	if len(raw) == 0 || raw[0] != '.' {
		return w
	}

	// ".pre" after something else: only the part after the dot is replaced
	w.Start = start + 1
	w.Prefix = raw[1:]

	if start == 0 || buffer[start-1] != ')' {
		return w
	}
	open, ok := matchingOpen(buffer, start-1)
	if !ok {
		return w
	}
	baseStart := scanBack(buffer, open, isWordRune)
	base := trimDots(buffer[baseStart:open])
	w.Base = base
	return w
}

// Complete classifies the cursor and refreshes e for the word there.
// Generic strings hide the dropdown.
func Complete(e *complete.Engine, buffer string, cursor int) Word {
	w := ExtractWord(buffer, cursor)
	switch w.Context {
	case sqlctx.ContextString:
		e.Hide()
	case sqlctx.ContextSQL:
		e.UpdateWithContext("", w.Prefix, true)
	default:
		e.UpdateWithContext(w.Base, w.Prefix, false)
	}
	return w
}

// CompleteSQL treats the whole buffer as query text and refreshes e with
// the SQL tier, bypassing classification.
func CompleteSQL(e *complete.Engine, buffer string, cursor int) Word {
	cursor = max(0, min(cursor, len(buffer)))
	start := scanBack(buffer, cursor, isSQLRune)
	w := Word{Context: sqlctx.ContextSQL, Prefix: buffer[start:cursor], Start: start}
	e.UpdateWithContext("", w.Prefix, true)
	return w
}

// ReplaceWord substitutes text for w's prefix and returns the new buffer and
// cursor.
func ReplaceWord(buffer string, w Word, text string) (string, int) {
	end := w.Start + len(w.Prefix)
	if w.Start < 0 || end > len(buffer) || buffer[w.Start:end] != w.Prefix {
		return buffer, end
	}
	return buffer[:w.Start] + text + buffer[end:], w.Start + len(text)
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isWordRune(r rune) bool { return r == '.' || isIdentRune(r) }

// SQL identifiers may be qualified (orders.amount)
func isSQLRune(r rune) bool { return isWordRune(r) }

// scanBack returns the offset of the first rune of the run ending at end
// whose runes all satisfy keep.
func scanBack(s string, end int, keep func(rune) bool) int {
	i := end
	for i > 0 {
		r, size := utf8.DecodeLastRuneInString(s[:i])
		if !keep(r) {
			break
		}
		i -= size
	}
	return i
}

func trimDots(s string) string {
	for len(s) > 0 && s[0] == '.' {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}

// matchingOpen finds the '(' closed by the ')' at closeIdx. Parentheses
// inside string literals are ignored.
func matchingOpen(s string, closeIdx int) (int, bool) {
	var stack []int
	match := -1
	for i := 0; i <= closeIdx; i++ {
		switch c := s[i]; c {
		case '\'', '"':
			end := skipString(s, i, closeIdx)
			if end < 0 {
				return 0, false
			}
			i = end
		case '(':
			stack = append(stack, i)
		case ')':
			if len(stack) == 0 {
				return 0, false
			}
			match = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		}
	}
	return match, match >= 0
}

// skipString returns the offset of the closing quote of the literal opening
// at i, or -1 when it is not closed before limit.
func skipString(s string, i, limit int) int {
	q := s[i]
	triple := i+2 < len(s) && s[i+1] == q && s[i+2] == q
	j := i + 1
	if triple {
		j = i + 3
	}
	for ; j <= limit; j++ {
		switch {
		case s[j] == '\\':
			j++
		case s[j] != q:
		case !triple:
			return j
		case j+2 <= limit && s[j+1] == q && s[j+2] == q:
			return j + 2
		}
	}
	return -1
}
