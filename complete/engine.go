// Package complete ranks and tracks autocomplete suggestions for the
// console. The Engine is a small state machine: Hidden, or Visible with a
// suggestion list, a selected index and a viewport offset into the list.
//
// Suggestions come from four tiers, tried in order:
//
//   - SQL: keywords plus harvested tables, columns and functions, matched
//     case-insensitively, when the cursor is inside a SQL string
//   - type: members of the type a base callable returns
//   - heuristic: members of types whose name resembles the base's module
//   - fallback: namespace names, then static language vocabulary
//
// The Engine is not safe for concurrent use.
package complete

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/teranos/qconsole/harvest"
	"github.com/teranos/qconsole/logger"
)

// DefaultWindowSize is the number of suggestions visible at once.
const DefaultWindowSize = 10

// Tier names the source of the current suggestion list.
type Tier string

const (
	TierNone      Tier = ""
	TierSQL       Tier = "sql"
	TierType      Tier = "type"
	TierHeuristic Tier = "heuristic"
	TierFallback  Tier = "fallback"
)

// Engine holds suggestion state and the metadata it is derived from.
type Engine struct {
	suggestions []string
	selected    int
	offset      int
	visible     bool
	filter      string
	tier        Tier

	dynamic []string
	rel     harvest.TypeRelationships
	sql     harvest.SQLMetadata

	window int
	logger *zap.SugaredLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWindowSize overrides DefaultWindowSize. Non-positive sizes are ignored.
func WithWindowSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.window = n
		}
	}
}

// WithLogger sets the debug log sink.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) {
		e.logger = logger.OrNop(l)
	}
}

// New creates a hidden Engine with no metadata.
func New(opts ...Option) *Engine {
	e := &Engine{
		rel:    harvest.NewTypeRelationships(),
		window: DefaultWindowSize,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetDynamicCompletions replaces the namespace names offered by the
// fallback tier. Order is preserved.
func (e *Engine) SetDynamicCompletions(names []string) {
	e.dynamic = append([]string(nil), names...)
}

// SetTypeRelationships replaces the type information used for member
// completion after a call.
func (e *Engine) SetTypeRelationships(rel harvest.TypeRelationships) {
	e.rel = rel
}

// SetSQLMetadata replaces the schema names offered in SQL context.
func (e *Engine) SetSQLMetadata(md harvest.SQLMetadata) {
	e.sql = md
}

// Update recomputes suggestions for prefix with no base and no SQL context.
func (e *Engine) Update(prefix string) {
	e.UpdateWithContext("", prefix, false)
}

// UpdateWithContext recomputes suggestions. base is the callable whose
// result is being accessed, such as "duckdb.sql" for "duckdb.sql(q).pr";
// it is empty when there is none. Calling it twice with the same arguments
// and metadata yields the same state.
func (e *Engine) UpdateWithContext(base, prefix string, isSQL bool) {
	e.filter = prefix

	if prefix == "" && base == "" && !isSQL {
		e.Hide()
		e.tier = TierNone
		return
	}

	switch {
	case isSQL:
		e.show(TierSQL, e.sqlSuggestions(prefix))
		e.logUpdate(base, prefix, isSQL)
		return

	case base != "":
		tier, found := e.typeSuggestions(base, prefix)
		if len(found) > 0 {
			e.show(tier, found)
			e.logUpdate(base, prefix, isSQL)
			return
		}
	}

	e.show(TierFallback, e.fallbackSuggestions(prefix))
	e.logUpdate(base, prefix, isSQL)
}

func (e *Engine) show(tier Tier, suggestions []string) {
	e.tier = tier
	e.suggestions = suggestions
	e.visible = len(suggestions) > 0
	e.selected = 0
	e.offset = 0
}

func (e *Engine) sqlSuggestions(prefix string) []string {
	lower := strings.ToLower(prefix)
	matches := func(s string) bool {
		return lower == "" || strings.HasPrefix(strings.ToLower(s), lower)
	}

	var out []string
	for _, group := range [][]string{sqlKeywords, e.sql.Tables, e.sql.Columns, e.sql.Functions} {
		for _, s := range group {
			if matches(s) {
				out = append(out, s)
			}
		}
	}
	return out
}

// typeSuggestions resolves base through ReturnTypes. On a miss it falls
// back to the module-name heuristic.
func (e *Engine) typeSuggestions(base, prefix string) (Tier, []string) {
	if ret, ok := e.rel.ReturnTypes[base]; ok {
		var out []string
		for _, m := range e.rel.TypeMethods[ret] {
			if strings.HasPrefix(m, prefix) {
				out = append(out, m)
			}
		}
		return TierType, out
	}

	hint, _, _ := strings.Cut(base, ".")
	if hint == "" {
		return TierHeuristic, nil
	}
	lowerHint := strings.ToLower(hint)
	first, _ := utf8.DecodeRuneInString(hint)
	initial := string(unicode.ToUpper(first))

	typeNames := make([]string, 0, len(e.rel.TypeMethods))
	for name := range e.rel.TypeMethods {
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)

	var out []string
	seen := make(map[string]struct{})
	for _, name := range typeNames {
		if !strings.Contains(strings.ToLower(name), lowerHint) && !strings.HasPrefix(name, initial) {
			continue
		}
		for _, m := range e.rel.TypeMethods[name] {
			if _, dup := seen[m]; dup || !strings.HasPrefix(m, prefix) {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return TierHeuristic, out
}

func (e *Engine) fallbackSuggestions(prefix string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, name := range e.dynamic {
		if _, dup := seen[name]; dup || !strings.HasPrefix(name, prefix) {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, name := range languageCompletions {
		if _, dup := seen[name]; dup || !strings.HasPrefix(name, prefix) {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func (e *Engine) logUpdate(base, prefix string, isSQL bool) {
	e.logger.Debugw("Suggestions updated",
		logger.FieldBase, base,
		logger.FieldPrefix, prefix,
		logger.FieldSQL, isSQL,
		logger.FieldTier, string(e.tier),
		logger.FieldCount, len(e.suggestions),
		"dynamic", len(e.dynamic))
}

// SelectNext moves the selection down, wrapping to the first entry.
func (e *Engine) SelectNext() {
	if len(e.suggestions) == 0 {
		return
	}
	e.selected = (e.selected + 1) % len(e.suggestions)
	e.scroll()
}

// SelectPrevious moves the selection up, wrapping to the last entry.
func (e *Engine) SelectPrevious() {
	if len(e.suggestions) == 0 {
		return
	}
	if e.selected == 0 {
		e.selected = len(e.suggestions) - 1
	} else {
		e.selected--
	}
	e.scroll()
}

// scroll moves the viewport the minimum distance that keeps the selection
// inside it.
func (e *Engine) scroll() {
	switch {
	case e.selected < e.offset:
		e.offset = e.selected
	case e.selected >= e.offset+e.window:
		e.offset = e.selected - (e.window - 1)
	}
}

// Selected returns the highlighted suggestion while the dropdown is visible.
func (e *Engine) Selected() (string, bool) {
	if !e.visible || e.selected >= len(e.suggestions) {
		return "", false
	}
	return e.suggestions[e.selected], true
}

// Hide clears the suggestions and resets selection and viewport.
func (e *Engine) Hide() {
	e.visible = false
	e.suggestions = nil
	e.selected = 0
	e.offset = 0
}

// Visible reports whether the dropdown is shown.
func (e *Engine) Visible() bool { return e.visible }

// Suggestions returns a copy of the current suggestion list.
func (e *Engine) Suggestions() []string {
	return append([]string(nil), e.suggestions...)
}

func (e *Engine) SelectedIndex() int  { return e.selected }
func (e *Engine) ViewportOffset() int { return e.offset }
func (e *Engine) WindowSize() int     { return e.window }

// FilterText is the prefix passed to the last update.
func (e *Engine) FilterText() string { return e.filter }

// Tier reports which tier produced the current suggestions.
func (e *Engine) Tier() Tier { return e.tier }

// TypeRelationships returns the type information last set.
func (e *Engine) TypeRelationships() harvest.TypeRelationships { return e.rel }

// SQLMetadata returns the schema names last set.
func (e *Engine) SQLMetadata() harvest.SQLMetadata { return e.sql }

// DynamicCompletions returns a copy of the namespace names last set.
func (e *Engine) DynamicCompletions() []string {
	return append([]string(nil), e.dynamic...)
}
