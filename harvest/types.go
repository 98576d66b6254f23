// Package harvest defines the introspection contract between the console
// and its interpreter subprocess: the metadata shapes reported after every
// execution, the rules used to derive them from a live namespace, and the
// schema metadata providers that feed SQL completion.
package harvest

// ReservedPrefix marks names owned by the protocol itself. Such names never
// appear in harvested metadata.
const ReservedPrefix = "QCONSOLE_"

// CompletionItem is a single namespace name reported by the interpreter.
// Name may be dotted (module.member) to describe a path into the namespace.
type CompletionItem struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypeRelationships links callables to the types they return and types to
// their member names. Both maps are rebuilt on every execution.
type TypeRelationships struct {
	ReturnTypes map[string]string   `json:"return_types"`
	TypeMethods map[string][]string `json:"type_methods"`
}

// NewTypeRelationships returns an empty, non-nil TypeRelationships.
func NewTypeRelationships() TypeRelationships {
	return TypeRelationships{
		ReturnTypes: make(map[string]string),
		TypeMethods: make(map[string][]string),
	}
}

// SQLMetadata lists schema names offered to SQL completion. Columns carry
// both table.column and bare forms. Every list is ordered and unique.
type SQLMetadata struct {
	Tables    []string `json:"tables"`
	Columns   []string `json:"columns"`
	Functions []string `json:"functions"`
}

// IsEmpty reports whether no schema name is known.
func (m SQLMetadata) IsEmpty() bool {
	return len(m.Tables) == 0 && len(m.Columns) == 0 && len(m.Functions) == 0
}

// Merge returns m followed by the entries of other that m does not already
// hold. Neither input is modified.
func (m SQLMetadata) Merge(other SQLMetadata) SQLMetadata {
	return SQLMetadata{
		Tables:    mergeUnique(m.Tables, other.Tables),
		Columns:   mergeUnique(m.Columns, other.Columns),
		Functions: mergeUnique(m.Functions, other.Functions),
	}
}

// Result bundles the three payloads produced by one harvest.
type Result struct {
	Completions   []CompletionItem  `json:"completions"`
	Relationships TypeRelationships `json:"type_relationships"`
	SQL           SQLMetadata       `json:"sql_metadata"`
}

// CompletionNames flattens items to their names, preserving order.
func CompletionNames(items []CompletionItem) []string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return names
}

// IsPrivate reports whether name is excluded from harvesting.
func IsPrivate(name string) bool {
	return len(name) == 0 || name[0] == '_' || hasPrefix(name, ReservedPrefix)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func mergeUnique(a, b []string) []string {
	var set orderedSet
	set.addAll(a)
	set.addAll(b)
	return set.items
}

// orderedSet keeps insertion order and drops exact duplicates.
type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func (s *orderedSet) add(v string) bool {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

func (s *orderedSet) addAll(vs []string) {
	for _, v := range vs {
		s.add(v)
	}
}

func (s *orderedSet) len() int {
	return len(s.items)
}
