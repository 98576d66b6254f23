package harvest

import (
	"context"

	"go.uber.org/zap"
)

// Kind classifies a top-level namespace entry.
type Kind int

const (
	// KindValue is any object that is not one of the kinds below.
	KindValue Kind = iota
	KindModule
	KindFunction
	KindBuiltin
	KindClass
)

func (k Kind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindFunction:
		return "function"
	case KindBuiltin:
		return "builtin_function_or_method"
	case KindClass:
		return "type"
	default:
		return "value"
	}
}

// Member is an attribute of a namespace entry.
type Member struct {
	Name string
	// TypeName is the runtime type name of the attribute value.
	TypeName string
	Callable bool
	// ReturnType is the declared return annotation, empty when absent.
	ReturnType string
	// IsType is set when the attribute is itself a type object. ClassName
	// then holds the type's own name and Methods its member names.
	IsType    bool
	ClassName string
	Methods   []string
}

// Entry is a top-level binding in the interpreter namespace.
type Entry struct {
	Name string
	Kind Kind
	// TypeName is the runtime type name of the bound value.
	TypeName string
	// ReturnType is the declared return annotation of a function or builtin.
	ReturnType string
	Members    []Member
	// Schema is set when the value is a recognized data-query connection.
	Schema SchemaProvider
}

// Namespace enumerates the entries visible to the console.
type Namespace interface {
	Entries() []Entry
}

// StaticNamespace is a Namespace over a fixed slice.
type StaticNamespace []Entry

// Entries returns the slice itself.
func (ns StaticNamespace) Entries() []Entry { return ns }

// Harvest derives completions, type relationships and SQL metadata from ns.
// Schema metadata is collected from providers followed by every entry that
// carries a Schema. Provider failures never fail the harvest.
func Harvest(ctx context.Context, ns Namespace, providers []SchemaProvider, logger *zap.SugaredLogger) Result {
	entries := ns.Entries()
	completions, rel := harvestNamespace(entries)

	all := make([]SchemaProvider, 0, len(providers))
	all = append(all, providers...)
	for _, e := range entries {
		if e.Schema != nil && !IsPrivate(e.Name) {
			all = append(all, e.Schema)
		}
	}

	return Result{
		Completions:   completions,
		Relationships: rel,
		SQL:           CollectSQL(ctx, all, logger),
	}
}

func harvestNamespace(entries []Entry) ([]CompletionItem, TypeRelationships) {
	items := make([]CompletionItem, 0, len(entries))
	rel := NewTypeRelationships()

	for _, e := range entries {
		if IsPrivate(e.Name) {
			continue
		}

		switch e.Kind {
		case KindModule:
			items = append(items, CompletionItem{Name: e.Name, Type: "module"})
			items = harvestModule(items, rel, e)

		case KindFunction, KindBuiltin, KindClass:
			items = append(items, CompletionItem{Name: e.Name, Type: e.TypeName})
			if e.Kind != KindClass && e.ReturnType != "" {
				rel.ReturnTypes[e.Name] = e.ReturnType
			}

		default:
			items = append(items, CompletionItem{Name: e.Name, Type: e.TypeName})
			recordValueType(rel, e)
			for _, m := range e.Members {
				if IsPrivate(m.Name) {
					continue
				}
				items = append(items, CompletionItem{Name: e.Name + "." + m.Name, Type: m.TypeName})
			}
		}
	}
	return items, rel
}

func harvestModule(items []CompletionItem, rel TypeRelationships, mod Entry) []CompletionItem {
	for _, m := range mod.Members {
		if IsPrivate(m.Name) {
			continue
		}
		full := mod.Name + "." + m.Name
		items = append(items, CompletionItem{Name: full, Type: m.TypeName})

		if m.Callable && m.ReturnType != "" {
			rel.ReturnTypes[full] = m.ReturnType
		}

		if m.IsType {
			typeName := m.ClassName
			if typeName == "" {
				typeName = m.Name
			}
			if _, seen := rel.TypeMethods[typeName]; !seen {
				if methods := publicNames(m.Methods); len(methods) > 0 {
					rel.TypeMethods[typeName] = methods
				}
			}
			rel.ReturnTypes[full] = typeName
		}
	}
	return items
}

func recordValueType(rel TypeRelationships, e Entry) {
	if e.TypeName == "" {
		return
	}
	if _, seen := rel.TypeMethods[e.TypeName]; seen {
		return
	}

	var methods []string
	for _, m := range e.Members {
		if IsPrivate(m.Name) {
			continue
		}
		methods = append(methods, m.Name)
		if m.Callable && m.ReturnType != "" {
			rel.ReturnTypes[e.TypeName+"."+m.Name] = m.ReturnType
		}
	}
	if len(methods) > 0 {
		rel.TypeMethods[e.TypeName] = methods
	}
}

func publicNames(names []string) []string {
	var out []string
	for _, n := range names {
		if !IsPrivate(n) {
			out = append(out, n)
		}
	}
	return out
}
