// Package kerneltest provides an in-process stand-in for the interpreter
// side of the kernel protocol, for tests that must not depend on a real
// interpreter being installed.
//
// Interpreter understands a tiny statement language: constant expressions
// (evaluated with go/types, so Go literal syntax applies), assignments,
// print(expr), raise Name("message"), import name, single-line
// def name() -> Type: ..., sleep(seconds) and exit(). Everything it binds is
// harvested with the harvest package after every request, exactly as a
// real companion would.
package kerneltest

import (
	"context"
	"fmt"
	"go/constant"
	"go/token"
	"go/types"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/teranos/qconsole/harvest"
)

// Outcome is the result of evaluating one request.
type Outcome struct {
	Stdout string
	// Value is the formatted result of an expression request.
	Value    string
	HasValue bool
	// ErrName and ErrValue are set when the request raised.
	ErrName  string
	ErrValue string
	// Exit asks the server to stop without replying.
	Exit bool
}

type binding struct {
	entry harvest.Entry
	value constant.Value
}

// Interpreter holds the namespace of a fake interpreter.
type Interpreter struct {
	// Modules are the names import can bind.
	Modules map[string]harvest.Entry

	order []string
	vars  map[string]binding
}

// NewInterpreter returns an interpreter with an empty namespace and the
// DefaultModules available for import.
func NewInterpreter() *Interpreter {
	return &Interpreter{
		Modules: DefaultModules(),
		vars:    make(map[string]binding),
	}
}

// DefaultModules describes the modules importable by default.
func DefaultModules() map[string]harvest.Entry {
	return map[string]harvest.Entry{
		"math": {
			Name: "math",
			Kind: harvest.KindModule,
			Members: []harvest.Member{
				{Name: "pi", TypeName: "float"},
				{Name: "sqrt", TypeName: "builtin_function_or_method", Callable: true, ReturnType: "float"},
			},
		},
		"warehouse": {
			Name: "warehouse",
			Kind: harvest.KindModule,
			Members: []harvest.Member{
				{Name: "connect", TypeName: "function", Callable: true, ReturnType: "Connection"},
				{Name: "Connection", TypeName: "type", Callable: true, IsType: true,
					ClassName: "Connection", Methods: []string{"sql", "execute", "close"}},
				{Name: "_driver", TypeName: "module"},
			},
		},
	}
}

var strMembers = []harvest.Member{
	{Name: "lower", TypeName: "builtin_function_or_method", Callable: true, ReturnType: "str"},
	{Name: "split", TypeName: "builtin_function_or_method", Callable: true, ReturnType: "list"},
	{Name: "upper", TypeName: "builtin_function_or_method", Callable: true, ReturnType: "str"},
}

// Entries implements harvest.Namespace in binding order.
func (in *Interpreter) Entries() []harvest.Entry {
	entries := make([]harvest.Entry, 0, len(in.order))
	for _, name := range in.order {
		entries = append(entries, in.vars[name].entry)
	}
	return entries
}

// Bind adds or replaces a namespace entry.
func (in *Interpreter) Bind(e harvest.Entry) {
	in.bind(e.Name, binding{entry: e})
}

func (in *Interpreter) bind(name string, b binding) {
	if _, ok := in.vars[name]; !ok {
		in.order = append(in.order, name)
	}
	in.vars[name] = b
}

var (
	assignRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=([^=].*)$`)
	raiseRe  = regexp.MustCompile(`^raise\s+([A-Za-z_][A-Za-z0-9_]*)\s*(?:\((.*)\))?$`)
	defRe    = regexp.MustCompile(`^def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(.*\)\s*(?:->\s*([A-Za-z_][A-Za-z0-9_.]*))?\s*:.*$`)
	sleepRe  = regexp.MustCompile(`^sleep\((.*)\)$`)
)

// Eval runs code. A single expression line yields a value; anything else is
// run statement by statement until one raises.
func (in *Interpreter) Eval(ctx context.Context, code string) Outcome {
	lines := splitLines(code)
	if len(lines) == 1 && isExpression(lines[0]) {
		v, err := in.eval(lines[0])
		if err != nil {
			return *err
		}
		return Outcome{Value: repr(v), HasValue: true}
	}

	var out Outcome
	for _, line := range lines {
		if res := in.exec(ctx, strings.TrimSpace(line), &out); res != nil {
			res.Stdout = out.Stdout
			return *res
		}
	}
	return out
}

func splitLines(code string) []string {
	var lines []string
	for _, l := range strings.Split(code, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func isExpression(line string) bool {
	line = strings.TrimSpace(line)
	if assignRe.MatchString(line) || raiseRe.MatchString(line) || defRe.MatchString(line) || sleepRe.MatchString(line) {
		return false
	}
	for _, kw := range []string{"import ", "print(", "pass", "exit()"} {
		if strings.HasPrefix(line, kw) {
			return false
		}
	}
	return true
}

func (in *Interpreter) exec(ctx context.Context, line string, out *Outcome) *Outcome {
	switch {
	case line == "pass":
		return nil

	case line == "exit()":
		return &Outcome{Exit: true}

	case strings.HasPrefix(line, "print(") && strings.HasSuffix(line, ")"):
		arg := strings.TrimSpace(line[len("print(") : len(line)-1])
		if arg == "" {
			out.Stdout += "\n"
			return nil
		}
		v, err := in.eval(arg)
		if err != nil {
			return err
		}
		out.Stdout += str(v) + "\n"
		return nil

	case strings.HasPrefix(line, "import "):
		for _, spec := range strings.Split(strings.TrimPrefix(line, "import "), ",") {
			name, alias, found := strings.Cut(strings.TrimSpace(spec), " as ")
			name = strings.TrimSpace(name)
			mod, ok := in.Modules[name]
			if !ok {
				return raise("ModuleNotFoundError", fmt.Sprintf("No module named '%s'", name))
			}
			if found {
				mod.Name = strings.TrimSpace(alias)
			}
			in.Bind(mod)
		}
		return nil

	case sleepRe.MatchString(line):
		v, err := in.eval(sleepRe.FindStringSubmatch(line)[1])
		if err != nil {
			return err
		}
		secs, _ := constant.Float64Val(constant.ToFloat(v))
		select {
		case <-time.After(time.Duration(secs * float64(time.Second))):
		case <-ctx.Done():
		}
		return nil

	case raiseRe.MatchString(line):
		m := raiseRe.FindStringSubmatch(line)
		msg := ""
		if arg := strings.TrimSpace(m[2]); arg != "" {
			v, err := in.eval(arg)
			if err != nil {
				return err
			}
			msg = str(v)
		}
		return raise(m[1], msg)

	case defRe.MatchString(line):
		m := defRe.FindStringSubmatch(line)
		in.Bind(harvest.Entry{Name: m[1], Kind: harvest.KindFunction, TypeName: "function", ReturnType: m[2]})
		return nil

	case assignRe.MatchString(line):
		m := assignRe.FindStringSubmatch(line)
		rhs := strings.TrimSpace(m[2])
		if b, ok := in.vars[rhs]; ok {
			e := b.entry
			e.Name = m[1]
			in.bind(m[1], binding{entry: e, value: b.value})
			return nil
		}
		v, err := in.eval(rhs)
		if err != nil {
			return err
		}
		in.bind(m[1], valueBinding(m[1], v))
		return nil

	default:
		_, err := in.eval(line)
		return err
	}
}

func valueBinding(name string, v constant.Value) binding {
	e := harvest.Entry{Name: name, Kind: harvest.KindValue, TypeName: typeName(v)}
	if v.Kind() == constant.String {
		e.Members = strMembers
	}
	return binding{entry: e, value: v}
}

// eval evaluates a constant expression over the bound values.
func (in *Interpreter) eval(expr string) (constant.Value, *Outcome) {
	expr = strings.TrimSpace(expr)
	if b, ok := in.vars[expr]; ok && b.value == nil {
		return constant.MakeString(fmt.Sprintf("<%s %s>", b.entry.Kind, b.entry.Name)), nil
	}

	pkg := types.NewPackage("main", "main")
	scope := pkg.Scope()
	scope.Insert(types.NewConst(token.NoPos, pkg, "True", types.Typ[types.UntypedBool], constant.MakeBool(true)))
	scope.Insert(types.NewConst(token.NoPos, pkg, "False", types.Typ[types.UntypedBool], constant.MakeBool(false)))
	for name, b := range in.vars {
		if b.value == nil {
			continue
		}
		scope.Insert(types.NewConst(token.NoPos, pkg, name, untyped(b.value), b.value))
	}

	tv, err := types.Eval(token.NewFileSet(), pkg, token.NoPos, expr)
	if err != nil {
		msg := err.Error()
		if _, name, ok := strings.Cut(msg, "undefined: "); ok {
			return nil, raise("NameError", fmt.Sprintf("name '%s' is not defined", name))
		}
		return nil, raise("SyntaxError", msg)
	}
	if tv.Value == nil {
		return nil, raise("TypeError", fmt.Sprintf("cannot evaluate %q", expr))
	}
	return tv.Value, nil
}

func raise(name, msg string) *Outcome {
	return &Outcome{ErrName: name, ErrValue: msg}
}

func untyped(v constant.Value) types.Type {
	switch v.Kind() {
	case constant.Bool:
		return types.Typ[types.UntypedBool]
	case constant.String:
		return types.Typ[types.UntypedString]
	case constant.Float:
		return types.Typ[types.UntypedFloat]
	default:
		return types.Typ[types.UntypedInt]
	}
}

func typeName(v constant.Value) string {
	switch v.Kind() {
	case constant.Bool:
		return "bool"
	case constant.String:
		return "str"
	case constant.Float:
		return "float"
	default:
		return "int"
	}
}

// repr formats v the way the interpreter echoes an expression value.
func repr(v constant.Value) string {
	switch v.Kind() {
	case constant.String:
		q := strconv.Quote(constant.StringVal(v))
		inner := strings.ReplaceAll(q[1:len(q)-1], `\"`, `"`)
		return "'" + strings.ReplaceAll(inner, "'", `\'`) + "'"
	default:
		return str(v)
	}
}

// str formats v the way print shows it.
func str(v constant.Value) string {
	switch v.Kind() {
	case constant.String:
		return constant.StringVal(v)
	case constant.Bool:
		if constant.BoolVal(v) {
			return "True"
		}
		return "False"
	case constant.Float:
		f, _ := constant.Float64Val(v)
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eIN") {
			s += ".0"
		}
		return s
	default:
		return v.ExactString()
	}
}
