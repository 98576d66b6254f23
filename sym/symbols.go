// Package sym defines the glyphs qconsole prints in front of prompts,
// outputs and meta-command feedback, and the REPL meta-command table.
package sym

// Prompt glyphs
const (
	Prompt       = "»" // ready for a new statement
	Continuation = "…" // inside a multi-line block
)

// Output glyphs, one per kernel output kind.
const (
	Stdout = "│" // captured standard output
	Result = "⟶" // value of the last expression
	Error  = "✗" // interpreter exception
	OK     = "✓" // success without a value
)

// System glyphs
const (
	Kernel   = "⍟" // interpreter subprocess lifecycle
	Config   = "≡" // configuration
	Schema   = "⊔" // schema providers and SQL metadata
	Complete = "⋈" // completion suggestions
	Stats    = "꩜" // process resource usage
)

// entry binds a meta-command to its glyph and description.
type entry struct {
	command     string
	glyph       string
	description string
}

// registry is the canonical list of REPL meta-commands, in help order.
var registry = []entry{
	{":complete", Complete, "Show suggestions for the text that follows"},
	{":reset", Kernel, "Restart the interpreter and clear its namespace"},
	{":stats", Stats, "Show interpreter process resource usage"},
	{":schema", Schema, "Show harvested tables, columns and functions"},
	{":config", Config, "Show the effective configuration"},
	{":help", Prompt, "List meta-commands"},
	{":quit", OK, "Leave the console"},
}

// Commands lists meta-commands in help order.
var Commands = func() []string {
	out := make([]string, len(registry))
	for i, e := range registry {
		out[i] = e.command
	}
	return out
}()

// CommandGlyph maps meta-commands to their glyphs.
var CommandGlyph = func() map[string]string {
	m := make(map[string]string, len(registry))
	for _, e := range registry {
		m[e.command] = e.glyph
	}
	return m
}()

// CommandDescriptions provides one-line help for each meta-command.
var CommandDescriptions = func() map[string]string {
	m := make(map[string]string, len(registry))
	for _, e := range registry {
		m[e.command] = e.description
	}
	return m
}()

// IsCommand reports whether s is a known meta-command. ":q" and ":exit"
// are accepted as ":quit".
func IsCommand(s string) bool {
	_, ok := CommandGlyph[Canonical(s)]
	return ok
}

// Canonical resolves meta-command aliases.
func Canonical(s string) string {
	switch s {
	case ":q", ":exit":
		return ":quit"
	case ":?", ":h":
		return ":help"
	}
	return s
}
