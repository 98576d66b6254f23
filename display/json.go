package display

import (
	"encoding/json"
	"os"

	"golang.org/x/term"
)

// MarshalJSON marshals JSON with pretty formatting for terminals and
// compact formatting when stdout is piped
func MarshalJSON(v interface{}) ([]byte, error) {
	if !stdoutIsTerminal() {
		return json.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}

// MarshalJSONIndent always pretty-prints
func MarshalJSONIndent(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

var stdoutIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
