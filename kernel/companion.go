package kernel

import _ "embed"

// companionScript is the CPython side of the protocol. It is passed to the
// interpreter with -c and never written to disk.
//
//go:embed companion.py
var companionScript string

// CompanionScript returns the embedded interpreter companion source.
func CompanionScript() string {
	return companionScript
}
