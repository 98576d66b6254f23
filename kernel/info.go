package kernel

import "github.com/google/uuid"

// Variant tags how a kernel talks to its interpreter.
type Variant string

// VariantDirect is a child process speaking the line-framed protocol on its
// standard streams.
const VariantDirect Variant = "direct"

// KernelInfo identifies a kernel instance. It never changes after New.
type KernelInfo struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Interpreter string  `json:"interpreter"`
	Variant     Variant `json:"variant"`
}

func newInfo(cfg Config) KernelInfo {
	return KernelInfo{
		ID:          uuid.NewString(),
		Name:        cfg.Name,
		DisplayName: cfg.DisplayName,
		Interpreter: cfg.Interpreter,
		Variant:     VariantDirect,
	}
}

// State is the connection state of a kernel.
type State int

const (
	StateDisconnected State = iota
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}
