package kernel

import (
	"strings"

	"github.com/teranos/qconsole/harvest"
)

// OutputKind discriminates ExecutionOutput.
type OutputKind string

const (
	OutputStdout OutputKind = "stdout"
	OutputResult OutputKind = "result"
	OutputError  OutputKind = "error"
)

// ExecutionError is an exception raised by submitted code. It is reported
// as output, not as a Go error.
type ExecutionError struct {
	Name      string   `json:"ename"`
	Message   string   `json:"evalue"`
	Traceback []string `json:"traceback"`
}

func (e *ExecutionError) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Name + ": " + e.Message
}

// ExecutionOutput is one entry of an execution's output sequence. Text
// holds stdout text or the formatted result; Err is set for OutputError.
type ExecutionOutput struct {
	Kind OutputKind      `json:"kind"`
	Text string          `json:"text,omitempty"`
	Err  *ExecutionError `json:"error,omitempty"`
}

// Stdout builds a stdout output.
func Stdout(text string) ExecutionOutput {
	return ExecutionOutput{Kind: OutputStdout, Text: text}
}

// Result builds a result output.
func Result(text string) ExecutionOutput {
	return ExecutionOutput{Kind: OutputResult, Text: text}
}

// Error builds an error output.
func Error(name, message string, traceback []string) ExecutionOutput {
	return ExecutionOutput{Kind: OutputError, Err: &ExecutionError{Name: name, Message: message, Traceback: traceback}}
}

// ExecutionResult is everything one Execute call produced. Metadata fields
// hold the harvest reported during that call only.
type ExecutionResult struct {
	Outputs           []ExecutionOutput         `json:"outputs"`
	ExecutionCount    int                       `json:"execution_count"`
	Success           bool                      `json:"success"`
	Completions       []harvest.CompletionItem  `json:"completions"`
	TypeRelationships harvest.TypeRelationships `json:"type_relationships"`
	SQLMetadata       harvest.SQLMetadata       `json:"sql_metadata"`
}

func newExecutionResult(count int) *ExecutionResult {
	return &ExecutionResult{
		Outputs:           []ExecutionOutput{},
		ExecutionCount:    count,
		Completions:       []harvest.CompletionItem{},
		TypeRelationships: harvest.NewTypeRelationships(),
		SQLMetadata:       harvest.SQLMetadata{Tables: []string{}, Columns: []string{}, Functions: []string{}},
	}
}

// Harvest returns the metadata payloads as a harvest.Result.
func (r *ExecutionResult) Harvest() harvest.Result {
	return harvest.Result{
		Completions:   r.Completions,
		Relationships: r.TypeRelationships,
		SQL:           r.SQLMetadata,
	}
}

// Stdout concatenates every stdout output.
func (r *ExecutionResult) Stdout() string {
	var b strings.Builder
	for _, o := range r.Outputs {
		if o.Kind == OutputStdout {
			b.WriteString(o.Text)
		}
	}
	return b.String()
}

// Value returns the formatted result, if the code yielded one.
func (r *ExecutionResult) Value() (string, bool) {
	for _, o := range r.Outputs {
		if o.Kind == OutputResult {
			return o.Text, true
		}
	}
	return "", false
}

// Err returns the raised exception, or nil.
func (r *ExecutionResult) Err() *ExecutionError {
	for _, o := range r.Outputs {
		if o.Kind == OutputError {
			return o.Err
		}
	}
	return nil
}
