package kernel

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/teranos/qconsole/errors"
	"github.com/teranos/qconsole/harvest"
)

// Protocol sentinels. Each occupies a whole line.
const (
	ReadyToken  = "QCONSOLE_KERNEL_READY"
	ExecStart   = "QCONSOLE_EXEC_START"
	ExecEnd     = "QCONSOLE_EXEC_END"
	OutputStart = "QCONSOLE_OUTPUT_START"
	OutputEnd   = "QCONSOLE_OUTPUT_END"
)

// Block type discriminators.
const (
	BlockStdout            = "stdout"
	BlockResult            = "result"
	BlockSuccess           = "success"
	BlockError             = "error"
	BlockCompletions       = "completions"
	BlockTypeRelationships = "type_relationships"
	BlockSQLMetadata       = "sql_metadata"
)

// SplitCode normalizes line endings and splits code into protocol lines.
// A trailing newline does not produce an empty last line.
func SplitCode(code string) []string {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	code = strings.ReplaceAll(code, "\r", "\n")
	code = strings.TrimSuffix(code, "\n")
	if code == "" {
		return nil
	}
	return strings.Split(code, "\n")
}

// writeRequest frames code between the exec sentinels and flushes.
func writeRequest(w io.Writer, code string) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(ExecStart + "\n")
	for _, line := range SplitCode(code) {
		bw.WriteString(line)
		bw.WriteByte('\n')
	}
	bw.WriteString(ExecEnd + "\n")
	return bw.Flush()
}

// block is one decoded structured-data line. Payload fields stay raw so a
// mistyped field degrades that field only.
type block struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	EName     json.RawMessage `json:"ename"`
	EValue    json.RawMessage `json:"evalue"`
	Traceback json.RawMessage `json:"traceback"`
}

func decodeBlock(line string) (*block, error) {
	var b block
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &b); err != nil {
		return nil, errors.MarkProtocol(errors.WithDetailf(err, "line: %q", truncate(line, 200)), "decode output block")
	}
	return &b, nil
}

// terminal reports whether the block ends the read loop for one request.
func (b *block) terminal() bool {
	switch b.Type {
	case BlockStdout, BlockCompletions, BlockTypeRelationships, BlockSQLMetadata:
		return false
	}
	return true
}

// apply folds b into res. Metadata blocks replace what earlier blocks of
// the same kind reported; undecodable payloads keep the previous value.
func (b *block) apply(res *ExecutionResult) error {
	switch b.Type {
	case BlockStdout:
		if text, ok := rawString(b.Data); ok {
			res.Outputs = append(res.Outputs, Stdout(text))
		}

	case BlockResult:
		text, ok := rawString(b.Data)
		if !ok {
			text = rawText(b.Data)
		}
		res.Outputs = append(res.Outputs, Result(text))
		res.Success = true

	case BlockSuccess:
		res.Success = true

	case BlockError:
		name, ok := rawString(b.EName)
		if !ok {
			name = "Error"
		}
		value, _ := rawString(b.EValue)
		res.Outputs = append(res.Outputs, Error(name, value, rawStrings(b.Traceback)))
		res.Success = false

	case BlockCompletions:
		var items []json.RawMessage
		if err := json.Unmarshal(b.Data, &items); err != nil {
			return errors.Wrap(err, "decode completions")
		}
		completions := make([]harvest.CompletionItem, 0, len(items))
		for _, raw := range items {
			var item harvest.CompletionItem
			if json.Unmarshal(raw, &item) != nil || item.Name == "" {
				continue
			}
			completions = append(completions, item)
		}
		res.Completions = completions

	case BlockTypeRelationships:
		var rel harvest.TypeRelationships
		if err := json.Unmarshal(b.Data, &rel); err != nil {
			return errors.Wrap(err, "decode type relationships")
		}
		if rel.ReturnTypes == nil {
			rel.ReturnTypes = make(map[string]string)
		}
		if rel.TypeMethods == nil {
			rel.TypeMethods = make(map[string][]string)
		}
		res.TypeRelationships = rel

	case BlockSQLMetadata:
		var md harvest.SQLMetadata
		if err := json.Unmarshal(b.Data, &md); err != nil {
			return errors.Wrap(err, "decode sql metadata")
		}
		res.SQLMetadata = harvest.SQLMetadata{}.Merge(md)
		if res.SQLMetadata.Tables == nil {
			res.SQLMetadata.Tables = []string{}
		}
		if res.SQLMetadata.Columns == nil {
			res.SQLMetadata.Columns = []string{}
		}
		if res.SQLMetadata.Functions == nil {
			res.SQLMetadata.Functions = []string{}
		}
	}
	return nil
}

func rawString(raw json.RawMessage) (string, bool) {
	var s *string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil || s == nil {
		return "", false
	}
	return *s, true
}

// rawText renders a non-string payload as its JSON text. Missing or null
// payloads render empty.
func rawText(raw json.RawMessage) string {
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}

func rawStrings(raw json.RawMessage) []string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := rawString(item); ok {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
