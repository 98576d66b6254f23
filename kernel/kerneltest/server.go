package kerneltest

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/teranos/qconsole/harvest"
	"github.com/teranos/qconsole/kernel"
)

// Server speaks the interpreter side of the protocol over a pair of
// streams.
type Server struct {
	Interpreter *Interpreter
	// Ready is the handshake line. Empty means kernel.ReadyToken.
	Ready string
	// Scripts maps request code to reply lines written verbatim instead of
	// evaluating the code.
	Scripts map[string][]string
	// Providers supply SQL metadata to every harvest.
	Providers []harvest.SchemaProvider
	// SkipHarvest omits the metadata blocks.
	SkipHarvest bool
}

// NewServer returns a server around a fresh Interpreter.
func NewServer() *Server {
	return &Server{Interpreter: NewInterpreter()}
}

// Serve writes the handshake and answers requests until r ends, ctx is
// done or a request calls exit().
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	out := bufio.NewWriter(w)
	ready := s.Ready
	if ready == "" {
		ready = kernel.ReadyToken
	}
	if err := writeLines(out, ready); err != nil {
		return err
	}

	in := bufio.NewReader(r)
	for ctx.Err() == nil {
		code, err := readRequest(in)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if lines, ok := s.Scripts[code]; ok {
			if err := writeLines(out, lines...); err != nil {
				return err
			}
			continue
		}

		outcome := s.Interpreter.Eval(ctx, code)
		if outcome.Exit {
			return nil
		}
		if err := s.reply(ctx, out, outcome); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (s *Server) reply(ctx context.Context, out *bufio.Writer, o Outcome) error {
	var blocks []any
	if o.Stdout != "" {
		blocks = append(blocks, map[string]any{"type": kernel.BlockStdout, "data": o.Stdout})
	}
	if !s.SkipHarvest {
		res := harvest.Harvest(ctx, s.Interpreter, s.Providers, nil)
		blocks = append(blocks, HarvestBlocks(res)...)
	}
	switch {
	case o.ErrName != "":
		blocks = append(blocks, map[string]any{
			"type":      kernel.BlockError,
			"ename":     o.ErrName,
			"evalue":    o.ErrValue,
			"traceback": []string{"Traceback (most recent call last):", o.ErrName + ": " + o.ErrValue},
		})
	case o.HasValue:
		blocks = append(blocks, map[string]any{"type": kernel.BlockResult, "data": o.Value})
	default:
		blocks = append(blocks, map[string]any{"type": kernel.BlockSuccess})
	}

	for _, b := range blocks {
		lines, err := Block(b)
		if err != nil {
			return err
		}
		if err := writeLines(out, lines...); err != nil {
			return err
		}
	}
	return nil
}

// HarvestBlocks returns the three metadata blocks for res in protocol order.
func HarvestBlocks(res harvest.Result) []any {
	completions := res.Completions
	if completions == nil {
		completions = []harvest.CompletionItem{}
	}
	return []any{
		map[string]any{"type": kernel.BlockCompletions, "data": completions},
		map[string]any{"type": kernel.BlockTypeRelationships, "data": res.Relationships},
		map[string]any{"type": kernel.BlockSQLMetadata, "data": res.SQL},
	}
}

// Block frames v as an output block: start line, JSON line, end line.
func Block(v any) ([]string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []string{kernel.OutputStart, string(data), kernel.OutputEnd}, nil
}

// MustBlock is Block for values known to encode.
func MustBlock(v any) []string {
	lines, err := Block(v)
	if err != nil {
		panic(err)
	}
	return lines
}

func readRequest(r *bufio.Reader) (string, error) {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", io.EOF
		}
		if strings.TrimRight(line, "\r\n") == kernel.ExecStart {
			break
		}
	}
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", io.EOF
		}
		line = strings.TrimRight(line, "\r\n")
		if line == kernel.ExecEnd {
			return strings.Join(lines, "\n"), nil
		}
		lines = append(lines, line)
	}
}

func writeLines(w *bufio.Writer, lines ...string) error {
	for _, l := range lines {
		w.WriteString(l)
		w.WriteByte('\n')
	}
	return w.Flush()
}
