package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/qconsole/complete"
	"github.com/teranos/qconsole/console"
	"github.com/teranos/qconsole/display"
	"github.com/teranos/qconsole/errors"
	"github.com/teranos/qconsole/logger"
	"github.com/teranos/qconsole/sym"
)

// CompleteCmd prints suggestions for a buffer
var CompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: sym.Complete + " Print completion suggestions for a buffer",
	Long: `Print the suggestions the console would offer at a cursor position.

The interpreter is started and --setup, if given, is executed first so its
names, types and SQL metadata are available. With --no-kernel only the
built-in vocabulary and configured schema sources are used.

Examples:
  qconsole complete --buffer 'import sqlite3; sqlite3.co'
  qconsole complete --buffer 'SELECT * FROM ord' --sql --no-kernel
  qconsole complete --setup 'import duckdb' --buffer 'duckdb.sql("x").' --json`,
	Args: cobra.NoArgs,
	RunE: runComplete,
}

var (
	completeBuffer   string
	completeCursor   int
	completeSQL      bool
	completeSetup    string
	completeNoKernel bool
)

func init() {
	CompleteCmd.Flags().StringVar(&completeBuffer, "buffer", "", "Text being edited")
	CompleteCmd.Flags().IntVar(&completeCursor, "cursor", -1, "Byte offset of the cursor (default: end of buffer)")
	CompleteCmd.Flags().BoolVar(&completeSQL, "sql", false, "Treat the buffer as SQL")
	CompleteCmd.Flags().StringVar(&completeSetup, "setup", "", "Code to execute before completing")
	CompleteCmd.Flags().BoolVar(&completeNoKernel, "no-kernel", false, "Complete without starting the interpreter")
	CompleteCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	_ = CompleteCmd.MarkFlagRequired("buffer")
}

// completion is the --json shape of the complete command.
type completion struct {
	Context     string        `json:"context"`
	Base        string        `json:"base,omitempty"`
	Prefix      string        `json:"prefix"`
	Start       int           `json:"start"`
	Tier        complete.Tier `json:"tier"`
	Suggestions []string      `json:"suggestions"`
}

func runComplete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithComponent(ctx, "complete")

	if completeNoKernel && completeSetup != "" {
		return errors.WithHint(errors.New("--setup needs the interpreter"), "drop --no-kernel")
	}

	s := newSession(ctx, cfg)
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warnw("Session close failed", logger.FieldError, err)
		}
	}()

	if completeNoKernel {
		s.Metadata().Apply(s.Engine())
	} else {
		if err := s.Start(ctx); err != nil {
			return errors.Wrap(err, "failed to start kernel")
		}
		if completeSetup != "" {
			res, err := s.Submit(ctx, completeSetup)
			if err != nil {
				return errors.Wrap(err, "setup failed")
			}
			if e := res.Err(); e != nil {
				logger.Warnw("Setup code raised", logger.FieldError, e.Error())
			}
		}
	}

	return printCompletion(cmd, suggest(s, completeBuffer, completeCursor, completeSQL))
}

// suggest refreshes s for buffer at cursor. A negative cursor means the end
// of the buffer.
func suggest(s *console.Session, buffer string, cursor int, sql bool) completion {
	if cursor < 0 || cursor > len(buffer) {
		cursor = len(buffer)
	}

	var w console.Word
	if sql {
		w = console.CompleteSQL(s.Engine(), buffer, cursor)
	} else {
		w = s.Refresh(buffer, cursor)
	}

	suggestions := s.Engine().Suggestions()
	if suggestions == nil || !s.Engine().Visible() {
		suggestions = []string{}
	}
	return completion{
		Context:     w.Context.String(),
		Base:        w.Base,
		Prefix:      w.Prefix,
		Start:       w.Start,
		Tier:        s.Engine().Tier(),
		Suggestions: suggestions,
	}
}

func printCompletion(cmd *cobra.Command, c completion) error {
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd, c)
	}
	for _, s := range c.Suggestions {
		fmt.Fprintln(cmd.OutOrStdout(), s)
	}
	return nil
}
