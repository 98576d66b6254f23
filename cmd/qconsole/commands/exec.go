package commands

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/qconsole/display"
	"github.com/teranos/qconsole/errors"
	"github.com/teranos/qconsole/logger"
	"github.com/teranos/qconsole/sym"
)

// ExecCmd runs code once and prints what it produced
var ExecCmd = &cobra.Command{
	Use:   "exec [file]",
	Short: sym.Result + " Execute a file or snippet once",
	Long: `Execute code in a fresh interpreter and print its outputs.

The code comes from -c, from the named file, or from stdin when the file is "-".
With --json the full execution result, harvested metadata included, is printed.

Examples:
  qconsole exec script.py
  qconsole exec -c 'print(1 + 1)'
  echo 'import sqlite3' | qconsole exec - --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExec,
}

var execCode string

func init() {
	ExecCmd.Flags().StringVarP(&execCode, "code", "c", "", "Code to execute")
	ExecCmd.Flags().BoolP("json", "j", false, "Print the execution result as JSON")
}

func runExec(cmd *cobra.Command, args []string) error {
	code, err := execSource(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithComponent(ctx, "exec")

	s, err := startSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warnw("Session close failed", logger.FieldError, err)
		}
	}()

	res, err := s.Submit(ctx, code)
	if err != nil {
		return errors.Wrap(err, "execution failed")
	}

	if display.ShouldOutputJSON(cmd) {
		if err := display.OutputJSON(cmd, res); err != nil {
			return err
		}
	} else {
		renderResult(cmd.OutOrStdout(), res)
	}

	if !res.Success {
		cmd.SilenceUsage = true
		if e := res.Err(); e != nil {
			return errors.Newf("execution raised %s", e.Name)
		}
		return errors.New("execution failed")
	}
	return nil
}

// execSource picks the code to run from -c, a file argument or stdin.
func execSource(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case cmd.Flags().Changed("code") && len(args) > 0:
		return "", errors.WithHint(errors.New("both -c and a file were given"), "pass one or the other")
	case cmd.Flags().Changed("code"):
		return execCode, nil
	case len(args) == 0:
		return "", errors.WithHint(errors.New("nothing to execute"), "pass a file, '-' for stdin, or -c <code>")
	case args[0] == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", errors.Wrap(err, "failed to read stdin")
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", args[0])
	}
	return string(data), nil
}
