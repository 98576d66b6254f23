package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/teranos/qconsole/logger"
	"github.com/teranos/qconsole/lsp"
	"github.com/teranos/qconsole/sym"
)

// LspCmd serves completions to editors
var LspCmd = &cobra.Command{
	Use:   "lsp",
	Short: sym.Complete + " Run the language server on stdio",
	Long: `Start an interpreter and serve textDocument/completion over stdin/stdout.

Completions come from what the interpreter harvested at startup and from the
configured schema sources, which are reloaded when the config file changes.
Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runLsp,
}

func runLsp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithComponent(ctx, "lsp")

	s, err := startSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warnw("Session close failed", logger.FieldError, err)
		}
	}()
	stop := watchSchema(ctx, s)
	defer stop()

	return lsp.ServeStdio(s, logger.ComponentLogger("lsp"))
}
