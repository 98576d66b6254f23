package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/qconsole/am"
	"github.com/teranos/qconsole/cmd/qconsole/commands"
	"github.com/teranos/qconsole/errors"
	"github.com/teranos/qconsole/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "qconsole",
	Short: "qconsole - interactive interpreter console with SQL-aware completion",
	Long: `qconsole - interactive interpreter console with SQL-aware completion.

qconsole drives an interpreter subprocess, harvests the names, types and SQL
schema it exposes after every execution, and offers completions from them.

Available commands:
  run       - Interactive console
  exec      - Execute a file or snippet once
  complete  - Print completion suggestions for a buffer
  lsp       - Language server on stdio
  am        - Manage configuration ("I am")
  version   - Show version information

Examples:
  qconsole run                          # Start the console
  qconsole exec -c 'print(1)'           # One-shot execution
  qconsole complete --buffer 'import s' # Suggestions at the end of a buffer
  qconsole am show                      # Show current configuration`,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			am.SetConfigFile(configPath)
		}

		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs := false
		if cfg, err := am.Load(); err == nil {
			jsonLogs = cfg.Log.JSON
		}
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.Debugw("Configuration loaded",
			"files", am.LoadedFiles(),
			"verbosity", logger.LevelName(verbosity))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file merged above the cascade")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ExecCmd)
	rootCmd.AddCommand(commands.CompleteCmd)
	rootCmd.AddCommand(commands.LspCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Cleanup()
	if err != nil {
		pterm.Error.Println(err)
		for _, hint := range errors.GetAllHints(err) {
			pterm.Info.Println(hint)
		}
		os.Exit(1)
	}
}
