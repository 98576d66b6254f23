package commands

import (
	"fmt"
	"os"
	"slices"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/qconsole/am"
	"github.com/teranos/qconsole/display"
	"github.com/teranos/qconsole/errors"
	"github.com/teranos/qconsole/sym"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: sym.Config + " Manage qconsole configuration",
	Long: sym.Config + ` am - Manage qconsole configuration

Configuration sources (later overrides earlier):
1. Default values
2. System config (/etc/qconsole/config.toml)
3. User config (~/.qconsole/config.toml)
4. Project config (./qconsole.toml, searched upward)
5. --config file
6. Environment variables (QCONSOLE_* prefix)

Examples:
  qconsole am show                          # Show current configuration
  qconsole am show --format json            # Show configuration as JSON
  qconsole am get kernel.interpreter        # Get a single value
  qconsole am set autocomplete.window_size 15
  qconsole am validate                      # Validate current configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective qconsole configuration after merging all sources",
	Args:  cobra.NoArgs,
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., kernel.interpreter, schema.sqlite)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a configuration value",
	Long: `Write a value into the user config file, or into --file.

The value is read as a TOML value when it parses as one (30, true,
["a.db", "b.db"]) and as a plain string otherwise. The previous file is
kept as a .back1 backup.`,
	Args: cobra.ExactArgs(2),
	RunE: runAmSet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Long:  "Validate that the current qconsole configuration is valid",
	Args:  cobra.NoArgs,
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long: `Show the configuration cascade, which files were merged, and which
source supplied each setting.`,
	Args: cobra.NoArgs,
	RunE: runAmWhere,
}

var (
	configFormat string
	setFile      string
)

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	amSetCmd.Flags().StringVar(&setFile, "file", "", "Config file to write (default: user config)")
	amWhereCmd.Flags().BoolP("json", "j", false, "Output as JSON")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	format, err := display.ParseFormat(configFormat)
	if err != nil {
		return err
	}

	if _, err := am.Load(); err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	if format != display.FormatJSON {
		fmt.Fprintln(cmd.OutOrStdout(), "# qconsole configuration")
	}
	return display.Write(cmd.OutOrStdout(), am.GetViper().AllSettings(), format)
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	if _, err := am.Load(); err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if !slices.Contains(am.KnownKeys(), key) && !am.IsSet(key) {
		return errors.WithHint(errors.Newf("configuration key %q not found", key),
			"run 'qconsole am where' to list keys")
	}

	fmt.Fprintln(cmd.OutOrStdout(), display.Scalar(am.Get(key)))
	return nil
}

func runAmSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], am.ParseValue(args[1])

	path := setFile
	if path == "" {
		path = am.UserConfigPath()
		if path == "" {
			return errors.New("could not determine home directory")
		}
	}
	if err := am.SetValue(path, key, value); err != nil {
		return err
	}
	am.Reset()

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to reload config")
	}
	if err := cfg.Validate(); err != nil {
		pterm.Warning.Printfln("%s was written but the configuration is now invalid: %v", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s %s\n", pterm.LightGreen(sym.OK), key,
		display.Scalar(value), pterm.Gray("("+path+")"))
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Configuration is valid\n", sym.OK)
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	intro, err := am.GetConfigIntrospection()
	if err != nil {
		return errors.Wrap(err, "failed to get config introspection")
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd, intro)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(out, "  1. [DEFAULT]  Built-in defaults")
	fmt.Fprintf(out, "  2. [SYSTEM]   %s %s\n", am.SystemConfigPath(), fileState(am.SystemConfigPath(), intro.Files))
	fmt.Fprintf(out, "  3. [USER]     %s %s\n", am.UserConfigPath(), fileState(am.UserConfigPath(), intro.Files))
	fmt.Fprintf(out, "  4. [PROJECT]  ./%s (searches up directories)\n", am.ConfigFileName)
	fmt.Fprintln(out, "  5. [FLAG]     --config")
	fmt.Fprintf(out, "  6. [ENV]      %s_* environment variables\n", am.EnvPrefix)
	fmt.Fprintln(out)

	if len(intro.Files) > 0 {
		fmt.Fprintln(out, "Merged files:")
		for _, f := range intro.Files {
			fmt.Fprintf(out, "  %s\n", f)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "Active configuration:")
	for _, setting := range intro.Settings {
		value := display.Scalar(setting.Value)
		if len(value) > 50 {
			value = value[:47] + "..."
		}
		origin := string(setting.Source)
		if setting.SourcePath != "" && setting.Source != am.SourceDefault {
			origin += " " + setting.SourcePath
		}
		fmt.Fprintf(out, "  %s = %s %s\n", setting.Key, value, pterm.Gray("["+origin+"]"))
	}
	return nil
}

func fileState(path string, loaded []string) string {
	switch {
	case slices.Contains(loaded, path):
		return pterm.LightGreen("(loaded)")
	case fileExists(path):
		return pterm.Yellow("(present, not loaded)")
	}
	return pterm.Gray("(missing)")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
