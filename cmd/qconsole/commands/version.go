package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/qconsole/display"
	"github.com/teranos/qconsole/version"
)

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show qconsole version information",
	Long:  `Display version, build time, commit hash, and platform information for the qconsole binary.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()

		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(cmd, info)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, info.String())
		if !info.Release {
			fmt.Fprintln(out, "Development build")
		}
		fmt.Fprintf(out, "Platform: %s\n", info.Platform)
		fmt.Fprintf(out, "Go: %s\n", info.GoVersion)
		return nil
	},
}

func init() {
	VersionCmd.Flags().BoolP("json", "j", false, "Output version info as JSON")
}
