package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"coinwatch/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "coinwatch %s\n", version.Version)
		fmt.Fprintf(out, "commit: %s\nbuilt: %s\nuser-agent: %s\n", version.Commit, version.BuildDate, version.UserAgent())
	},
}
