package cli

import (
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage the watch list",
}

var watchAddCmd = &cobra.Command{
	Use:   "add <id|symbol|address>",
	Short: "Resolve a coin and add it to the watch list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().WatchAdd(cmd.Context(), args[0])
	},
}

var watchListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "Print the watch list",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().WatchList(cmd.Context())
	},
}

var watchRemoveCmd = &cobra.Command{
	Use:     "rm <coin-id>",
	Aliases: []string{"remove"},
	Short:   "Remove a coin from the watch list",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().WatchRemove(cmd.Context(), args[0])
	},
}

func init() {
	watchCmd.AddCommand(watchAddCmd)
	watchCmd.AddCommand(watchListCmd)
	watchCmd.AddCommand(watchRemoveCmd)
}
