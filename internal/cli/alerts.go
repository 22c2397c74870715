package cli

import (
	"github.com/spf13/cobra"

	"coinwatch/internal/app"
)

var alertsCoin string

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage alert rules",
}

var alertsAddCmd = &cobra.Command{
	Use:   "add <coin-id> <kind> <threshold>",
	Short: "Add a rule (kinds: price_at_least, price_at_most, change24h_at_least, change24h_at_most)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := getApp().AddAlert(cmd.Context(), app.AlertInput{CoinID: args[0], Kind: args[1], Threshold: args[2]})
		return err
	},
}

var alertsListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List alert rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListAlerts(cmd.Context(), alertsCoin)
	},
}

var alertsRemoveCmd = &cobra.Command{
	Use:     "rm <rule-id>",
	Aliases: []string{"remove"},
	Short:   "Remove an alert rule",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RemoveAlert(cmd.Context(), args[0])
	},
}

func init() {
	alertsListCmd.Flags().StringVar(&alertsCoin, "coin", "", "Only show rules for this coin id")

	alertsCmd.AddCommand(alertsAddCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsRemoveCmd)
}
