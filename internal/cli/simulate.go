package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"coinwatch/internal/app"
)

var (
	simulateCoin   string
	simulateName   string
	simulatePrice  string
	simulateChange string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Evaluate a coin's rules against a synthetic quote and notify",
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := decimal.NewFromString(simulatePrice)
		if err != nil {
			return fmt.Errorf("invalid --price value: %w", err)
		}
		change, err := decimal.NewFromString(simulateChange)
		if err != nil {
			return fmt.Errorf("invalid --change value: %w", err)
		}

		_, err = getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			CoinID:    simulateCoin,
			Name:      simulateName,
			PriceUSD:  price,
			Change24h: change,
		})
		return err
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateCoin, "coin", "", "Coin id whose rules are evaluated")
	simulateCmd.Flags().StringVar(&simulateName, "name", "", "Display name used in the notification")
	simulateCmd.Flags().StringVar(&simulatePrice, "price", "0", "Synthetic USD price")
	simulateCmd.Flags().StringVar(&simulateChange, "change", "0", "Synthetic 24h change in percent")
	_ = simulateCmd.MarkFlagRequired("coin")
}
