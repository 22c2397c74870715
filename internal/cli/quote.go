package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"coinwatch/internal/app"
)

var (
	topPage    int
	topPerPage int
)

var quoteCmd = &cobra.Command{
	Use:   "quote <id|symbol|address>",
	Short: "Resolve a coin and print its USD price",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Quote(cmd.Context(), args[0])
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the coin directory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Search(cmd.Context(), strings.Join(args, " "))
	},
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List coins by market cap",
	RunE: func(cmd *cobra.Command, args []string) error {
		if topPage <= 0 {
			return fmt.Errorf("--page must be greater than zero")
		}
		if topPerPage <= 0 || topPerPage > 250 {
			return fmt.Errorf("--per-page must be between 1 and 250")
		}
		return getApp().Top(cmd.Context(), app.TopOptions{Page: topPage, PerPage: topPerPage})
	},
}

func init() {
	topCmd.Flags().IntVar(&topPage, "page", 1, "Page number")
	topCmd.Flags().IntVar(&topPerPage, "per-page", 50, "Coins per page")
}
