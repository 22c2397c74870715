package cli

import (
	"github.com/spf13/cobra"

	"coinwatch/internal/app"
)

var (
	exportPNGPath string
	exportCSVPath string
	exportRefresh bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the ticker snapshot as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath: exportPNGPath,
			CSVPath: exportCSVPath,
			Refresh: exportRefresh,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().BoolVar(&exportRefresh, "refresh", false, "Fetch fresh prices before exporting")
}
