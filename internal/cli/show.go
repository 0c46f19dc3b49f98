package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"govcontract-signals/internal/app"
)

var (
	showLimit     int
	showMinImpact float64
	showTicker    string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent signals",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:     showLimit,
			MinImpact: showMinImpact,
			Ticker:    showTicker,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of signals to display")
	showCmd.Flags().Float64Var(&showMinImpact, "min-impact", 0, "Only show signals at or above this impact ratio")
	showCmd.Flags().StringVar(&showTicker, "ticker", "", "Only show signals for this ticker")
}
