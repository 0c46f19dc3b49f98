package cli

import (
	"github.com/spf13/cobra"

	"govcontract-signals/internal/app"
)

var seedTickers []string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the company reference table from market data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Seed(cmd.Context(), app.SeedOptions{Tickers: seedTickers})
	},
}

func init() {
	seedCmd.Flags().StringSliceVar(&seedTickers, "tickers", nil, "Tickers to seed (defaults to the built-in contractor universe)")
}
