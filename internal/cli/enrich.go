package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var enrichLimit int

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Backfill price evolution on signals missing price data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if enrichLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().Enrich(cmd.Context(), enrichLimit)
	},
}

func init() {
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 100, "Maximum number of signals to backfill")
}
