package cli

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the detection service on a schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context())
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Execute a single detection cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RunOnce(cmd.Context())
	},
}
