package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/tokradar/tokradar/pkg/pipeline"
)

// collect monthly: products over a 30-day window, keyed by month so the
// snapshot gets replaced on every run within the same month.
var collectMonthlyCmd = &cobra.Command{
	Use:   "monthly",
	Short: "Collect the monthly products rollup",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !cmd.Flags().Changed("days") {
			cmd.Flags().Set("days", "30")
		}
		return runCollect(cmd, "products", pipeline.MonthlyKey(time.Now()))
	},
}

func init() {
	collectCmd.AddCommand(collectMonthlyCmd)
}
