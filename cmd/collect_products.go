package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/tokradar/tokradar/pkg/pipeline"
)

// collect products: explicit form of the default collect run
var collectProductsCmd = &cobra.Command{
	Use:   "products",
	Short: "Collect trending products into today's snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCollect(cmd, "products", pipeline.DailyKey(time.Now()))
	},
}

func init() {
	collectCmd.AddCommand(collectProductsCmd)
	// Reuse common flags from parent via cobra's flag inheritance
}
