package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/tokradar/tokradar/pkg/pipeline"
)

// collect videos: same accumulation loop against the video feed
var collectVideosCmd = &cobra.Command{
	Use:   "videos",
	Short: "Collect trending videos into today's snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCollect(cmd, "videos", pipeline.DailyKey(time.Now()))
	},
}

func init() {
	collectCmd.AddCommand(collectVideosCmd)
}
