package cmd

import (
	"github.com/huangsam/shiftpoint/core"
	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/spf13/cobra"
)

// rankCmd prints the top events of each metric.
var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank events by the forecast deviation they caused.",
	Long: `Map each event to the first change point inside its date range and rank the
events by the absolute forecast deviation at that point.

Examples:
  # Top 10 events at the 7-day horizon
  shiftpoint rank -m covid=covid.csv -e events.csv

  # Top 5 events at the 14-day horizon as CSV
  shiftpoint rank -m covid=covid.csv -e events.csv --horizon 14 --top-k 5 --output csv`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteRank(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot run rank", err)
		}
	},
}
