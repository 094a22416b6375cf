package cmd

import (
	"github.com/huangsam/shiftpoint/core"
	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/spf13/cobra"
)

// segmentCmd prints the change points of each metric.
var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Find the change points of each metric.",
	Long: `Split each metric into k+1 segments that minimize the squared error around
each segment mean, then list the breakpoints with the event active on that day.

Without --k the number of breakpoints equals the number of distinct event dates.

Examples:
  # One breakpoint per event date
  shiftpoint segment -m covid=covid.csv -e events.csv

  # Exactly three breakpoints on the raw values
  shiftpoint segment -m covid=covid.csv --k 3 --field raw`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteSegment(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot run segment", err)
		}
	},
}
