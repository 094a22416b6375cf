package cmd

import (
	"github.com/huangsam/shiftpoint/core"
	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/spf13/cobra"
)

// impactCmd looks up the latest impact before a date.
var impactCmd = &cobra.Command{
	Use:   "impact",
	Short: "Show the latest event impact on or before a date.",
	Long: `Find the most recent mapped change point on or before --date for each metric.

Examples:
  shiftpoint impact -m covid=covid.csv -e events.csv --date 2020-04-01`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteImpact(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot run impact", err)
		}
	},
}
