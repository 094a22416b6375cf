package cmd

import (
	"github.com/huangsam/shiftpoint/core"
	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/spf13/cobra"
)

// dispatchCmd runs one dashboard callback from the command line.
var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run the pipeline selected by a trigger and print charts and tables.",
	Long: `Resolve a trigger into one request and print the resulting bundle.

Triggers:
  dateSelected             overlay the latest impact on or before --date
  recomputeRanked          top --top-k impact tables at both horizons
  changePointCountChanged  breakpoint markers with --k change points
  none                     base charts only

Examples:
  shiftpoint dispatch -m covid=covid.csv -e events.csv --trigger recomputeRanked --output json
  shiftpoint dispatch -m covid=covid.csv --trigger changePointCountChanged --k 4`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteDispatch(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot run dispatch", err)
		}
	},
}
