package cmd

import (
	"runtime"

	"github.com/spf13/cobra"
)

// versionCmd prints build metadata for bug reports.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("shiftpoint %s (commit %s, built %s)\n", version, commit, date)
		cmd.Printf("%s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
