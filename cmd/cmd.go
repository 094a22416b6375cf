// Package cmd defines the command-line interface for shiftpoint.
package cmd

import (
	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(segmentCmd)
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(impactCmd)
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(historyCmd)

	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyStatusCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().StringSliceP("metrics", "m", nil, "Metric tables as name=path (repeatable, .csv or .parquet)")
	rootCmd.PersistentFlags().StringP("events", "e", "", "Path to the event table (Date, Event Description)")
	rootCmd.PersistentFlags().String("event-cutoff", "", "Drop events on or after this date (YYYY-MM-DD)")
	rootCmd.PersistentFlags().String("event-separator", schema.DefaultEventSeparator, "Separator between events sharing a date")
	rootCmd.PersistentFlags().String("field", contract.DefaultFieldName, "Series column to segment: moving-average or raw")
	rootCmd.PersistentFlags().Int("min-size", schema.DefaultMinSize, "Minimum segment length")
	rootCmd.PersistentFlags().Int("top-k", schema.DefaultTopK, "Number of ranked events per table")
	rootCmd.PersistentFlags().String("metric", "", "Restrict to one metric by name")
	rootCmd.PersistentFlags().Int("k", 0, "Number of change points (0 = one per distinct event date)")
	rootCmd.PersistentFlags().Int("horizon", contract.DefaultHorizon, "Forecast horizon in days: 7 or 14")
	rootCmd.PersistentFlags().String("date", "", "Calendar date (YYYY-MM-DD)")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", schema.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.SQLiteBackend), "Memo backend: sqlite or mysql or postgresql or redis or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Connection string for the memo backend (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("history-backend", "", "Run history backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("history-db-connect", "", "Connection string for run history (must differ from cache-db-connect)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of dispatchCmd to Viper
	dispatchCmd.Flags().String("trigger", string(schema.NoTrigger), "Control that fired: dateSelected or recomputeRanked or changePointCountChanged or none")
	dispatchCmd.Flags().Int("clicks", 1, "Click count of the ranking control")
	if err := viper.BindPFlags(dispatchCmd.Flags()); err != nil {
		contract.LogFatal("Error binding dispatch flags", err)
	}

	// Bind all flags of serveCmd to Viper
	serveCmd.Flags().String("addr", schema.DefaultAddr, "HTTP listen address")
	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		contract.LogFatal("Error binding serve flags", err)
	}

	// Bind all flags of historyMigrateCmd to Viper
	historyMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(historyMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding history migrate flags", err)
	}
}
