package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/internal/iocache"
	"github.com/huangsam/shiftpoint/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Set through -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	// rootCtx is handed to every executor.
	rootCtx = context.Background()

	// cfg is the validated configuration built from input.
	cfg = &contract.Config{}

	// input is what viper resolves from defaults, file, env and flags.
	input = &contract.ConfigRawInput{}

	profile = &contract.ProfileConfig{}

	// cacheManager is injected by main.
	cacheManager contract.CacheManager
)

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "shiftpoint",
	Short:              "Find the change points in daily metrics and rank the events behind them.",
	Long:               `Shiftpoint segments daily metrics into stable regimes and ranks dated events by how far the metric moved away from its forecast.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// configDefaults mirror the flag defaults so file and env values resolve the same way.
var configDefaults = map[string]any{
	"field":              contract.DefaultFieldName,
	"min-size":           schema.DefaultMinSize,
	"top-k":              schema.DefaultTopK,
	"horizon":            contract.DefaultHorizon,
	"precision":          schema.DefaultPrecision,
	"output":             schema.TextOut,
	"event-separator":    schema.DefaultEventSeparator,
	"addr":               schema.DefaultAddr,
	"clicks":             1,
	"cache-backend":      schema.SQLiteBackend,
	"cache-db-connect":   "",
	"history-backend":    "",
	"history-db-connect": "",
	"color":              "yes",
}

// initConfig points viper at the config file and SHIFTPOINT_* variables.
func initConfig() {
	useConfigFile()
	viper.SetEnvPrefix("SHIFTPOINT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	for key, value := range configDefaults {
		viper.SetDefault(key, value)
	}
}

// useConfigFile selects --config, or .shiftpoint.yaml in the working or home directory.
func useConfigFile() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		return
	}
	viper.SetConfigName(".shiftpoint")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME")
}

// loadConfigFile reads the config file. A missing file is not an error.
func loadConfigFile() error {
	useConfigFile()
	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// sharedSetup resolves and validates the full configuration, then opens the stores.
func sharedSetup(_ context.Context, _ *cobra.Command, _ []string) error {
	if err := contract.ProcessProfilingConfig(profile, viper.GetString("profile")); err != nil {
		return fmt.Errorf("failed to process profiling config: %w", err)
	}
	if profile.Enabled && activeProfiler == nil {
		p, err := startProfiling(profile)
		if err != nil {
			return fmt.Errorf("failed to start profiling: %w", err)
		}
		activeProfiler = p
	}

	if err := loadConfigFile(); err != nil {
		return err
	}
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}

	if err := iocache.InitStores(cfg.CacheBackend, cfg.CacheDBConnect, cfg.HistoryBackend, cfg.HistoryDBConnect); err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	return nil
}

// sharedSetupWrapper adapts sharedSetup to Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetCacheManager sets the global cache manager.
func SetCacheManager(mgr contract.CacheManager) {
	cacheManager = mgr
}
