package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/internal/iocache"
	"github.com/huangsam/shiftpoint/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cacheSetup loads the minimal configuration needed for memo operations,
// skipping metric loading and the rest of the shared validation.
func cacheSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend := schema.DatabaseBackend(viper.GetString("cache-backend"))
	connStr := viper.GetString("cache-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	if err := iocache.InitStores(backend, connStr, "", ""); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	cfg.CacheBackend = backend
	cfg.CacheDBConnect = connStr
	return nil
}

// cacheSetupWrapper wraps cacheSetup to provide PreRunE for cache commands.
func cacheSetupWrapper(_ *cobra.Command, _ []string) error {
	return cacheSetup()
}

// sqlitePath returns connStr when set, otherwise the default file.
func sqlitePath(connStr, fallback string) string {
	if connStr != "" {
		return connStr
	}
	return fallback
}

// cacheCmd focused on memo management.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the segmentation memo",
	Long: `Manage the memo that stores finished segmentations.

Entries are keyed by a hash of the series values and the segmentation
parameters, so changed input never hits a stale entry.

Supported backends: SQLite (default), MySQL, PostgreSQL, Redis, or None

Examples:
  shiftpoint cache status
  shiftpoint cache clear`,
}

// cacheClearCmd clears the memo.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all memoized segmentations",
	Long: `Delete all memoized segmentations from the configured backend.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the memo table
For Redis: Deletes every memo key

Examples:
  SHIFTPOINT_CACHE_BACKEND=redis SHIFTPOINT_CACHE_DB_CONNECT="localhost:6379" shiftpoint cache clear`,
	PreRunE: cacheSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		// The open store holds the SQLite file.
		iocache.CloseCaching()
		path := sqlitePath(cfg.CacheDBConnect, contract.GetCacheDBFilePath())
		if err := iocache.ClearCache(cfg.CacheBackend, path, cfg.CacheDBConnect); err != nil {
			contract.LogFatal("Failed to clear cache", err)
		}
		fmt.Println("Cache cleared successfully.")
	},
}

// cacheStatusCmd shows memo status.
var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display memo statistics and connection details",
	PreRunE: cacheSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		store := iocache.Manager.GetMemoStore()
		if store == nil {
			contract.LogFatal("Failed to get cache status", fmt.Errorf("no memo store for backend %s", cfg.CacheBackend))
		}
		status, err := store.GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get cache status", err)
		}
		iocache.PrintCacheStatus(os.Stdout, status)
	},
}
