// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"time"

	"github.com/huangsam/shiftpoint/schema"
)

// CacheManager defines the interface for managing stores.
// This allows the storage layer to be mocked for testing.
type CacheManager interface {
	GetMemoStore() CacheStore
	GetHistoryStore() HistoryStore
}

// CacheStore defines the interface for memo data storage.
// This allows mocking the store for testing.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	Clear() error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// HistoryStore defines the interface for tracking runs and the impacts they ranked.
type HistoryStore interface {
	// BeginRun creates a new run and returns its unique ID
	BeginRun(command string, startTime time.Time, configParams map[string]any) (int64, error)

	// EndRun updates the run with completion data
	EndRun(runID int64, endTime time.Time, totalImpacts int) error

	// RecordImpacts stores the ranked impacts of one metric and horizon
	RecordImpacts(runID int64, metric string, rows []schema.ImpactRecord) error

	// GetStatus returns status information about the history store
	GetStatus() (schema.HistoryStatus, error)

	// GetAllRuns returns every recorded run
	GetAllRuns() ([]schema.RunRecord, error)

	// GetAllImpacts returns every recorded impact row
	GetAllImpacts() ([]schema.ImpactRow, error)

	// Clear removes all runs and impacts
	Clear() error

	// Close closes the underlying connection
	Close() error
}
