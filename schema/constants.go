package schema

import (
	"fmt"
	"strings"
)

// Custom types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for caching and history.
	DatabaseBackend string

	// SeriesField names the numeric column used for segmentation.
	SeriesField string

	// Trigger names the control that fired a dispatch request.
	Trigger string

	// TraceKind describes how a chart trace is drawn by the presentation layer.
	TraceKind string

	// Horizon is the forecast look-ahead window in days.
	Horizon int
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	RedisBackend      DatabaseBackend = "redis" // cache only
	NoneBackend       DatabaseBackend = "none"
)

// Segmentable columns.
const (
	MovingAverageField SeriesField = "moving-average" // default
	RawField           SeriesField = "raw"
)

// Dispatch triggers.
const (
	DateSelectedTrigger            Trigger = "dateSelected"
	RecomputeRankedTrigger         Trigger = "recomputeRanked"
	ChangePointCountChangedTrigger Trigger = "changePointCountChanged"
	NoTrigger                      Trigger = "none"
)

// Trace kinds.
const (
	LineTrace   TraceKind = "line"
	BarTrace    TraceKind = "bar"
	MarkerTrace TraceKind = "marker"
)

// Supported horizons.
const (
	Horizon7  Horizon = 7
	Horizon14 Horizon = 14
)

// Defaults shared by config and core.
const (
	DefaultEventSeparator = "----> \n"
	DefaultTopK           = 10
	DefaultMinSize        = 1
	DefaultPrecision      = 2
	DefaultAddr           = ":8080"
)

// AllHorizons returns the supported horizons in ascending order.
var AllHorizons = []Horizon{Horizon7, Horizon14}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidCacheBackends lists the backends usable for the segmentation memo.
var ValidCacheBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	RedisBackend:      {},
	NoneBackend:       {},
}

// ValidHistoryBackends lists the backends usable for run history.
var ValidHistoryBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidSeriesFields lists all segmentable columns.
var ValidSeriesFields = map[SeriesField]struct{}{
	MovingAverageField: {},
	RawField:           {},
}

// Valid reports whether h is a supported horizon.
func (h Horizon) Valid() bool {
	return h == Horizon7 || h == Horizon14
}

// String renders the horizon as a column label.
func (h Horizon) String() string {
	return fmt.Sprintf("%dd", int(h))
}

// ParseTrigger converts an edge-supplied trigger name into a Trigger.
// Unknown or empty names resolve to NoTrigger.
func ParseTrigger(s string) Trigger {
	switch strings.TrimSpace(s) {
	case string(DateSelectedTrigger), "date-selected", "date":
		return DateSelectedTrigger
	case string(RecomputeRankedTrigger), "recompute-ranked", "rank":
		return RecomputeRankedTrigger
	case string(ChangePointCountChangedTrigger), "change-point-count-changed", "k":
		return ChangePointCountChangedTrigger
	default:
		return NoTrigger
	}
}
