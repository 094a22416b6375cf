package contract

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/huangsam/shiftpoint/schema"
)

// Default values for configuration.
const (
	MaxTopK          = 1000
	MaxPrecision     = 4
	DefaultHorizon   = int(schema.Horizon7)
	DefaultFieldName = string(schema.MovingAverageField)
)

// DateLayout is the calendar date format accepted on the command line.
const DateLayout = time.DateOnly

// Default column names of a metric table.
const (
	DefaultDateColumn          = "Date"
	DefaultRawColumn           = "Value"
	DefaultMovingAverageColumn = "MA"
	DefaultForecastColumn      = "7 days Ahead Forecasted Values"
	DefaultDelta7Column        = "Abs 7 day Difference"
	DefaultDelta14Column       = "Abs 14 day Difference"
)

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// ColumnMap names the columns of a metric table.
type ColumnMap struct {
	Date          string
	Raw           string
	MovingAverage string
	Forecast      string
	Delta7        string
	Delta14       string
}

// MetricSource is one metric table to load.
type MetricSource struct {
	Name    string
	Path    string
	Columns ColumnMap
}

// ColumnsRawInput holds column overrides from the YAML config file.
type ColumnsRawInput struct {
	Date          string `mapstructure:"date"`
	Raw           string `mapstructure:"raw"`
	MovingAverage string `mapstructure:"moving-average"`
	Forecast      string `mapstructure:"forecast"`
	Delta7        string `mapstructure:"delta7"`
	Delta14       string `mapstructure:"delta14"`
}

// Config holds the runtime configuration.
// This struct remains the "final, validated" config.
type Config struct {
	Metrics        []MetricSource
	EventsPath     string
	EventCutoff    time.Time // zero means no cutoff
	EventSeparator string

	Field   schema.SeriesField
	MinSize int
	K       int // 0 = one breakpoint per event date
	Horizon schema.Horizon
	TopK    int

	Date    time.Time
	Trigger schema.Trigger
	Clicks  int
	Metric  string

	Output     schema.OutputMode
	OutputFile string
	Precision  int
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool

	Addr string

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	HistoryBackend   schema.DatabaseBackend
	HistoryDBConnect string // Please use env var as this is plaintext
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	Metrics          []string `mapstructure:"metrics"`
	Events           string   `mapstructure:"events"`
	EventCutoff      string   `mapstructure:"event-cutoff"`
	EventSeparator   string   `mapstructure:"event-separator"`
	Field            string   `mapstructure:"field"`
	MinSize          int      `mapstructure:"min-size"`
	TopK             int      `mapstructure:"top-k"`
	Output           string   `mapstructure:"output"`
	OutputFile       string   `mapstructure:"output-file"`
	Precision        int      `mapstructure:"precision"`
	Width            int      `mapstructure:"width"`
	Color            string   `mapstructure:"color"`
	CacheBackend     string   `mapstructure:"cache-backend"`
	CacheDBConnect   string   `mapstructure:"cache-db-connect"`
	HistoryBackend   string   `mapstructure:"history-backend"`
	HistoryDBConnect string   `mapstructure:"history-db-connect"`

	// --- Fields from subcommand flags ---
	K       int    `mapstructure:"k"`
	Horizon int    `mapstructure:"horizon"`
	Date    string `mapstructure:"date"`
	Trigger string `mapstructure:"trigger"`
	Clicks  int    `mapstructure:"clicks"`
	Metric  string `mapstructure:"metric"`
	Addr    string `mapstructure:"addr"`

	// --- Column mapping from config file ---
	Columns       ColumnsRawInput            `mapstructure:"columns"`
	MetricColumns map[string]ColumnsRawInput `mapstructure:"metric-columns"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Metrics != nil {
		clone.Metrics = slices.Clone(c.Metrics)
	}
	return &clone
}

// MetricNames returns the configured metric names in order.
func (c *Config) MetricNames() []string {
	names := make([]string, len(c.Metrics))
	for i, m := range c.Metrics {
		names[i] = m.Name
	}
	return names
}

// Params returns the parameters worth recording alongside a run.
func (c *Config) Params() map[string]any {
	params := map[string]any{
		"metrics":  c.MetricNames(),
		"events":   c.EventsPath,
		"field":    string(c.Field),
		"min_size": c.MinSize,
		"k":        c.K,
		"horizon":  int(c.Horizon),
		"top_k":    c.TopK,
	}
	if !c.EventCutoff.IsZero() {
		params["event_cutoff"] = c.EventCutoff.Format(DateLayout)
	}
	if !c.Date.IsZero() {
		params["date"] = c.Date.Format(DateLayout)
	}
	return params
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processDates(cfg, input); err != nil {
		return err
	}
	if err := processMetrics(cfg, input); err != nil {
		return err
	}
	return validateBackendConfigs(cfg, input)
}

// validateSimpleInputs processes and validates all scalar fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.EventsPath = input.Events
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.Metric = input.Metric
	cfg.Addr = input.Addr
	if cfg.Addr == "" {
		cfg.Addr = schema.DefaultAddr
	}
	cfg.EventSeparator = input.EventSeparator
	if cfg.EventSeparator == "" {
		cfg.EventSeparator = schema.DefaultEventSeparator
	}

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	cfg.Field = schema.SeriesField(strings.ToLower(input.Field))
	if _, ok := schema.ValidSeriesFields[cfg.Field]; !ok {
		return fmt.Errorf("invalid field '%s'. must be moving-average, raw", input.Field)
	}

	if input.MinSize < 1 {
		return fmt.Errorf("min-size must be at least 1 (received %d): %w", input.MinSize, schema.ErrParameterOutOfRange)
	}
	cfg.MinSize = input.MinSize

	if input.K < 0 {
		return fmt.Errorf("k must not be negative (received %d): %w", input.K, schema.ErrParameterOutOfRange)
	}
	cfg.K = input.K

	cfg.Horizon = schema.Horizon(input.Horizon)
	if !cfg.Horizon.Valid() {
		return fmt.Errorf("horizon must be 7 or 14 (received %d): %w", input.Horizon, schema.ErrParameterOutOfRange)
	}

	if input.TopK <= 0 || input.TopK > MaxTopK {
		return &schema.RangeError{Name: "top-k", Value: input.TopK, Min: 1, Max: MaxTopK}
	}
	cfg.TopK = input.TopK

	if input.Clicks < 0 {
		return fmt.Errorf("clicks must not be negative (received %d): %w", input.Clicks, schema.ErrParameterOutOfRange)
	}
	cfg.Clicks = input.Clicks
	cfg.Trigger = schema.ParseTrigger(input.Trigger)

	if input.Precision < 1 || input.Precision > MaxPrecision {
		return fmt.Errorf("precision must be between 1 and %d (received %d)", MaxPrecision, input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}
	return nil
}

// processDates parses the date-valued inputs.
func processDates(cfg *Config, input *ConfigRawInput) error {
	cutoff, err := ParseDateFlag("event-cutoff", input.EventCutoff)
	if err != nil {
		return err
	}
	cfg.EventCutoff = cutoff

	date, err := ParseDateFlag("date", input.Date)
	if err != nil {
		return err
	}
	cfg.Date = date
	return nil
}

// processMetrics parses name=path metric specs and resolves their column maps.
func processMetrics(cfg *Config, input *ConfigRawInput) error {
	base := mergeColumns(ColumnMap{
		Date:          DefaultDateColumn,
		Raw:           DefaultRawColumn,
		MovingAverage: DefaultMovingAverageColumn,
		Forecast:      DefaultForecastColumn,
		Delta7:        DefaultDelta7Column,
		Delta14:       DefaultDelta14Column,
	}, input.Columns)

	seen := make(map[string]struct{})
	cfg.Metrics = nil
	for _, spec := range input.Metrics {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		name, path, err := ParseMetricSpec(spec)
		if err != nil {
			return err
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("metric %q is configured more than once", name)
		}
		seen[name] = struct{}{}

		cols := base
		if override, ok := input.MetricColumns[name]; ok {
			cols = mergeColumns(cols, override)
		}
		cfg.Metrics = append(cfg.Metrics, MetricSource{Name: name, Path: path, Columns: cols})
	}

	for name := range maps.Keys(input.MetricColumns) {
		if _, ok := seen[name]; !ok && len(cfg.Metrics) > 0 {
			LogWarn("metric-columns", fmt.Errorf("override for unknown metric %q is ignored", name))
		}
	}

	if cfg.Metric != "" && len(cfg.Metrics) > 0 {
		if _, ok := seen[cfg.Metric]; !ok {
			return fmt.Errorf("%w: %q is not among %v", schema.ErrUnknownMetric, cfg.Metric, cfg.MetricNames())
		}
	}
	return nil
}

// ParseMetricSpec splits "name=path". A bare path is named after its file stem.
func ParseMetricSpec(spec string) (name, path string, err error) {
	if before, after, found := strings.Cut(spec, "="); found {
		name, path = strings.TrimSpace(before), strings.TrimSpace(after)
	} else {
		path = spec
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if name == "" || path == "" {
		return "", "", fmt.Errorf("invalid metric %q. must be name=path or path", spec)
	}
	return name, path, nil
}

// ParseDateFlag parses an optional calendar date. Empty input yields the zero time.
func ParseDateFlag(flag, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s value %q: %w", flag, value, schema.ErrMalformedDate)
	}
	return t, nil
}

func mergeColumns(base ColumnMap, raw ColumnsRawInput) ColumnMap {
	pick := func(cur, override string) string {
		if strings.TrimSpace(override) != "" {
			return override
		}
		return cur
	}
	return ColumnMap{
		Date:          pick(base.Date, raw.Date),
		Raw:           pick(base.Raw, raw.Raw),
		MovingAverage: pick(base.MovingAverage, raw.MovingAverage),
		Forecast:      pick(base.Forecast, raw.Forecast),
		Delta7:        pick(base.Delta7, raw.Delta7),
		Delta14:       pick(base.Delta14, raw.Delta14),
	}
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL, PostgreSQL and Redis backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	case schema.RedisBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, ":") {
			return fmt.Errorf("redis connection string must be host:port or a redis:// URL")
		}
	}
	return nil
}

// validateBackendConfigs validates cache and history backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if _, ok := schema.ValidCacheBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, redis, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}

	cfg.HistoryBackend = schema.DatabaseBackend(strings.ToLower(input.HistoryBackend))
	if cfg.HistoryBackend == "" {
		cfg.HistoryBackend = schema.NoneBackend
	}
	if _, ok := schema.ValidHistoryBackends[cfg.HistoryBackend]; !ok {
		return fmt.Errorf("invalid history backend '%s'. must be sqlite, mysql, postgresql, none", input.HistoryBackend)
	}
	cfg.HistoryDBConnect = input.HistoryDBConnect
	if err := ValidateDatabaseConnectionString(cfg.HistoryBackend, cfg.HistoryDBConnect); err != nil {
		return err
	}

	// Cache and history may not share one SQLite file.
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.HistoryBackend == schema.SQLiteBackend {
		cachePath := cfg.CacheDBConnect
		if cachePath == "" {
			cachePath = GetCacheDBFilePath()
		}
		historyPath := cfg.HistoryDBConnect
		if historyPath == "" {
			historyPath = GetHistoryDBFilePath()
		}
		if cachePath == historyPath {
			return fmt.Errorf("cache and history storage must use different SQLite database files. Both resolve to %q", cachePath)
		}
	}
	return nil
}

// ProcessProfilingConfig handles the profiling flag and sets up profiling configuration.
func ProcessProfilingConfig(profile *ProfileConfig, profilePrefix string) error {
	if profilePrefix != "" {
		profile.Enabled = true
		profile.Prefix = profilePrefix
	}
	return nil
}
