// Package parquet provides row types and helpers for reading series from and
// exporting results to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/shiftpoint/schema"
	"github.com/parquet-go/parquet-go"
)

// Run maps to the shiftpoint_runs table.
type Run struct {
	RunID         int64      `parquet:"run_id,snappy"`
	Command       string     `parquet:"command,snappy,dict"`
	StartTime     time.Time  `parquet:"start_time,snappy"`
	EndTime       *time.Time `parquet:"end_time,optional,snappy"`
	RunDurationMs *int64     `parquet:"run_duration_ms,optional,snappy"`
	TotalImpacts  *int32     `parquet:"total_impacts,optional,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// Impact maps to the shiftpoint_impacts table.
type Impact struct {
	RunID         int64     `parquet:"run_id,snappy"`
	Metric        string    `parquet:"metric,snappy,dict"`
	Horizon       int32     `parquet:"horizon,snappy"`
	RankPos       int32     `parquet:"rank_pos,snappy"`
	EventDate     time.Time `parquet:"event_date,snappy"`
	AbsoluteDelta float64   `parquet:"absolute_delta,snappy"`
	Event         string    `parquet:"event,snappy"`
}

// RankedImpact is one row of a ranking written by the parquet output mode.
type RankedImpact struct {
	Metric        string    `parquet:"metric,snappy,dict"`
	Rank          int32     `parquet:"rank,snappy"`
	Date          time.Time `parquet:"date,snappy"`
	Horizon       int32     `parquet:"horizon,snappy"`
	AbsoluteDelta float64   `parquet:"absolute_delta,snappy"`
	Event         string    `parquet:"event,snappy"`
}

// SeriesRow is one daily record of a metric stored in Parquet.
// Raw is optional; a missing value falls back to the moving average on read.
type SeriesRow struct {
	Date          time.Time `parquet:"date,snappy"`
	Raw           *float64  `parquet:"raw,optional,snappy"`
	MovingAverage float64   `parquet:"moving_average,snappy"`
	Forecast      float64   `parquet:"forecast,snappy"`
	Delta7        float64   `parquet:"delta7,snappy"`
	Delta14       float64   `parquet:"delta14,snappy"`
}

// write streams rows of any tagged struct type to w.
func write[T any](w io.Writer, data []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

func writeFile[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(file, data); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteRunsParquet writes runs to a Parquet file.
func WriteRunsParquet(data []Run, outputPath string) error {
	return writeFile(data, outputPath)
}

// WriteImpactsParquet writes impact rows to a Parquet file.
func WriteImpactsParquet(data []Impact, outputPath string) error {
	return writeFile(data, outputPath)
}

// WriteSeriesParquet writes series rows to a Parquet file.
func WriteSeriesParquet(data []SeriesRow, outputPath string) error {
	return writeFile(data, outputPath)
}

// WriteRankedImpacts writes a ranking to w.
func WriteRankedImpacts(w io.Writer, data []RankedImpact) error {
	return write(w, data)
}

// ReadSeriesParquet reads every SeriesRow from a Parquet file.
func ReadSeriesParquet(path string) ([]SeriesRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	reader := parquet.NewGenericReader[SeriesRow](file)
	defer func() { _ = reader.Close() }()

	rows := make([]SeriesRow, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows[:n], nil
}

// ConvertRunRecords converts stored runs for Parquet export.
func ConvertRunRecords(records []schema.RunRecord) []Run {
	result := make([]Run, len(records))
	for i, record := range records {
		run := Run{
			RunID:         record.RunID,
			Command:       record.Command,
			StartTime:     record.StartTime,
			EndTime:       record.EndTime,
			RunDurationMs: record.RunDurationMs,
		}
		if record.TotalImpacts != nil {
			total := int32(*record.TotalImpacts)
			run.TotalImpacts = &total
		}
		if record.ParamsJSON != "" {
			params := record.ParamsJSON
			run.ConfigParams = &params
		}
		result[i] = run
	}
	return result
}

// ConvertImpactRows converts stored impact rows for Parquet export.
func ConvertImpactRows(records []schema.ImpactRow) []Impact {
	result := make([]Impact, len(records))
	for i, record := range records {
		result[i] = Impact{
			RunID:         record.RunID,
			Metric:        record.Metric,
			Horizon:       record.Horizon,
			RankPos:       record.RankPos,
			EventDate:     record.EventDate,
			AbsoluteDelta: record.AbsoluteDelta,
			Event:         record.Event,
		}
	}
	return result
}

// ConvertRanking converts a ranking into rows numbered from 1.
func ConvertRanking(metric string, records []schema.ImpactRecord) []RankedImpact {
	result := make([]RankedImpact, len(records))
	for i, record := range records {
		result[i] = RankedImpact{
			Metric:        metric,
			Rank:          int32(i + 1),
			Date:          record.Date,
			Horizon:       int32(record.Horizon),
			AbsoluteDelta: record.AbsoluteDelta,
			Event:         record.Event,
		}
	}
	return result
}
