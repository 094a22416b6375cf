// Package ingest reads metric series and event tables from CSV and Parquet files.
//
// Row numbers in errors count data rows from 1; the header is not counted.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/internal/parquet"
	"github.com/huangsam/shiftpoint/schema"
	"github.com/shopspring/decimal"
)

var seriesDateLayouts = []string{time.DateOnly, time.DateTime, time.RFC3339}

// ReadSeriesCSV reads a metric table. Delta columns are rounded to
// schema.DefaultPrecision decimals; a missing raw column falls back to the
// moving average. Dates must be strictly increasing.
func ReadSeriesCSV(r io.Reader, id string, cols contract.ColumnMap) (schema.TimeSeries, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return schema.TimeSeries{}, fmt.Errorf("%w: %s has no header", schema.ErrInvalidSeries, id)
	}
	if err != nil {
		return schema.TimeSeries{}, fmt.Errorf("failed to read header of %s: %w", id, err)
	}

	idx, err := locateColumns(header, cols)
	if err != nil {
		return schema.TimeSeries{}, fmt.Errorf("%s: %w", id, err)
	}

	ts := schema.TimeSeries{ID: id}
	for row := 1; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return schema.TimeSeries{}, fmt.Errorf("%s row %d: %w", id, row, err)
		}

		rec, err := parseSeriesRow(fields, idx, row)
		if err != nil {
			return schema.TimeSeries{}, fmt.Errorf("%s: %w", id, err)
		}
		ts.Records = append(ts.Records, rec)
	}

	if err := checkOrder(ts); err != nil {
		return schema.TimeSeries{}, err
	}
	return ts, nil
}

// ReadSeriesFile dispatches on the file extension.
func ReadSeriesFile(src contract.MetricSource) (schema.TimeSeries, error) {
	if strings.EqualFold(filepath.Ext(src.Path), ".parquet") {
		return ReadSeriesParquet(src.Path, src.Name)
	}

	f, err := os.Open(src.Path)
	if err != nil {
		return schema.TimeSeries{}, fmt.Errorf("failed to open metric %s: %w", src.Name, err)
	}
	defer func() { _ = f.Close() }()
	return ReadSeriesCSV(f, src.Name, src.Columns)
}

// ReadSeriesParquet reads a metric stored with the parquet.SeriesRow layout.
func ReadSeriesParquet(path, id string) (schema.TimeSeries, error) {
	rows, err := parquet.ReadSeriesParquet(path)
	if err != nil {
		return schema.TimeSeries{}, err
	}

	ts := schema.TimeSeries{ID: id, Records: make([]schema.Record, len(rows))}
	for i, row := range rows {
		rec := schema.Record{
			Date:          schema.DayOf(row.Date),
			Raw:           row.MovingAverage,
			MovingAverage: row.MovingAverage,
			Forecast:      row.Forecast,
			Delta7:        roundDelta(row.Delta7),
			Delta14:       roundDelta(row.Delta14),
		}
		if row.Raw != nil {
			rec.Raw = *row.Raw
		}
		if err := checkFinite(rec, i+1); err != nil {
			return schema.TimeSeries{}, fmt.Errorf("%s: %w", id, err)
		}
		ts.Records[i] = rec
	}

	if err := checkOrder(ts); err != nil {
		return schema.TimeSeries{}, err
	}
	return ts, nil
}

type columnIndex struct {
	date, raw, ma, forecast, delta7, delta14 int
}

// locateColumns matches header names case-insensitively. Raw is optional (-1).
func locateColumns(header []string, cols contract.ColumnMap) (columnIndex, error) {
	find := func(name string) int {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name)) {
				return i
			}
		}
		return -1
	}

	idx := columnIndex{
		date:     find(cols.Date),
		raw:      find(cols.Raw),
		ma:       find(cols.MovingAverage),
		forecast: find(cols.Forecast),
		delta7:   find(cols.Delta7),
		delta14:  find(cols.Delta14),
	}

	required := []struct {
		name string
		pos  int
	}{
		{cols.Date, idx.date},
		{cols.MovingAverage, idx.ma},
		{cols.Forecast, idx.forecast},
		{cols.Delta7, idx.delta7},
		{cols.Delta14, idx.delta14},
	}
	var missing []string
	for _, col := range required {
		if col.pos < 0 {
			missing = append(missing, strconv.Quote(col.name))
		}
	}
	if len(missing) > 0 {
		return idx, fmt.Errorf("%w: missing columns %s", schema.ErrInvalidSeries, strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseSeriesRow(fields []string, idx columnIndex, row int) (schema.Record, error) {
	date, err := parseSeriesDate(fields[idx.date])
	if err != nil {
		return schema.Record{}, &schema.DateError{Row: row, Value: fields[idx.date]}
	}

	ma, err := parseNumber(fields, idx.ma, row, true)
	if err != nil {
		return schema.Record{}, err
	}
	rec := schema.Record{Date: date, Raw: ma, MovingAverage: ma}

	if idx.raw >= 0 && strings.TrimSpace(fields[idx.raw]) != "" {
		if rec.Raw, err = parseNumber(fields, idx.raw, row, true); err != nil {
			return schema.Record{}, err
		}
	}
	if rec.Forecast, err = parseNumber(fields, idx.forecast, row, false); err != nil {
		return schema.Record{}, err
	}
	if rec.Delta7, err = parseNumber(fields, idx.delta7, row, false); err != nil {
		return schema.Record{}, err
	}
	if rec.Delta14, err = parseNumber(fields, idx.delta14, row, false); err != nil {
		return schema.Record{}, err
	}
	rec.Delta7 = roundDelta(rec.Delta7)
	rec.Delta14 = roundDelta(rec.Delta14)

	return rec, checkFinite(rec, row)
}

func parseSeriesDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range seriesDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return schema.DayOf(t), nil
		}
	}
	return time.Time{}, schema.ErrMalformedDate
}

// parseNumber parses one cell. Empty cells are zero unless required; forecasts
// are commonly blank for the first days of a series.
func parseNumber(fields []string, pos, row int, required bool) (float64, error) {
	cell := strings.TrimSpace(fields[pos])
	if cell == "" {
		if required {
			return 0, fmt.Errorf("%w: row %d: empty value in column %d", schema.ErrInvalidSeries, row, pos+1)
		}
		return 0, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("row %d: column %d: %w", row, pos+1, err)
	}
	return v, nil
}

// roundDelta rounds half to even, so 7.125 becomes 7.12.
func roundDelta(v float64) float64 {
	return decimal.NewFromFloat(v).RoundBank(schema.DefaultPrecision).InexactFloat64()
}

func checkFinite(rec schema.Record, row int) error {
	for _, v := range []float64{rec.Raw, rec.MovingAverage, rec.Forecast, rec.Delta7, rec.Delta14} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: row %d: non-finite value", schema.ErrInvalidSeries, row)
		}
	}
	return nil
}

// checkOrder enforces strictly increasing dates.
func checkOrder(ts schema.TimeSeries) error {
	for i := 1; i < len(ts.Records); i++ {
		if !ts.Records[i].Date.After(ts.Records[i-1].Date) {
			return fmt.Errorf("%w: %s row %d: date %s does not follow %s", schema.ErrInvalidSeries, ts.ID, i+1,
				ts.Records[i].Date.Format(time.DateOnly), ts.Records[i-1].Date.Format(time.DateOnly))
		}
	}
	return nil
}
