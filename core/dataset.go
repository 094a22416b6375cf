package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangsam/shiftpoint/core/align"
	"github.com/huangsam/shiftpoint/core/dispatch"
	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/internal/ingest"
	"github.com/huangsam/shiftpoint/schema"
)

// Base chart trace names.
const (
	MovingAverageTrace = "Moving Average"
	ForecastTrace      = "7 Days Ahead Forecast"
	ObservedTrace      = "Observed"
)

// LoadDataset reads every configured metric and the event table, aligns each
// metric with the events and builds its base chart. The result is read-only.
func LoadDataset(ctx context.Context, cfg *contract.Config) (*dispatch.Dataset, error) {
	if len(cfg.Metrics) == 0 {
		return nil, errors.New("at least one --metrics entry is required")
	}

	var events []schema.Event
	if cfg.EventsPath != "" {
		var err error
		events, err = ingest.ReadEventsFile(cfg.EventsPath, cfg.EventCutoff)
		if err != nil {
			return nil, err
		}
	}
	log := schema.NewEventLog(events, cfg.EventSeparator)

	ds := &dispatch.Dataset{Events: log, Metrics: make([]dispatch.Metric, 0, len(cfg.Metrics))}
	for _, src := range cfg.Metrics {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ts, err := ingest.ReadSeriesFile(src)
		if err != nil {
			return nil, err
		}
		if ts.Len() == 0 {
			return nil, fmt.Errorf("%w: metric %s has no rows", schema.ErrInvalidSeries, src.Name)
		}
		ds.Metrics = append(ds.Metrics, NewMetric(src.Name, ts, log))
	}
	return ds, nil
}

// NewMetric aligns ts with the event log and builds its base chart.
func NewMetric(name string, ts schema.TimeSeries, events schema.EventLog) dispatch.Metric {
	return dispatch.Metric{
		Name:     name,
		Series:   ts,
		Enriched: align.Align(ts, events),
		Base:     BaseChart(name, ts),
	}
}

// BaseChart draws the smoothed and forecast lines with the observed values in a separate trace.
func BaseChart(title string, ts schema.TimeSeries) schema.Chart {
	dates := ts.Dates()
	forecast := make([]float64, ts.Len())
	for i, r := range ts.Records {
		forecast[i] = r.Forecast
	}
	return schema.Chart{
		Title: title,
		Traces: []schema.Trace{
			{Name: MovingAverageTrace, Kind: schema.LineTrace, X: dates, Y: ts.Values(schema.MovingAverageField)},
			{Name: ForecastTrace, Kind: schema.LineTrace, X: dates, Y: forecast},
			{Name: ObservedTrace, Kind: schema.LineTrace, X: dates, Y: ts.Values(schema.RawField)},
		},
	}
}
