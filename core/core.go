// Package core has the orchestration behind every command: loading the
// dataset, running the pipelines and tracking runs.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/huangsam/shiftpoint/core/align"
	"github.com/huangsam/shiftpoint/core/dispatch"
	"github.com/huangsam/shiftpoint/core/impact"
	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/internal/outwriter"
	"github.com/huangsam/shiftpoint/schema"
)

// ExecutorFunc defines the function signature for executing different commands.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error

// NewDispatcher wires a Dispatcher over ds, memoizing segmentations when a memo store is configured.
func NewDispatcher(ds *dispatch.Dataset, cfg *contract.Config, mgr contract.CacheManager) *dispatch.Dispatcher {
	var seg dispatch.Segmenter = dispatch.DirectSegmenter{MinSize: cfg.MinSize}
	if mgr != nil {
		if store := mgr.GetMemoStore(); store != nil {
			seg = MemoSegmenter{Store: store, Field: cfg.Field, MinSize: cfg.MinSize, Next: seg}
		}
	}
	return dispatch.New(ds, seg, dispatch.Options{TopK: cfg.TopK, Field: cfg.Field})
}

// ExecuteSegment prints the change points of each selected metric.
// A zero cfg.K places one breakpoint per distinct event date.
func ExecuteSegment(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	disp, err := PrepareDispatcher(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	reports, err := BuildBreakpoints(ctx, disp, cfg.Metric, cfg.K)
	if err != nil {
		return err
	}
	return outwriter.PrintBreakpointResults(reports, cfg, time.Since(start))
}

// ExecuteRank prints the top-K impact table of each selected metric at cfg.Horizon.
func ExecuteRank(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	disp, err := PrepareDispatcher(ctx, cfg, mgr)
	if err != nil {
		return err
	}

	ctx = beginRun(ctx, "rank", cfg, mgr)
	rankings, err := BuildRankings(ctx, disp, cfg.Metric, cfg.Horizon)
	if err != nil {
		return err
	}
	recordRankings(ctx, mgr, rankings)
	endRun(ctx, mgr, countImpacts(rankings))

	return outwriter.PrintRankingResults(rankings, cfg, time.Since(start))
}

// ExecuteImpact prints the latest impact on or before cfg.Date for each selected metric.
func ExecuteImpact(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	if cfg.Date.IsZero() {
		return errors.New("--date is required")
	}
	disp, err := PrepareDispatcher(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	impacts, err := BuildImpacts(ctx, disp, cfg.Metric, cfg.Date, cfg.Horizon)
	if err != nil {
		return err
	}
	return outwriter.PrintImpactResults(impacts, cfg, time.Since(start))
}

// ExecuteDispatch resolves cfg.Trigger into a request and prints the resulting bundle.
func ExecuteDispatch(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	disp, err := PrepareDispatcher(ctx, cfg, mgr)
	if err != nil {
		return err
	}

	req := dispatch.Resolve(dispatch.Inputs{
		Fired:  []schema.Trigger{cfg.Trigger},
		Date:   cfg.Date,
		Clicks: cfg.Clicks,
		Metric: cfg.Metric,
		K:      cfg.K,
	})

	ctx = beginRun(ctx, "dispatch", cfg, mgr)
	result, err := disp.Dispatch(ctx, req)
	if err != nil {
		return err
	}
	rankings := BundleRankings(result)
	recordRankings(ctx, mgr, rankings)
	endRun(ctx, mgr, countImpacts(rankings))

	return outwriter.PrintDispatchResult(result, cfg, time.Since(start))
}

// BuildBreakpoints segments each selected metric into k+1 parts. A zero k
// couples the count to the number of distinct event dates.
func BuildBreakpoints(ctx context.Context, disp *dispatch.Dispatcher, metric string, k int) ([]schema.BreakpointReport, error) {
	metrics, err := selectMetrics(disp.Dataset(), metric)
	if err != nil {
		return nil, err
	}
	if k == 0 {
		k = align.BreakpointCount(disp.Dataset().Events)
	}
	field := disp.Options().Field

	reports := make([]schema.BreakpointReport, 0, len(metrics))
	for _, m := range metrics {
		cps, err := disp.ChangePoints(ctx, m, k)
		if err != nil {
			return nil, err
		}
		values := m.Series.Values(field)
		report := schema.BreakpointReport{Metric: m.Name, K: cps.K, Field: field, Cost: cps.Cost, Rows: make([]schema.BreakpointRow, 0, len(cps.Indices))}
		for _, idx := range cps.Indices {
			row := schema.BreakpointRow{Index: idx, Date: m.Series.Records[idx].Date, Value: values[idx]}
			if ev := m.Enriched.Records[idx].Event; ev != nil {
				row.Event = *ev
			}
			report.Rows = append(report.Rows, row)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// BuildRankings ranks the events of each selected metric at horizon h.
func BuildRankings(ctx context.Context, disp *dispatch.Dispatcher, metric string, h schema.Horizon) ([]schema.MetricRanking, error) {
	metrics, err := selectMetrics(disp.Dataset(), metric)
	if err != nil {
		return nil, err
	}
	rankings := make([]schema.MetricRanking, 0, len(metrics))
	for _, m := range metrics {
		impacts, err := disp.Rank(ctx, m, h)
		if err != nil {
			return nil, err
		}
		rankings = append(rankings, schema.MetricRanking{Metric: m.Name, Horizon: h, Impacts: impacts})
	}
	return rankings, nil
}

// BuildImpacts finds the latest mapped change point on or before date for each selected metric.
func BuildImpacts(ctx context.Context, disp *dispatch.Dispatcher, metric string, date time.Time, h schema.Horizon) ([]schema.MetricImpact, error) {
	if !h.Valid() {
		return nil, &schema.RangeError{Name: "horizon", Value: int(h), Min: int(schema.Horizon7), Max: int(schema.Horizon14)}
	}
	metrics, err := selectMetrics(disp.Dataset(), metric)
	if err != nil {
		return nil, err
	}
	out := make([]schema.MetricImpact, 0, len(metrics))
	for _, m := range metrics {
		mapped, err := disp.EventPoints(ctx, m)
		if err != nil {
			return nil, err
		}
		rec, found := impact.Before(mapped, date, h)
		out = append(out, schema.MetricImpact{Metric: m.Name, Date: date, Horizon: h, Found: found, Impact: rec})
	}
	return out, nil
}

// BundleRankings flattens the impact tables of a dispatch result.
func BundleRankings(result schema.DispatchResult) []schema.MetricRanking {
	return result.Rankings()
}

// PrepareDispatcher loads the dataset and wires a dispatcher over it.
func PrepareDispatcher(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) (*dispatch.Dispatcher, error) {
	if !shouldSuppressHeader(ctx) {
		outwriter.LogRunHeader(cfg)
	}
	ds, err := LoadDataset(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewDispatcher(ds, cfg, mgr), nil
}

// selectMetrics returns the named metric, or every metric when name is empty.
func selectMetrics(ds *dispatch.Dataset, name string) ([]dispatch.Metric, error) {
	if name == "" {
		return ds.Metrics, nil
	}
	m, err := ds.Metric(name)
	if err != nil {
		return nil, err
	}
	return []dispatch.Metric{m}, nil
}

func countImpacts(rankings []schema.MetricRanking) int {
	var total int
	for _, r := range rankings {
		total += len(r.Impacts)
	}
	return total
}
