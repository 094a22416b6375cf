// Package dispatch routes resolved control requests to the segmentation and
// ranking pipelines and assembles per-request result bundles.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/shiftpoint/core/align"
	"github.com/huangsam/shiftpoint/core/impact"
	"github.com/huangsam/shiftpoint/core/segment"
	"github.com/huangsam/shiftpoint/schema"
)

// Segmenter produces change points for a named series.
// Implementations must be pure: identical arguments give identical results.
type Segmenter interface {
	Segment(ctx context.Context, seriesID string, values []float64, k int) (schema.ChangePointSet, error)
}

// DirectSegmenter runs the DP engine on every call.
type DirectSegmenter struct {
	MinSize int
}

// Segment implements Segmenter.
func (s DirectSegmenter) Segment(_ context.Context, seriesID string, values []float64, k int) (schema.ChangePointSet, error) {
	minSize := s.MinSize
	if minSize == 0 {
		minSize = schema.DefaultMinSize
	}
	return segment.Segment(values, k, segment.WithMinSize(minSize), segment.WithSeriesID(seriesID))
}

// Metric is one loaded metric and its precomputed, read-only artifacts.
type Metric struct {
	Name     string
	Series   schema.TimeSeries
	Enriched schema.EnrichedSeries
	Base     schema.Chart
}

// Dataset is the immutable snapshot every request reads from.
type Dataset struct {
	Metrics []Metric
	Events  schema.EventLog
}

// Metric looks up a metric by name.
func (ds *Dataset) Metric(name string) (Metric, error) {
	for _, m := range ds.Metrics {
		if m.Name == name {
			return m, nil
		}
	}
	return Metric{}, fmt.Errorf("%w: %q", schema.ErrUnknownMetric, name)
}

// Options tune a Dispatcher.
type Options struct {
	TopK  int
	Field schema.SeriesField
}

// Dispatcher answers requests against a shared Dataset. It holds no per-request state.
type Dispatcher struct {
	data *Dataset
	seg  Segmenter
	opts Options
}

// New creates a Dispatcher. A nil Segmenter falls back to DirectSegmenter.
func New(data *Dataset, seg Segmenter, opts Options) *Dispatcher {
	if seg == nil {
		seg = DirectSegmenter{}
	}
	if opts.TopK <= 0 {
		opts.TopK = schema.DefaultTopK
	}
	if opts.Field == "" {
		opts.Field = schema.MovingAverageField
	}
	return &Dispatcher{data: data, seg: seg, opts: opts}
}

// Dataset returns the snapshot served by d.
func (d *Dispatcher) Dataset() *Dataset { return d.data }

// Options returns the resolved options of d.
func (d *Dispatcher) Options() Options { return d.opts }

// Dispatch runs the pipeline selected by req and returns a freshly built bundle.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (schema.DispatchResult, error) {
	if req == nil {
		req = NoTrigger{}
	}
	trigger := req.Trigger()
	dispatchRequests.WithLabelValues(string(trigger)).Inc()

	result := schema.DispatchResult{
		RequestID: uuid.NewString(),
		Trigger:   trigger,
	}

	var err error
	switch r := req.(type) {
	case DateSelected:
		result.Metrics, err = d.dateSelected(ctx, r)
	case RecomputeRanked:
		result.Metrics, err = d.recomputeRanked(ctx)
	case ChangePointCountChanged:
		result.Metrics, err = d.changePointCountChanged(ctx, r)
	default:
		result.Metrics = d.baseBundles()
	}
	if err != nil {
		dispatchErrors.WithLabelValues(string(trigger)).Inc()
		return schema.DispatchResult{}, err
	}
	return result, nil
}

// EventPoints runs the event pipeline for one metric: segment with one
// breakpoint per event date, then keep the first change point per event.
// An empty event log maps nothing and skips segmentation.
func (d *Dispatcher) EventPoints(ctx context.Context, m Metric) ([]schema.MappedPoint, error) {
	k := align.BreakpointCount(d.data.Events)
	if k == 0 {
		return []schema.MappedPoint{}, nil
	}
	cps, err := d.ChangePoints(ctx, m, k)
	if err != nil {
		return nil, err
	}
	return align.MapToEvents(m.Enriched, cps), nil
}

// ChangePoints segments the configured column of m into k+1 parts.
func (d *Dispatcher) ChangePoints(ctx context.Context, m Metric, k int) (schema.ChangePointSet, error) {
	start := time.Now()
	cps, err := d.seg.Segment(ctx, m.Name, m.Series.Values(d.opts.Field), k)
	segmentDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return schema.ChangePointSet{}, fmt.Errorf("segment %s with k=%d: %w", m.Name, k, err)
	}
	return cps, nil
}

// Rank returns the horizon-h ranking for one metric.
func (d *Dispatcher) Rank(ctx context.Context, m Metric, h schema.Horizon) ([]schema.ImpactRecord, error) {
	mapped, err := d.EventPoints(ctx, m)
	if err != nil {
		return nil, err
	}
	return impact.Rank(mapped, h, d.opts.TopK)
}

func (d *Dispatcher) dateSelected(ctx context.Context, r DateSelected) ([]schema.MetricBundle, error) {
	bundles := make([]schema.MetricBundle, 0, len(d.data.Metrics))
	for _, m := range d.data.Metrics {
		mapped, err := d.EventPoints(ctx, m)
		if err != nil {
			return nil, err
		}
		overlay := m.Base.Clone()
		if rec, ok := impact.Before(mapped, r.Date, schema.Horizon7); ok {
			overlay = m.Base.WithOverlay(schema.Trace{
				Name: "Added Event Impact",
				Kind: schema.BarTrace,
				X:    []time.Time{r.Date},
				Y:    []float64{rec.AbsoluteDelta},
			})
		}
		bundles = append(bundles, emptyBundle(m.Name, overlay))
	}
	return bundles, nil
}

func (d *Dispatcher) recomputeRanked(ctx context.Context) ([]schema.MetricBundle, error) {
	bundles := make([]schema.MetricBundle, 0, len(d.data.Metrics))
	for _, m := range d.data.Metrics {
		mapped, err := d.EventPoints(ctx, m)
		if err != nil {
			return nil, err
		}
		t7, err := impact.Rank(mapped, schema.Horizon7, d.opts.TopK)
		if err != nil {
			return nil, err
		}
		t14, err := impact.Rank(mapped, schema.Horizon14, d.opts.TopK)
		if err != nil {
			return nil, err
		}

		bar := schema.Trace{Name: fmt.Sprintf("Top %d Event Impacts", d.opts.TopK), Kind: schema.BarTrace}
		for _, rec := range t7 {
			bar.X = append(bar.X, rec.Date)
			bar.Y = append(bar.Y, rec.AbsoluteDelta)
		}
		bundles = append(bundles, schema.MetricBundle{
			Metric:  m.Name,
			Overlay: m.Base.WithOverlay(bar),
			Table7:  t7,
			Table14: t14,
		})
	}
	return bundles, nil
}

func (d *Dispatcher) changePointCountChanged(ctx context.Context, r ChangePointCountChanged) ([]schema.MetricBundle, error) {
	targets := d.data.Metrics
	if r.Metric != "" {
		m, err := d.data.Metric(r.Metric)
		if err != nil {
			return nil, err
		}
		targets = []Metric{m}
	}

	bundles := make([]schema.MetricBundle, 0, len(targets))
	for _, m := range targets {
		cps, err := d.ChangePoints(ctx, m, r.K)
		if err != nil {
			return nil, err
		}
		markers := make([]time.Time, 0, len(cps.Indices))
		for _, idx := range cps.Indices {
			markers = append(markers, m.Series.Records[idx].Date)
		}
		b := emptyBundle(m.Name, m.Base.WithOverlay(schema.Trace{
			Name: "Change Points",
			Kind: schema.MarkerTrace,
			X:    markers,
		}))
		b.Markers = markers
		bundles = append(bundles, b)
	}
	return bundles, nil
}

func (d *Dispatcher) baseBundles() []schema.MetricBundle {
	bundles := make([]schema.MetricBundle, 0, len(d.data.Metrics))
	for _, m := range d.data.Metrics {
		bundles = append(bundles, emptyBundle(m.Name, m.Base.Clone()))
	}
	return bundles
}

func emptyBundle(name string, overlay schema.Chart) schema.MetricBundle {
	return schema.MetricBundle{
		Metric:  name,
		Overlay: overlay,
		Table7:  []schema.ImpactRecord{},
		Table14: []schema.ImpactRecord{},
	}
}
