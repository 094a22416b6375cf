package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/shiftpoint/core/align"
	"github.com/huangsam/shiftpoint/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func d(n int) time.Time {
	return time.Date(2020, time.June, n, 0, 0, 0, 0, time.UTC)
}

// newTestDataset builds two metrics over twelve days with plateaus at indices 3, 6 and 9.
// Events fall on days 2, 5 and 8, so the change points map to A, B and C respectively.
func newTestDataset() *Dataset {
	events := schema.NewEventLog([]schema.Event{
		{Date: d(2), Description: "A"},
		{Date: d(5), Description: "B"},
		{Date: d(8), Description: "C"},
	}, schema.DefaultEventSeparator)

	build := func(name string, scale float64, delta7, delta14 map[int]float64) Metric {
		ts := schema.TimeSeries{ID: name}
		for i := range 12 {
			ts.Records = append(ts.Records, schema.Record{
				Date:          d(i + 1),
				Raw:           float64(i),
				MovingAverage: float64(i/3) * 10 * scale,
				Delta7:        delta7[i],
				Delta14:       delta14[i],
			})
		}
		base := schema.Chart{Title: name, Traces: []schema.Trace{
			{Name: "Moving Average", Kind: schema.LineTrace, X: ts.Dates(), Y: ts.Values(schema.MovingAverageField)},
		}}
		return Metric{Name: name, Series: ts, Enriched: align.Align(ts, events), Base: base}
	}

	return &Dataset{
		Events: events,
		Metrics: []Metric{
			build("covid", 1, map[int]float64{3: 5, 6: 9, 9: 9}, map[int]float64{3: 1, 6: 2, 9: 3}),
			build("subway", 100, map[int]float64{3: -7, 6: 2, 9: 4}, map[int]float64{3: 8, 6: 8, 9: 0.5}),
		},
	}
}

func eventsOf(rs []schema.ImpactRecord) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Event
	}
	return out
}

func TestDispatchNoTrigger(t *testing.T) {
	ds := newTestDataset()
	res, err := New(ds, nil, Options{}).Dispatch(context.Background(), NoTrigger{})

	require.NoError(t, err)
	assert.Equal(t, schema.NoTrigger, res.Trigger)
	assert.NotEmpty(t, res.RequestID)
	require.Len(t, res.Metrics, 2)
	for i, b := range res.Metrics {
		assert.Equal(t, ds.Metrics[i].Base, b.Overlay)
		assert.NotNil(t, b.Table7)
		assert.Empty(t, b.Table7)
		assert.Empty(t, b.Table14)
	}
}

func TestDispatchNilRequestIsNoTrigger(t *testing.T) {
	res, err := New(newTestDataset(), nil, Options{}).Dispatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, schema.NoTrigger, res.Trigger)
}

func TestDispatchDateSelected(t *testing.T) {
	ds := newTestDataset()
	disp := New(ds, nil, Options{})

	t.Run("annotates latest impact at horizon 7", func(t *testing.T) {
		res, err := disp.Dispatch(context.Background(), DateSelected{Date: d(8)})
		require.NoError(t, err)
		require.Len(t, res.Metrics, 2)

		covid := res.Metrics[0]
		require.Len(t, covid.Overlay.Traces, 2)
		bar := covid.Overlay.Traces[1]
		assert.Equal(t, schema.BarTrace, bar.Kind)
		assert.Equal(t, []time.Time{d(8)}, bar.X)
		assert.Equal(t, []float64{9}, bar.Y)
		assert.Empty(t, covid.Table7)
		assert.Empty(t, covid.Table14)

		subway := res.Metrics[1]
		assert.Equal(t, []float64{2}, subway.Overlay.Traces[1].Y)
	})

	t.Run("date before every change point adds nothing", func(t *testing.T) {
		res, err := disp.Dispatch(context.Background(), DateSelected{Date: d(1)})
		require.NoError(t, err)
		for i, b := range res.Metrics {
			assert.Equal(t, ds.Metrics[i].Base, b.Overlay)
		}
	})
}

func TestDispatchRecomputeRanked(t *testing.T) {
	ds := newTestDataset()
	res, err := New(ds, nil, Options{}).Dispatch(context.Background(), RecomputeRanked{Clicks: 1})
	require.NoError(t, err)
	require.Len(t, res.Metrics, 2)

	covid := res.Metrics[0]
	assert.Equal(t, []string{"B", "C", "A"}, eventsOf(covid.Table7))
	assert.Equal(t, []string{"C", "B", "A"}, eventsOf(covid.Table14))
	require.Len(t, covid.Overlay.Traces, 2)
	assert.Equal(t, "Top 10 Event Impacts", covid.Overlay.Traces[1].Name)
	assert.Equal(t, []float64{9, 9, 5}, covid.Overlay.Traces[1].Y)

	subway := res.Metrics[1]
	assert.Equal(t, []string{"A", "C", "B"}, eventsOf(subway.Table7))
	assert.Equal(t, 7.0, subway.Table7[0].AbsoluteDelta)
	assert.Equal(t, []string{"A", "B", "C"}, eventsOf(subway.Table14))
}

func TestDispatchRecomputeRankedHonorsTopK(t *testing.T) {
	res, err := New(newTestDataset(), nil, Options{TopK: 1}).Dispatch(context.Background(), RecomputeRanked{Clicks: 3})
	require.NoError(t, err)
	for _, b := range res.Metrics {
		assert.Len(t, b.Table7, 1)
		assert.Len(t, b.Table14, 1)
		assert.Equal(t, "Top 1 Event Impacts", b.Overlay.Traces[1].Name)
	}
}

func TestDispatchChangePointCountChanged(t *testing.T) {
	ds := newTestDataset()
	disp := New(ds, nil, Options{})

	t.Run("single metric", func(t *testing.T) {
		res, err := disp.Dispatch(context.Background(), ChangePointCountChanged{Metric: "covid", K: 1})
		require.NoError(t, err)
		require.Len(t, res.Metrics, 1)
		b := res.Metrics[0]
		assert.Equal(t, "covid", b.Metric)
		assert.Equal(t, []time.Time{d(7)}, b.Markers)
		last := b.Overlay.Traces[len(b.Overlay.Traces)-1]
		assert.Equal(t, schema.MarkerTrace, last.Kind)
		assert.Equal(t, b.Markers, last.X)
	})

	t.Run("all metrics", func(t *testing.T) {
		res, err := disp.Dispatch(context.Background(), ChangePointCountChanged{K: 3})
		require.NoError(t, err)
		require.Len(t, res.Metrics, 2)
		for _, b := range res.Metrics {
			assert.Equal(t, []time.Time{d(4), d(7), d(10)}, b.Markers)
		}
	})

	t.Run("raw field segments raw values", func(t *testing.T) {
		res, err := New(ds, nil, Options{Field: schema.RawField}).Dispatch(context.Background(), ChangePointCountChanged{Metric: "covid", K: 1})
		require.NoError(t, err)
		assert.Equal(t, []time.Time{d(7)}, res.Metrics[0].Markers)
	})

	t.Run("invalid k", func(t *testing.T) {
		_, err := disp.Dispatch(context.Background(), ChangePointCountChanged{Metric: "covid", K: 12})
		assert.ErrorIs(t, err, schema.ErrParameterOutOfRange)
	})

	t.Run("unknown metric", func(t *testing.T) {
		_, err := disp.Dispatch(context.Background(), ChangePointCountChanged{Metric: "flu", K: 1})
		assert.ErrorIs(t, err, schema.ErrUnknownMetric)
	})
}

func TestDispatchDoesNotAccumulate(t *testing.T) {
	ds := newTestDataset()
	disp := New(ds, nil, Options{})
	baseTraces := len(ds.Metrics[0].Base.Traces)

	for range 5 {
		res, err := disp.Dispatch(context.Background(), RecomputeRanked{Clicks: 1})
		require.NoError(t, err)
		assert.Len(t, res.Metrics[0].Overlay.Traces, baseTraces+1)

		res.Metrics[0].Overlay.Traces[0].Y[0] = -1
	}

	assert.Len(t, ds.Metrics[0].Base.Traces, baseTraces)
	assert.Equal(t, 0.0, ds.Metrics[0].Base.Traces[0].Y[0])
}

func TestDispatchConcurrent(t *testing.T) {
	disp := New(newTestDataset(), nil, Options{})
	reqs := []Request{
		NoTrigger{},
		DateSelected{Date: d(8)},
		RecomputeRanked{Clicks: 1},
		ChangePointCountChanged{K: 2},
	}
	wantTraces := []int{1, 2, 2, 2}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := range 64 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx := i % len(reqs)
			res, err := disp.Dispatch(context.Background(), reqs[idx])
			if err != nil {
				errs <- err
				return
			}
			if got := len(res.Metrics[0].Overlay.Traces); got != wantTraces[idx] {
				errs <- assert.AnError
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent dispatch failed: %v", err)
	}
}

type mockSegmenter struct {
	mock.Mock
}

func (m *mockSegmenter) Segment(ctx context.Context, seriesID string, values []float64, k int) (schema.ChangePointSet, error) {
	args := m.Called(ctx, seriesID, values, k)
	return args.Get(0).(schema.ChangePointSet), args.Error(1)
}

func TestEventPointsUsesEventCoupledK(t *testing.T) {
	ds := newTestDataset()
	seg := &mockSegmenter{}
	seg.On("Segment", mock.Anything, "covid", mock.Anything, 3).
		Return(schema.ChangePointSet{SeriesID: "covid", K: 3, N: 12, Indices: []int{3, 6, 9}}, nil).Once()

	mapped, err := New(ds, seg, Options{}).EventPoints(context.Background(), ds.Metrics[0])

	require.NoError(t, err)
	require.Len(t, mapped, 3)
	assert.Equal(t, "A", mapped[0].Event)
	seg.AssertExpectations(t)
}

func TestEventPointsPropagatesSegmenterError(t *testing.T) {
	ds := newTestDataset()
	seg := &mockSegmenter{}
	seg.On("Segment", mock.Anything, "covid", mock.Anything, 3).
		Return(schema.ChangePointSet{}, &schema.RangeError{Name: "k", Value: 3, Min: 1, Max: 2})

	_, err := New(ds, seg, Options{}).EventPoints(context.Background(), ds.Metrics[0])
	assert.ErrorIs(t, err, schema.ErrParameterOutOfRange)
	assert.Contains(t, err.Error(), "segment covid with k=3")
}

func TestDispatchWithoutEvents(t *testing.T) {
	ds := newTestDataset()
	ds.Events = schema.NewEventLog(nil, schema.DefaultEventSeparator)
	for i, m := range ds.Metrics {
		ds.Metrics[i].Enriched = align.Align(m.Series, ds.Events)
	}
	seg := &mockSegmenter{}
	disp := New(ds, seg, Options{})

	t.Run("date selected returns base charts", func(t *testing.T) {
		res, err := disp.Dispatch(context.Background(), DateSelected{Date: d(8)})
		require.NoError(t, err)
		require.Len(t, res.Metrics, 2)
		for i, b := range res.Metrics {
			assert.Equal(t, ds.Metrics[i].Base, b.Overlay)
			assert.Empty(t, b.Table7)
		}
	})

	t.Run("recompute ranked returns empty tables", func(t *testing.T) {
		res, err := disp.Dispatch(context.Background(), RecomputeRanked{Clicks: 1})
		require.NoError(t, err)
		require.Len(t, res.Metrics, 2)
		for _, b := range res.Metrics {
			assert.Empty(t, b.Table7)
			assert.Empty(t, b.Table14)
			require.Len(t, b.Overlay.Traces, 2)
			assert.Empty(t, b.Overlay.Traces[1].X)
		}
	})

	mapped, err := disp.EventPoints(context.Background(), ds.Metrics[0])
	require.NoError(t, err)
	assert.NotNil(t, mapped)
	assert.Empty(t, mapped)
	seg.AssertNotCalled(t, "Segment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		in   Inputs
		want Request
	}{
		{
			name: "date wins over ranking",
			in:   Inputs{Fired: []schema.Trigger{schema.RecomputeRankedTrigger, schema.DateSelectedTrigger}, Date: d(3), Clicks: 2},
			want: DateSelected{Date: d(3)},
		},
		{
			name: "ranking requires a click",
			in:   Inputs{Fired: []schema.Trigger{schema.RecomputeRankedTrigger}},
			want: NoTrigger{},
		},
		{
			name: "ranking",
			in:   Inputs{Fired: []schema.Trigger{schema.RecomputeRankedTrigger}, Clicks: 1},
			want: RecomputeRanked{Clicks: 1},
		},
		{
			name: "ranking wins over count change",
			in:   Inputs{Fired: []schema.Trigger{schema.ChangePointCountChangedTrigger, schema.RecomputeRankedTrigger}, Clicks: 1, K: 4},
			want: RecomputeRanked{Clicks: 1},
		},
		{
			name: "count change",
			in:   Inputs{Fired: []schema.Trigger{schema.ChangePointCountChangedTrigger}, Metric: "covid", K: 4},
			want: ChangePointCountChanged{Metric: "covid", K: 4},
		},
		{
			name: "date trigger without a date",
			in:   Inputs{Fired: []schema.Trigger{schema.DateSelectedTrigger}},
			want: NoTrigger{},
		},
		{
			name: "nothing fired",
			in:   Inputs{},
			want: NoTrigger{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.in))
		})
	}
}

func TestDatasetMetric(t *testing.T) {
	ds := newTestDataset()
	m, err := ds.Metric("subway")
	require.NoError(t, err)
	assert.Equal(t, "subway", m.Name)

	_, err = ds.Metric("nope")
	assert.ErrorIs(t, err, schema.ErrUnknownMetric)
}
