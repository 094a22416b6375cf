package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/shiftpoint/core/dispatch"
	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/internal/iocache"
	"github.com/huangsam/shiftpoint/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func d(n int) time.Time {
	return time.Date(2020, time.June, n, 0, 0, 0, 0, time.UTC)
}

const seriesHeader = "Date,Value,MA,7 days Ahead Forecasted Values,Abs 7 day Difference,Abs 14 day Difference\n"

// writeFixtures lays out a twelve-day metric with plateaus starting at indices
// 3, 6 and 9, and events two days before each plateau.
func writeFixtures(t *testing.T) (metricPath, eventsPath string) {
	t.Helper()
	dir := t.TempDir()
	delta7 := map[int]float64{3: 5, 6: 9, 9: 9}
	delta14 := map[int]float64{3: 1, 6: 2, 9: 3}

	var b strings.Builder
	b.WriteString(seriesHeader)
	for i := range 12 {
		ma := float64(i/3) * 10
		fmt.Fprintf(&b, "%s,%d,%g,%g,%g,%g\n", d(i+1).Format(time.DateOnly), i, ma, ma+1, delta7[i], delta14[i])
	}
	metricPath = filepath.Join(dir, "covid.csv")
	require.NoError(t, os.WriteFile(metricPath, []byte(b.String()), 0o600))

	events := "Date,Event Description\n" +
		"\"Jun 2, 2020\",A\n" +
		"\"Jun 5, 2020\",B\n" +
		"\"Jun 8, 2020\",C\n" +
		"\"Jun 30, 2020\",Late\n"
	eventsPath = filepath.Join(dir, "events.csv")
	require.NoError(t, os.WriteFile(eventsPath, []byte(events), 0o600))
	return metricPath, eventsPath
}

func testConfig(t *testing.T) *contract.Config {
	t.Helper()
	metricPath, eventsPath := writeFixtures(t)
	return &contract.Config{
		Metrics: []contract.MetricSource{{
			Name: "covid",
			Path: metricPath,
			Columns: contract.ColumnMap{
				Date:          contract.DefaultDateColumn,
				Raw:           contract.DefaultRawColumn,
				MovingAverage: contract.DefaultMovingAverageColumn,
				Forecast:      contract.DefaultForecastColumn,
				Delta7:        contract.DefaultDelta7Column,
				Delta14:       contract.DefaultDelta14Column,
			},
		}},
		EventsPath:     eventsPath,
		EventCutoff:    d(20),
		EventSeparator: schema.DefaultEventSeparator,
		Field:          schema.MovingAverageField,
		MinSize:        1,
		Horizon:        schema.Horizon7,
		TopK:           10,
		Output:         schema.JSONOut,
		OutputFile:     filepath.Join(t.TempDir(), "out.json"),
		Precision:      2,
	}
}

func testDispatcher(t *testing.T) (*dispatch.Dispatcher, *contract.Config) {
	t.Helper()
	cfg := testConfig(t)
	disp, err := PrepareDispatcher(WithSuppressHeader(context.Background()), cfg, nil)
	require.NoError(t, err)
	return disp, cfg
}

func TestLoadDataset(t *testing.T) {
	cfg := testConfig(t)
	ds, err := LoadDataset(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Events.DistinctDates(), "cutoff drops the late event")
	require.Len(t, ds.Metrics, 1)
	m := ds.Metrics[0]
	assert.Equal(t, "covid", m.Name)
	assert.Equal(t, 12, m.Series.Len())
	assert.Nil(t, m.Enriched.Records[0].Event)
	require.NotNil(t, m.Enriched.Records[3].Event)
	assert.Equal(t, "A", *m.Enriched.Records[3].Event)

	require.Len(t, m.Base.Traces, 3)
	assert.Equal(t, MovingAverageTrace, m.Base.Traces[0].Name)
	assert.Equal(t, ForecastTrace, m.Base.Traces[1].Name)
	assert.Equal(t, 31.0, m.Base.Traces[1].Y[9])
	assert.Equal(t, ObservedTrace, m.Base.Traces[2].Name)
	assert.Equal(t, 11.0, m.Base.Traces[2].Y[11])
}

func TestLoadDatasetErrors(t *testing.T) {
	t.Run("no metrics", func(t *testing.T) {
		_, err := LoadDataset(context.Background(), &contract.Config{})
		assert.Error(t, err)
	})

	t.Run("missing events file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.EventsPath = filepath.Join(t.TempDir(), "missing.csv")
		_, err := LoadDataset(context.Background(), cfg)
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := LoadDataset(ctx, testConfig(t))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("no events is allowed", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.EventsPath = ""
		ds, err := LoadDataset(context.Background(), cfg)
		require.NoError(t, err)
		assert.Zero(t, ds.Events.DistinctDates())
	})
}

func TestBuildBreakpoints(t *testing.T) {
	disp, _ := testDispatcher(t)

	t.Run("event coupled", func(t *testing.T) {
		reports, err := BuildBreakpoints(context.Background(), disp, "", 0)
		require.NoError(t, err)
		require.Len(t, reports, 1)
		r := reports[0]
		assert.Equal(t, 3, r.K)
		assert.Equal(t, schema.MovingAverageField, r.Field)
		assert.Zero(t, r.Cost)
		require.Len(t, r.Rows, 3)
		assert.Equal(t, schema.BreakpointRow{Index: 3, Date: d(4), Value: 10, Event: "A"}, r.Rows[0])
		assert.Equal(t, "B", r.Rows[1].Event)
		assert.Equal(t, "C", r.Rows[2].Event)
	})

	t.Run("explicit k", func(t *testing.T) {
		reports, err := BuildBreakpoints(context.Background(), disp, "covid", 1)
		require.NoError(t, err)
		require.Len(t, reports[0].Rows, 1)
		assert.Equal(t, 6, reports[0].Rows[0].Index)
	})

	t.Run("unknown metric", func(t *testing.T) {
		_, err := BuildBreakpoints(context.Background(), disp, "flu", 1)
		assert.ErrorIs(t, err, schema.ErrUnknownMetric)
	})

	t.Run("k out of range", func(t *testing.T) {
		_, err := BuildBreakpoints(context.Background(), disp, "", 50)
		assert.ErrorIs(t, err, schema.ErrParameterOutOfRange)
	})
}

func TestBuildRankings(t *testing.T) {
	disp, _ := testDispatcher(t)

	rankings, err := BuildRankings(context.Background(), disp, "", schema.Horizon7)
	require.NoError(t, err)
	require.Len(t, rankings, 1)
	r := rankings[0]
	assert.Equal(t, schema.Horizon7, r.Horizon)
	require.Len(t, r.Impacts, 3)
	assert.Equal(t, "B", r.Impacts[0].Event)
	assert.Equal(t, "C", r.Impacts[1].Event)
	assert.Equal(t, "A", r.Impacts[2].Event)

	r14, err := BuildRankings(context.Background(), disp, "covid", schema.Horizon14)
	require.NoError(t, err)
	assert.Equal(t, "C", r14[0].Impacts[0].Event)

	_, err = BuildRankings(context.Background(), disp, "", schema.Horizon(3))
	assert.ErrorIs(t, err, schema.ErrParameterOutOfRange)
}

func TestBuildRankingsWithoutEvents(t *testing.T) {
	cfg := testConfig(t)
	cfg.EventCutoff = d(1) // drops every event
	disp, err := PrepareDispatcher(WithSuppressHeader(context.Background()), cfg, nil)
	require.NoError(t, err)
	require.Zero(t, disp.Dataset().Events.DistinctDates())

	rankings, err := BuildRankings(context.Background(), disp, "", schema.Horizon7)
	require.NoError(t, err)
	require.Len(t, rankings, 1)
	assert.Empty(t, rankings[0].Impacts)

	impacts, err := BuildImpacts(context.Background(), disp, "", d(12), schema.Horizon7)
	require.NoError(t, err)
	require.Len(t, impacts, 1)
	assert.False(t, impacts[0].Found)
}

func TestBuildImpacts(t *testing.T) {
	disp, _ := testDispatcher(t)

	impacts, err := BuildImpacts(context.Background(), disp, "", d(8), schema.Horizon7)
	require.NoError(t, err)
	require.Len(t, impacts, 1)
	assert.True(t, impacts[0].Found)
	assert.Equal(t, d(7), impacts[0].Impact.Date)
	assert.Equal(t, 9.0, impacts[0].Impact.AbsoluteDelta)
	assert.Equal(t, "B", impacts[0].Impact.Event)

	impacts, err = BuildImpacts(context.Background(), disp, "", d(1), schema.Horizon7)
	require.NoError(t, err)
	assert.False(t, impacts[0].Found)

	_, err = BuildImpacts(context.Background(), disp, "", d(8), schema.Horizon(30))
	assert.ErrorIs(t, err, schema.ErrParameterOutOfRange)
}

func TestBundleRankings(t *testing.T) {
	result := schema.DispatchResult{Metrics: []schema.MetricBundle{
		{Metric: "covid", Table7: []schema.ImpactRecord{{Event: "A"}}, Table14: []schema.ImpactRecord{{Event: "B"}, {Event: "C"}}},
		{Metric: "subway", Table7: []schema.ImpactRecord{}, Table14: []schema.ImpactRecord{}},
	}}
	rankings := BundleRankings(result)
	require.Len(t, rankings, 2)
	assert.Equal(t, schema.Horizon7, rankings[0].Horizon)
	assert.Equal(t, schema.Horizon14, rankings[1].Horizon)
	assert.Equal(t, 3, countImpacts(rankings))
}

func TestExecuteRankRecordsHistory(t *testing.T) {
	cfg := testConfig(t)

	history := &iocache.MockHistoryStore{}
	history.On("BeginRun", "rank", mock.Anything, mock.Anything).Return(int64(7), nil).Once()
	history.On("RecordImpacts", int64(7), "covid", mock.MatchedBy(func(rows []schema.ImpactRecord) bool {
		return len(rows) == 3
	})).Return(nil).Once()
	history.On("EndRun", int64(7), mock.Anything, 3).Return(nil).Once()

	mgr := &iocache.MockCacheManager{}
	mgr.On("GetMemoStore").Return(nil)
	mgr.On("GetHistoryStore").Return(history)

	require.NoError(t, ExecuteRank(WithSuppressHeader(context.Background()), cfg, mgr))
	history.AssertExpectations(t)

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "covid", out[0]["metric"])
}

func TestExecuteRankHistoryFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t)

	history := &iocache.MockHistoryStore{}
	history.On("BeginRun", "rank", mock.Anything, mock.Anything).Return(int64(0), assert.AnError)

	mgr := &iocache.MockCacheManager{}
	mgr.On("GetMemoStore").Return(nil)
	mgr.On("GetHistoryStore").Return(history)

	require.NoError(t, ExecuteRank(WithSuppressHeader(context.Background()), cfg, mgr))
	history.AssertNotCalled(t, "RecordImpacts", mock.Anything, mock.Anything, mock.Anything)
	history.AssertNotCalled(t, "EndRun", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecuteSegmentAndImpact(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output = schema.CSVOut
	ctx := WithSuppressHeader(context.Background())

	require.NoError(t, ExecuteSegment(ctx, cfg, nil))
	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2020-06-04")

	assert.Error(t, ExecuteImpact(ctx, cfg, nil), "date is required")

	cfg.Date = d(8)
	require.NoError(t, ExecuteImpact(ctx, cfg, nil))
	data, err = os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2020-06-07")
}

func TestExecuteDispatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Trigger = schema.RecomputeRankedTrigger
	cfg.Clicks = 1

	history := &iocache.MockHistoryStore{}
	history.On("BeginRun", "dispatch", mock.Anything, mock.Anything).Return(int64(1), nil)
	history.On("RecordImpacts", int64(1), "covid", mock.Anything).Return(nil).Twice()
	history.On("EndRun", int64(1), mock.Anything, 6).Return(nil)

	mgr := &iocache.MockCacheManager{}
	mgr.On("GetMemoStore").Return(nil)
	mgr.On("GetHistoryStore").Return(history)

	require.NoError(t, ExecuteDispatch(WithSuppressHeader(context.Background()), cfg, mgr))
	history.AssertExpectations(t)

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	var res schema.DispatchResult
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, schema.RecomputeRankedTrigger, res.Trigger)
	require.Len(t, res.Metrics, 1)
	assert.Len(t, res.Metrics[0].Table7, 3)
}

func TestNewDispatcherUsesMemo(t *testing.T) {
	cfg := testConfig(t)
	ds, err := LoadDataset(context.Background(), cfg)
	require.NoError(t, err)

	store := &iocache.MockCacheStore{}
	store.On("Get", mock.Anything).Return(nil, 0, int64(0), sql.ErrNoRows).Once()
	store.On("Set", mock.Anything, mock.Anything, currentCacheVersion, mock.Anything).Return(nil).Once()

	mgr := &iocache.MockCacheManager{}
	mgr.On("GetMemoStore").Return(store)

	disp := NewDispatcher(ds, cfg, mgr)
	_, err = disp.ChangePoints(context.Background(), ds.Metrics[0], 2)
	require.NoError(t, err)
	store.AssertExpectations(t)
}
