package iocache

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/shiftpoint/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2020, 3, d, 0, 0, 0, 0, time.UTC)
}

func newTestHistoryStore(t *testing.T) *HistoryStoreImpl {
	t.Helper()
	store, err := NewHistoryStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store.(*HistoryStoreImpl)
}

func TestHistoryStoreRunLifecycle(t *testing.T) {
	store := newTestHistoryStore(t)
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	runID, err := store.BeginRun("rank", start, map[string]any{"top_k": 3, "horizon": 7})
	require.NoError(t, err)
	assert.Equal(t, int64(1), runID)

	rows := []schema.ImpactRecord{
		{Date: day(5), Horizon: schema.Horizon7, AbsoluteDelta: 9, Event: "B"},
		{Date: day(2), Horizon: schema.Horizon7, AbsoluteDelta: 5, Event: "A"},
		{Date: day(8), Horizon: schema.Horizon14, AbsoluteDelta: 3, Event: "C"},
	}
	require.NoError(t, store.RecordImpacts(runID, "covid", rows))
	require.NoError(t, store.EndRun(runID, start.Add(250*time.Millisecond), len(rows)))

	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, "rank", run.Command)
	assert.True(t, run.StartTime.Equal(start))
	require.NotNil(t, run.EndTime)
	require.NotNil(t, run.RunDurationMs)
	assert.Equal(t, int64(250), *run.RunDurationMs)
	require.NotNil(t, run.TotalImpacts)
	assert.Equal(t, 3, *run.TotalImpacts)

	var params map[string]any
	require.NoError(t, json.Unmarshal([]byte(run.ParamsJSON), &params))
	assert.Equal(t, float64(3), params["top_k"])

	impacts, err := store.GetAllImpacts()
	require.NoError(t, err)
	require.Len(t, impacts, 3)
	// Ordered by horizon then rank; positions restart for each horizon
	assert.Equal(t, int32(7), impacts[0].Horizon)
	assert.Equal(t, int32(1), impacts[0].RankPos)
	assert.Equal(t, "B", impacts[0].Event)
	assert.Equal(t, int32(2), impacts[1].RankPos)
	assert.True(t, impacts[1].EventDate.Equal(day(2)))
	assert.Equal(t, int32(14), impacts[2].Horizon)
	assert.Equal(t, int32(1), impacts[2].RankPos)
}

func TestHistoryStoreStatus(t *testing.T) {
	store := newTestHistoryStore(t)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Zero(t, status.TotalRuns)
	assert.Equal(t, map[string]int64{runsTable: 0, impactsTable: 0}, status.TableSizes)

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		start := first.Add(time.Duration(i) * time.Hour)
		runID, err := store.BeginRun("dispatch", start, nil)
		require.NoError(t, err)
		require.NoError(t, store.RecordImpacts(runID, "subway", []schema.ImpactRecord{
			{Date: day(1 + i), Horizon: schema.Horizon7, AbsoluteDelta: 1, Event: "E"},
		}))
		require.NoError(t, store.EndRun(runID, start.Add(time.Second), 1))
	}

	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 3, status.TotalRuns)
	assert.Equal(t, int64(3), status.LastRunID)
	assert.True(t, status.LastRunTime.Equal(first.Add(2*time.Hour)))
	assert.True(t, status.OldestRunTime.Equal(first))
	assert.Equal(t, 3, status.TotalImpacts)
	assert.Equal(t, int64(3), status.TableSizes[impactsTable])

	require.NoError(t, store.Clear())
	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Zero(t, status.TotalRuns)
	assert.Zero(t, status.TableSizes[impactsTable])
}

func TestHistoryStoreRecordImpactsEmpty(t *testing.T) {
	store := newTestHistoryStore(t)
	assert.NoError(t, store.RecordImpacts(1, "covid", nil))
}

func TestHistoryStoreEndRunUnknown(t *testing.T) {
	store := newTestHistoryStore(t)
	assert.Error(t, store.EndRun(42, time.Now(), 0))
}

func TestHistoryStoreNoneBackend(t *testing.T) {
	store, err := NewHistoryStore(schema.NoneBackend, "")
	require.NoError(t, err)

	runID, err := store.BeginRun("rank", time.Now(), nil)
	assert.NoError(t, err)
	assert.Zero(t, runID)
	assert.NoError(t, store.EndRun(runID, time.Now(), 0))
	assert.NoError(t, store.RecordImpacts(runID, "covid", []schema.ImpactRecord{{Event: "A"}}))

	runs, err := store.GetAllRuns()
	assert.NoError(t, err)
	assert.Empty(t, runs)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.NoError(t, store.Close())
}

func TestClearHistorySQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewHistoryStore(schema.SQLiteBackend, path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	require.NoError(t, ClearHistory(schema.SQLiteBackend, path, ""))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestExportHistory(t *testing.T) {
	t.Run("requires output file", func(t *testing.T) {
		err := ExportHistory(&MockHistoryStore{}, "")
		assert.ErrorContains(t, err, "--output-file")
	})

	t.Run("requires store", func(t *testing.T) {
		assert.Error(t, ExportHistory(nil, "out"))
	})

	t.Run("no runs", func(t *testing.T) {
		store := &MockHistoryStore{}
		store.On("GetStatus").Return(schema.HistoryStatus{Backend: "sqlite", Connected: true}, nil)
		err := ExportHistory(store, filepath.Join(t.TempDir(), "out"))
		assert.ErrorContains(t, err, "no run history")
		store.AssertExpectations(t)
	})

	t.Run("writes both files", func(t *testing.T) {
		store := newTestHistoryStore(t)
		runID, err := store.BeginRun("rank", time.Now(), map[string]any{"k": 2})
		require.NoError(t, err)
		require.NoError(t, store.RecordImpacts(runID, "covid", []schema.ImpactRecord{
			{Date: day(3), Horizon: schema.Horizon7, AbsoluteDelta: 4.5, Event: "Lockdown"},
		}))
		require.NoError(t, store.EndRun(runID, time.Now(), 1))

		out := filepath.Join(t.TempDir(), "history")
		require.NoError(t, ExportHistory(store, out))

		for _, suffix := range []string{".runs.parquet", ".impacts.parquet"} {
			info, err := os.Stat(out + suffix)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))
		}
	})

	t.Run("propagates read errors", func(t *testing.T) {
		store := &MockHistoryStore{}
		store.On("GetStatus").Return(schema.HistoryStatus{TotalRuns: 1, TableSizes: map[string]int64{}}, nil)
		store.On("GetAllRuns").Return(nil, assert.AnError)
		err := ExportHistory(store, filepath.Join(t.TempDir(), "out"))
		assert.ErrorIs(t, err, assert.AnError)
		store.AssertNotCalled(t, "GetAllImpacts")
	})
}

func TestPrintHistoryStatus(t *testing.T) {
	var buf bytes.Buffer
	PrintHistoryStatus(&buf, schema.HistoryStatus{
		Backend:       "sqlite",
		Connected:     true,
		TotalRuns:     2,
		LastRunID:     2,
		LastRunTime:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		OldestRunTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		TotalImpacts:  7,
		TableSizes:    map[string]int64{impactsTable: 7, runsTable: 2},
	})
	out := buf.String()
	assert.Contains(t, out, "Total Impacts Ranked: 7")
	// Tables print in sorted order
	assert.Less(t, bytes.Index(buf.Bytes(), []byte(impactsTable)), bytes.Index(buf.Bytes(), []byte(runsTable)))
}
