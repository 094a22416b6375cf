package impact

import (
	"testing"
	"time"

	"github.com/huangsam/shiftpoint/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(n int) time.Time {
	return time.Date(2020, time.May, n, 0, 0, 0, 0, time.UTC)
}

func point(day int, delta7, delta14 float64, event string) schema.MappedPoint {
	return schema.MappedPoint{
		Record: schema.EnrichedRecord{
			Index:  day,
			Record: schema.Record{Date: d(day), Delta7: delta7, Delta14: delta14},
			Event:  &event,
		},
		Event: event,
	}
}

func TestRank(t *testing.T) {
	t.Run("ties keep chronological order", func(t *testing.T) {
		mapped := []schema.MappedPoint{
			point(1, 5.0, 0, "a"),
			point(2, 9.0, 0, "b"),
			point(3, 9.0, 0, "c"),
		}

		got, err := Rank(mapped, schema.Horizon7, 2)

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, d(2), got[0].Date)
		assert.Equal(t, 9.0, got[0].AbsoluteDelta)
		assert.Equal(t, d(3), got[1].Date)
		assert.Equal(t, 9.0, got[1].AbsoluteDelta)
	})

	t.Run("ties resolved chronologically even when input is not", func(t *testing.T) {
		mapped := []schema.MappedPoint{
			point(9, 3, 0, "late"),
			point(4, 3, 0, "early"),
		}
		got, err := Rank(mapped, schema.Horizon7, 10)
		require.NoError(t, err)
		assert.Equal(t, "early", got[0].Event)
		assert.Equal(t, "late", got[1].Event)
	})

	t.Run("horizons rank independently on magnitude", func(t *testing.T) {
		mapped := []schema.MappedPoint{
			point(1, 1, -20, "a"),
			point(2, 8, 2, "b"),
			point(3, -4, 6, "c"),
		}

		h7, err := Rank(mapped, schema.Horizon7, 3)
		require.NoError(t, err)
		h14, err := Rank(mapped, schema.Horizon14, 3)
		require.NoError(t, err)

		assert.Equal(t, []string{"b", "c", "a"}, events(h7))
		assert.Equal(t, []string{"a", "c", "b"}, events(h14))
		assert.Equal(t, 4.0, h7[1].AbsoluteDelta)
		assert.Equal(t, schema.Horizon14, h14[0].Horizon)
		assert.Equal(t, 20.0, h14[0].AbsoluteDelta)
	})

	t.Run("length is min of topK and input", func(t *testing.T) {
		mapped := []schema.MappedPoint{point(1, 1, 1, "a"), point(2, 2, 2, "b")}
		for topK, want := range map[int]int{0: 0, 1: 1, 2: 2, 10: 2} {
			got, err := Rank(mapped, schema.Horizon7, topK)
			require.NoError(t, err)
			assert.Len(t, got, want, "topK=%d", topK)
		}
	})

	t.Run("empty input is not an error", func(t *testing.T) {
		got, err := Rank(nil, schema.Horizon14, 10)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("output is sorted descending", func(t *testing.T) {
		mapped := []schema.MappedPoint{
			point(1, 2.5, 0, "a"), point(2, 7.1, 0, "b"), point(3, 0.4, 0, "c"),
			point(4, 7.1, 0, "d"), point(5, 3.3, 0, "e"),
		}
		got, err := Rank(mapped, schema.Horizon7, 5)
		require.NoError(t, err)
		for i := 1; i < len(got); i++ {
			assert.GreaterOrEqual(t, got[i-1].AbsoluteDelta, got[i].AbsoluteDelta)
			if got[i-1].AbsoluteDelta == got[i].AbsoluteDelta {
				assert.True(t, got[i-1].Date.Before(got[i].Date))
			}
		}
	})

	t.Run("rejects invalid parameters", func(t *testing.T) {
		_, err := Rank(nil, schema.Horizon(30), 10)
		assert.ErrorIs(t, err, schema.ErrParameterOutOfRange)
		_, err = Rank(nil, schema.Horizon7, -1)
		assert.ErrorIs(t, err, schema.ErrParameterOutOfRange)
	})
}

func TestBefore(t *testing.T) {
	mapped := []schema.MappedPoint{
		point(3, 1.5, 2.5, "a"),
		point(10, -6.25, 1, "b"),
		point(20, 4, 4, "c"),
	}

	t.Run("latest on or before cutoff", func(t *testing.T) {
		got, ok := Before(mapped, d(15), schema.Horizon7)
		require.True(t, ok)
		assert.Equal(t, "b", got.Event)
		assert.Equal(t, 6.25, got.AbsoluteDelta)
		assert.Equal(t, schema.Horizon7, got.Horizon)
	})

	t.Run("cutoff is inclusive", func(t *testing.T) {
		got, ok := Before(mapped, d(20), schema.Horizon14)
		require.True(t, ok)
		assert.Equal(t, "c", got.Event)
	})

	t.Run("cutoff before every mapped date is absent", func(t *testing.T) {
		got, ok := Before(mapped, d(1), schema.Horizon7)
		assert.False(t, ok)
		assert.Equal(t, schema.ImpactRecord{}, got)
	})

	t.Run("empty input is absent", func(t *testing.T) {
		_, ok := Before(nil, d(30), schema.Horizon7)
		assert.False(t, ok)
	})
}

func events(rs []schema.ImpactRecord) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Event
	}
	return out
}
