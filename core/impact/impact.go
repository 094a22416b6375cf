// Package impact scores mapped change points by forecast deviation and ranks them.
package impact

import (
	"fmt"
	"sort"
	"time"

	"github.com/huangsam/shiftpoint/schema"
)

// Rank orders mapped points by descending absolute forecast delta at horizon h
// and returns at most topK of them. Equal magnitudes keep chronological order.
func Rank(mapped []schema.MappedPoint, h schema.Horizon, topK int) ([]schema.ImpactRecord, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("horizon %d: %w", int(h), schema.ErrParameterOutOfRange)
	}
	if topK < 0 {
		return nil, &schema.RangeError{Name: "top-k", Value: topK, Min: 0, Max: len(mapped)}
	}

	records := toRecords(mapped, h)
	if len(records) == 0 {
		return []schema.ImpactRecord{}, nil
	}

	// Chronological first so the stable sort below resolves ties toward earlier dates.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].AbsoluteDelta > records[j].AbsoluteDelta
	})

	return records[:min(topK, len(records))], nil
}

// Before returns the mapped point with the latest date on or before cutoff.
// The boolean is false when every mapped point is later than cutoff.
func Before(mapped []schema.MappedPoint, cutoff time.Time, h schema.Horizon) (schema.ImpactRecord, bool) {
	var (
		best  schema.ImpactRecord
		found bool
	)
	for _, m := range mapped {
		if m.Record.Date.After(cutoff) {
			continue
		}
		if !found || m.Record.Date.After(best.Date) {
			best = newRecord(m, h)
			found = true
		}
	}
	return best, found
}

func toRecords(mapped []schema.MappedPoint, h schema.Horizon) []schema.ImpactRecord {
	out := make([]schema.ImpactRecord, 0, len(mapped))
	for _, m := range mapped {
		out = append(out, newRecord(m, h))
	}
	return out
}

func newRecord(m schema.MappedPoint, h schema.Horizon) schema.ImpactRecord {
	return schema.ImpactRecord{
		Date:          m.Record.Date,
		Horizon:       h,
		AbsoluteDelta: h.Magnitude(m.Record.Record),
		Event:         m.Event,
	}
}
