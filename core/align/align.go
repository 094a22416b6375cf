// Package align joins sparse event logs onto daily series and maps change points to events.
package align

import (
	"github.com/huangsam/shiftpoint/schema"
)

// Align left-joins series dates against event dates and forward-fills the description.
// Each record carries the description of the latest event dated on or before it.
// Records earlier than the first event keep a nil description.
func Align(series schema.TimeSeries, events schema.EventLog) schema.EnrichedSeries {
	out := schema.EnrichedSeries{
		ID:      series.ID,
		Records: make([]schema.EnrichedRecord, len(series.Records)),
	}

	next := 0
	var current *string
	for i, r := range series.Records {
		day := schema.DayOf(r.Date)
		for next < len(events.Entries) && !schema.DayOf(events.Entries[next].Date).After(day) {
			desc := events.Entries[next].Description
			current = &desc
			next++
		}
		out.Records[i] = schema.EnrichedRecord{Index: i, Record: r, Event: current}
	}
	return out
}

// MapToEvents keeps, for every group of records sharing a non-nil description,
// the earliest record whose index is a change point. Groups without a change
// point are omitted. The result is in chronological order.
func MapToEvents(enriched schema.EnrichedSeries, cps schema.ChangePointSet) []schema.MappedPoint {
	seen := make(map[string]struct{})
	var mapped []schema.MappedPoint
	for _, r := range enriched.Records {
		if r.Event == nil {
			continue
		}
		if !cps.Contains(r.Index) {
			continue
		}
		if _, dup := seen[*r.Event]; dup {
			continue
		}
		seen[*r.Event] = struct{}{}
		mapped = append(mapped, schema.MappedPoint{Record: r, Event: *r.Event})
	}
	return mapped
}

// BreakpointCount is the segmentation granularity used by the event pipeline:
// one breakpoint per distinct event date.
func BreakpointCount(events schema.EventLog) int {
	return events.DistinctDates()
}
