// Package schema has models, constants and sentinel errors for all parts of shiftpoint.
package schema

import (
	"math"
	"time"
)

// Record is one daily observation of a metric together with its precomputed forecast deltas.
type Record struct {
	Date          time.Time `json:"date"`
	Raw           float64   `json:"raw"`            // Observed value for the day
	MovingAverage float64   `json:"moving_average"` // Smoothed value used for segmentation
	Forecast      float64   `json:"forecast"`       // 7-day-ahead forecast for the day
	Delta7        float64   `json:"delta7"`         // Absolute forecast deviation over 7 days, rounded at ingestion
	Delta14       float64   `json:"delta14"`        // Absolute forecast deviation over 14 days, rounded at ingestion
}

// TimeSeries is a chronologically ordered, date-unique sequence of records.
// It is read-only after ingestion and may be shared across goroutines.
type TimeSeries struct {
	ID      string   `json:"id"`
	Records []Record `json:"records"`
}

// Len returns the number of records.
func (ts TimeSeries) Len() int { return len(ts.Records) }

// Values extracts one numeric column in record order.
func (ts TimeSeries) Values(field SeriesField) []float64 {
	out := make([]float64, len(ts.Records))
	for i, r := range ts.Records {
		switch field {
		case RawField:
			out[i] = r.Raw
		default:
			out[i] = r.MovingAverage
		}
	}
	return out
}

// Dates returns the record dates in order.
func (ts TimeSeries) Dates() []time.Time {
	out := make([]time.Time, len(ts.Records))
	for i, r := range ts.Records {
		out[i] = r.Date
	}
	return out
}

// EnrichedRecord is a record carrying the forward-filled event description.
// Event is nil for records that precede every event.
type EnrichedRecord struct {
	Index int `json:"index"`
	Record
	Event *string `json:"event"`
}

// EnrichedSeries is a TimeSeries after event alignment.
type EnrichedSeries struct {
	ID      string           `json:"id"`
	Records []EnrichedRecord `json:"records"`
}

// ChangePointSet is the result of segmenting a series into K+1 segments.
// Indices holds the K interior boundaries, each the first index of a new segment.
// N is the implicit final boundary and is not part of Indices.
type ChangePointSet struct {
	SeriesID string  `json:"series_id"`
	K        int     `json:"k"`
	N        int     `json:"n"`
	Indices  []int   `json:"indices"`
	Cost     float64 `json:"cost"`
}

// Bounds returns the segment end positions including the final boundary N.
func (c ChangePointSet) Bounds() []int {
	out := make([]int, 0, len(c.Indices)+1)
	out = append(out, c.Indices...)
	return append(out, c.N)
}

// Contains reports whether idx is one of the interior breakpoints.
func (c ChangePointSet) Contains(idx int) bool {
	for _, v := range c.Indices {
		if v == idx {
			return true
		}
		if v > idx {
			return false
		}
	}
	return false
}

// MappedPoint is the earliest change point that falls inside an event's forward-filled range.
type MappedPoint struct {
	Record EnrichedRecord `json:"record"`
	Event  string         `json:"event"`
}

// ImpactRecord is the magnitude of change at one mapped change point for one horizon.
type ImpactRecord struct {
	Date          time.Time `json:"date"`
	Horizon       Horizon   `json:"horizon"`
	AbsoluteDelta float64   `json:"absolute_delta"`
	Event         string    `json:"event"`
}

// Delta returns the forecast delta of r for the horizon.
func (h Horizon) Delta(r Record) float64 {
	if h == Horizon14 {
		return r.Delta14
	}
	return r.Delta7
}

// Magnitude returns the absolute forecast delta of r for the horizon.
func (h Horizon) Magnitude(r Record) float64 {
	return math.Abs(h.Delta(r))
}
