package schema

import "time"

// BreakpointRow is one change point of a segmentation as shown to the user.
type BreakpointRow struct {
	Index int       `json:"index"`
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
	Event string    `json:"event"`
}

// BreakpointReport is the segmentation of one metric.
type BreakpointReport struct {
	Metric string          `json:"metric"`
	K      int             `json:"k"`
	Field  SeriesField     `json:"field"`
	Cost   float64         `json:"cost"`
	Rows   []BreakpointRow `json:"rows"`
}

// MetricRanking is the top-K impact table of one metric for one horizon.
type MetricRanking struct {
	Metric  string         `json:"metric"`
	Horizon Horizon        `json:"horizon"`
	Impacts []ImpactRecord `json:"impacts"`
}

// MetricImpact is the latest impact on or before Date for one metric.
// Impact is meaningful only when Found is true.
type MetricImpact struct {
	Metric  string       `json:"metric"`
	Date    time.Time    `json:"date"`
	Horizon Horizon      `json:"horizon"`
	Found   bool         `json:"found"`
	Impact  ImpactRecord `json:"impact"`
}

// RankedImpact adds presentation data to an ImpactRecord.
type RankedImpact struct {
	Rank  int    `json:"rank"`
	Label string `json:"label"`
	ImpactRecord
}

// GetPlainLabel returns a plain text label for a 0-100 relative score.
func GetPlainLabel(score float64) string {
	switch {
	case score >= 80:
		return "Critical"
	case score >= 60:
		return "High"
	case score >= 40:
		return "Moderate"
	default:
		return "Low"
	}
}

// MaxMagnitude returns the largest absolute delta in rs, or 0 for an empty slice.
func MaxMagnitude(rs []ImpactRecord) float64 {
	var out float64
	for _, r := range rs {
		out = max(out, r.AbsoluteDelta)
	}
	return out
}

// EnrichImpacts adds rank and a label relative to the largest delta in the table.
func EnrichImpacts(rs []ImpactRecord) []RankedImpact {
	top := MaxMagnitude(rs)
	output := make([]RankedImpact, len(rs))
	for i, r := range rs {
		var score float64
		if top > 0 {
			score = r.AbsoluteDelta / top * 100
		}
		output[i] = RankedImpact{
			Rank:         i + 1,
			Label:        GetPlainLabel(score),
			ImpactRecord: r,
		}
	}
	return output
}

// Rankings flattens the non-empty impact tables of a dispatch result.
func (r DispatchResult) Rankings() []MetricRanking {
	var out []MetricRanking
	for _, b := range r.Metrics {
		if len(b.Table7) > 0 {
			out = append(out, MetricRanking{Metric: b.Metric, Horizon: Horizon7, Impacts: b.Table7})
		}
		if len(b.Table14) > 0 {
			out = append(out, MetricRanking{Metric: b.Metric, Horizon: Horizon14, Impacts: b.Table14})
		}
	}
	return out
}
