package schema

import "time"

// Trace is one data series of a chart. Rendering is left to the consumer.
type Trace struct {
	Name string      `json:"name"`
	Kind TraceKind   `json:"kind"`
	X    []time.Time `json:"x"`
	Y    []float64   `json:"y,omitempty"`
}

// Chart is a renderer-agnostic description of a metric plot.
type Chart struct {
	Title  string  `json:"title"`
	Traces []Trace `json:"traces"`
}

// Clone returns a deep copy of c.
func (c Chart) Clone() Chart {
	out := Chart{Title: c.Title, Traces: make([]Trace, len(c.Traces))}
	for i, t := range c.Traces {
		out.Traces[i] = t.clone()
	}
	return out
}

// WithOverlay returns a copy of c with traces appended. The receiver is left untouched.
func (c Chart) WithOverlay(traces ...Trace) Chart {
	out := c.Clone()
	for _, t := range traces {
		out.Traces = append(out.Traces, t.clone())
	}
	return out
}

func (t Trace) clone() Trace {
	cp := Trace{Name: t.Name, Kind: t.Kind}
	if t.X != nil {
		cp.X = append([]time.Time(nil), t.X...)
	}
	if t.Y != nil {
		cp.Y = append([]float64(nil), t.Y...)
	}
	return cp
}

// MetricBundle is the per-metric part of a dispatch result.
type MetricBundle struct {
	Metric  string         `json:"metric"`
	Overlay Chart          `json:"base_chart_overlay"`
	Table7  []ImpactRecord `json:"table7"`
	Table14 []ImpactRecord `json:"table14"`
	Markers []time.Time    `json:"markers,omitempty"`
}

// DispatchResult is the trigger-keyed bundle returned for one dispatch call.
type DispatchResult struct {
	RequestID string         `json:"request_id"`
	Trigger   Trigger        `json:"trigger"`
	Metrics   []MetricBundle `json:"metrics"`
}
