// Package segment implements exact optimal partitioning of a numeric sequence
// under the L2 (squared-error) cost.
//
// A segmentation into k+1 parts is described by k interior breakpoints. Each
// breakpoint is the first index of a new segment, so segments are the half-open
// ranges [0, b1), [b1, b2), ..., [bk, n). The final boundary n is implicit.
package segment

import (
	"fmt"
	"math"

	"github.com/huangsam/shiftpoint/schema"
)

// options control a single Segment call.
type options struct {
	minSize  int
	seriesID string
}

// Option customizes Segment.
type Option func(*options)

// WithMinSize sets the minimum number of samples per segment.
func WithMinSize(m int) Option {
	return func(o *options) { o.minSize = m }
}

// WithSeriesID labels the returned ChangePointSet.
func WithSeriesID(id string) Option {
	return func(o *options) { o.seriesID = id }
}

// Segment returns the k breakpoints that minimize the total within-segment
// squared error of values, together with that minimum cost.
//
// The search is exhaustive over every index and runs in O(k*n^2) time and
// O(k*n) space. Candidate boundaries are scanned in ascending order and only a
// strictly smaller cost replaces the incumbent, so on ties the earliest
// candidate boundary wins at every step of the recurrence.
func Segment(values []float64, k int, opts ...Option) (schema.ChangePointSet, error) {
	o := options{minSize: schema.DefaultMinSize}
	for _, opt := range opts {
		opt(&o)
	}

	n := len(values)
	if err := validate(values, k, o.minSize); err != nil {
		return schema.ChangePointSet{}, err
	}

	c := newL2Cost(values)
	segments := k + 1
	ms := o.minSize

	// best[s][j]: min cost of splitting values[0:j] into s+1 segments.
	// prev[s][j]: start of the last of those segments.
	best := make([][]float64, segments)
	prev := make([][]int, segments)
	for s := range best {
		best[s] = make([]float64, n+1)
		prev[s] = make([]int, n+1)
		for j := range best[s] {
			best[s][j] = math.Inf(1)
		}
	}
	for j := ms; j <= n; j++ {
		best[0][j] = c.cost(0, j)
	}

	for s := 1; s < segments; s++ {
		// The last segment must leave room for s earlier segments of minSize each.
		for j := (s + 1) * ms; j <= n; j++ {
			bestCost := math.Inf(1)
			bestPrev := -1
			for t := s * ms; t <= j-ms; t++ {
				left := best[s-1][t]
				if math.IsInf(left, 1) {
					continue
				}
				total := left + c.cost(t, j)
				if total < bestCost {
					bestCost = total
					bestPrev = t
				}
			}
			best[s][j] = bestCost
			prev[s][j] = bestPrev
		}
	}

	indices := make([]int, k)
	end := n
	for s := k; s >= 1; s-- {
		end = prev[s][end]
		indices[s-1] = end
	}

	return schema.ChangePointSet{
		SeriesID: o.seriesID,
		K:        k,
		N:        n,
		Indices:  indices,
		Cost:     best[k][n],
	}, nil
}

// MaxBreakpoints returns the largest k accepted for a series of length n.
func MaxBreakpoints(n, minSize int) int {
	if minSize < 1 {
		minSize = 1
	}
	return n/minSize - 1
}

func validate(values []float64, k, minSize int) error {
	n := len(values)
	if minSize < 1 {
		return &schema.RangeError{Name: "min-size", Value: minSize, Min: 1, Max: max(n, 1)}
	}
	maxK := MaxBreakpoints(n, minSize)
	if k < 1 || k > maxK {
		return &schema.RangeError{Name: "k", Value: k, Min: 1, Max: maxK}
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("value at index %d is not finite: %w", i, schema.ErrParameterOutOfRange)
		}
	}
	return nil
}
