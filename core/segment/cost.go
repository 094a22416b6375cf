package segment

// l2Cost answers within-segment squared-error queries in constant time.
// Prefix sums are accumulated once, left to right, so repeated runs agree bit for bit.
type l2Cost struct {
	sum   []float64 // sum[i] = values[0] + ... + values[i-1]
	sumSq []float64 // sumSq[i] = values[0]^2 + ... + values[i-1]^2
}

func newL2Cost(values []float64) *l2Cost {
	n := len(values)
	c := &l2Cost{
		sum:   make([]float64, n+1),
		sumSq: make([]float64, n+1),
	}
	for i, v := range values {
		c.sum[i+1] = c.sum[i] + v
		c.sumSq[i+1] = c.sumSq[i] + v*v
	}
	return c
}

// cost returns the sum of squared deviations from the mean over values[start:end].
func (c *l2Cost) cost(start, end int) float64 {
	length := end - start
	if length <= 0 {
		return 0
	}
	s := c.sum[end] - c.sum[start]
	sq := c.sumSq[end] - c.sumSq[start]
	v := sq - s*s/float64(length)
	if v < 0 {
		// cancellation on constant runs
		return 0
	}
	return v
}

// Cost returns the total L2 cost of partitioning values at the given interior
// breakpoints. Indices must be strictly increasing and inside (0, len(values)).
func Cost(values []float64, indices []int) float64 {
	c := newL2Cost(values)
	total := 0.0
	start := 0
	for _, idx := range indices {
		total += c.cost(start, idx)
		start = idx
	}
	return total + c.cost(start, len(values))
}
