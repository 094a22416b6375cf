package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	dispatchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "shiftpoint", Subsystem: "dispatch", Name: "requests_total", Help: "Dispatch requests by trigger."},
		[]string{"trigger"},
	)
	dispatchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "shiftpoint", Subsystem: "dispatch", Name: "errors_total", Help: "Failed dispatch requests by trigger."},
		[]string{"trigger"},
	)
	segmentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "shiftpoint", Subsystem: "segment", Name: "duration_seconds", Help: "Time spent producing change points, memo lookups included.", Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8)},
	)
)

func init() {
	_ = prometheus.Register(dispatchRequests)
	_ = prometheus.Register(dispatchErrors)
	_ = prometheus.Register(segmentDuration)
}
