package dispatch

import (
	"slices"
	"time"

	"github.com/huangsam/shiftpoint/schema"
)

// Request is a resolved dispatch request. The concrete type identifies the trigger.
type Request interface {
	Trigger() schema.Trigger
}

// DateSelected asks for the latest event impact on or before Date.
type DateSelected struct {
	Date time.Time
}

// RecomputeRanked asks for the full top-K impact tables.
type RecomputeRanked struct {
	Clicks int
}

// ChangePointCountChanged asks for breakpoint markers with a new count K.
// An empty Metric applies K to every metric.
type ChangePointCountChanged struct {
	Metric string
	K      int
}

// NoTrigger returns the base charts untouched.
type NoTrigger struct{}

// Trigger implements Request.
func (DateSelected) Trigger() schema.Trigger { return schema.DateSelectedTrigger }

// Trigger implements Request.
func (RecomputeRanked) Trigger() schema.Trigger { return schema.RecomputeRankedTrigger }

// Trigger implements Request.
func (ChangePointCountChanged) Trigger() schema.Trigger {
	return schema.ChangePointCountChangedTrigger
}

// Trigger implements Request.
func (NoTrigger) Trigger() schema.Trigger { return schema.NoTrigger }

// Inputs is the raw state of the controls at the time of a call.
type Inputs struct {
	Fired  []schema.Trigger
	Date   time.Time
	Clicks int
	Metric string
	K      int
}

// Resolve turns raw control state into exactly one Request.
// A selected date wins over a ranking request, which wins over a count change.
// A ranking request only counts once the control has been clicked.
func Resolve(in Inputs) Request {
	switch {
	case slices.Contains(in.Fired, schema.DateSelectedTrigger) && !in.Date.IsZero():
		return DateSelected{Date: in.Date}
	case slices.Contains(in.Fired, schema.RecomputeRankedTrigger) && in.Clicks > 0:
		return RecomputeRanked{Clicks: in.Clicks}
	case slices.Contains(in.Fired, schema.ChangePointCountChangedTrigger):
		return ChangePointCountChanged{Metric: in.Metric, K: in.K}
	default:
		return NoTrigger{}
	}
}
