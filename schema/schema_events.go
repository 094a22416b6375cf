package schema

import (
	"sort"
	"strings"
	"time"
)

// Event is a dated annotation as read from the event table.
type Event struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
}

// EventLog maps dates to descriptions. Entries are chronological and dates are unique.
type EventLog struct {
	Entries []Event `json:"entries"`
}

// NewEventLog sorts events chronologically and concatenates descriptions sharing
// a calendar date with sep, keeping their input order.
func NewEventLog(events []Event, sep string) EventLog {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return DayOf(sorted[i].Date).Before(DayOf(sorted[j].Date))
	})

	var entries []Event
	var parts []string
	flush := func(d time.Time) {
		if len(parts) > 0 {
			entries = append(entries, Event{Date: d, Description: strings.Join(parts, sep)})
			parts = nil
		}
	}

	var current time.Time
	for i, ev := range sorted {
		day := DayOf(ev.Date)
		if i > 0 && !day.Equal(current) {
			flush(current)
		}
		current = day
		parts = append(parts, ev.Description)
	}
	flush(current)
	return EventLog{Entries: entries}
}

// DistinctDates returns the number of unique event dates.
func (l EventLog) DistinctDates() int { return len(l.Entries) }

// DayOf truncates t to midnight UTC of its calendar day.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
