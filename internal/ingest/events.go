package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/huangsam/shiftpoint/schema"
)

// Event table column names, matched case-insensitively.
const (
	EventDateColumn        = "Date"
	EventDescriptionColumn = "Event Description"
)

// eventDateLayouts are tried after commas are removed, so "Mar 3, 2020" parses as "Mar 3 2020".
var eventDateLayouts = []string{"Jan 2 2006", "January 2 2006", time.DateOnly}

// ReadEventsCSV reads the event table. Events on or after cutoff are dropped
// when cutoff is non-zero. Rows with a blank description are skipped.
func ReadEventsCSV(r io.Reader, cutoff time.Time) ([]schema.Event, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event header: %w", err)
	}

	dateCol, descCol := -1, -1
	for i, h := range header {
		switch {
		case strings.EqualFold(strings.TrimSpace(h), EventDateColumn):
			dateCol = i
		case strings.EqualFold(strings.TrimSpace(h), EventDescriptionColumn):
			descCol = i
		}
	}
	if dateCol < 0 || descCol < 0 {
		return nil, fmt.Errorf("event table needs %q and %q columns", EventDateColumn, EventDescriptionColumn)
	}

	var events []schema.Event
	for row := 1; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("event row %d: %w", row, err)
		}

		desc := strings.TrimSpace(fields[descCol])
		if desc == "" {
			continue
		}
		date, err := ParseEventDate(fields[dateCol])
		if err != nil {
			return nil, &schema.DateError{Row: row, Value: fields[dateCol]}
		}
		if !cutoff.IsZero() && !date.Before(schema.DayOf(cutoff)) {
			continue
		}
		events = append(events, schema.Event{Date: date, Description: desc})
	}
	return events, nil
}

// ReadEventsFile opens path and reads it with ReadEventsCSV.
func ReadEventsFile(path string, cutoff time.Time) ([]schema.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadEventsCSV(f, cutoff)
}

// ParseEventDate accepts "Mar 3, 2020", "March 3, 2020" or ISO dates.
func ParseEventDate(s string) (time.Time, error) {
	cleaned := strings.Join(strings.Fields(strings.ReplaceAll(s, ",", "")), " ")
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", schema.ErrMalformedDate, s)
}
