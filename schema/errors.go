package schema

import (
	"errors"
	"fmt"
)

// Sentinel conditions reported by ingestion and the core.
var (
	ErrParameterOutOfRange = errors.New("parameter out of range")
	ErrMalformedDate       = errors.New("malformed date")
	ErrInvalidSeries       = errors.New("invalid series")
	ErrUnknownMetric       = errors.New("unknown metric")
)

// RangeError describes a numeric parameter outside its accepted interval.
type RangeError struct {
	Name     string
	Value    int
	Min, Max int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: %s=%d, want %d..%d", ErrParameterOutOfRange, e.Name, e.Value, e.Min, e.Max)
}

func (e *RangeError) Unwrap() error { return ErrParameterOutOfRange }

// DateError describes an unparseable date in an input table.
type DateError struct {
	Row   int
	Value string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("%s at row %d: %q", ErrMalformedDate, e.Row, e.Value)
}

func (e *DateError) Unwrap() error { return ErrMalformedDate }

// IsValidation reports whether err stems from caller input rather than a system fault.
func IsValidation(err error) bool {
	for _, target := range []error{ErrParameterOutOfRange, ErrMalformedDate, ErrInvalidSeries, ErrUnknownMetric} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
