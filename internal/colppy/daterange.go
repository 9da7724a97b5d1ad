package colppy

import (
	"time"
)

const DateLayout = "2006-01-02"

// DateRange is an ordered pair of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange validates exactly two ISO dates and orders them ascending.
func NewDateRange(dates ...string) (DateRange, error) {
	if len(dates) != 2 {
		return DateRange{}, &ValidationError{Field: "dateRange", Value: dates, Err: ErrInvalidDateRange}
	}
	parsed := make([]time.Time, 2)
	for i, d := range dates {
		t, err := time.Parse(DateLayout, d)
		if err != nil {
			return DateRange{}, &ValidationError{Field: "dateRange", Value: d, Err: ErrInvalidDateRange}
		}
		parsed[i] = t
	}
	if parsed[0].After(parsed[1]) {
		parsed[0], parsed[1] = parsed[1], parsed[0]
	}
	return DateRange{Start: parsed[0], End: parsed[1]}, nil
}

func (r DateRange) From() string { return r.Start.Format(DateLayout) }
func (r DateRange) To() string   { return r.End.Format(DateLayout) }

func (r DateRange) IsZero() bool { return r.Start.IsZero() && r.End.IsZero() }

func (r DateRange) String() string { return r.From() + ".." + r.To() }
