package domain

import "time"

const DateLayout = "2006-01-02"

// DateRange is an inclusive span of calendar days in UTC.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, NewValidationError("parse_date_range", "invalid start date %q", start)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, NewValidationError("parse_date_range", "invalid end date %q", end)
	}
	r := DateRange{Start: s, End: e}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return NewValidationError("date_range", "start and end dates are required")
	}
	if r.End.Before(r.Start) {
		return NewValidationError("date_range", "end date must not be before start date")
	}
	return nil
}

// Days counts both the start and the end date.
func (r DateRange) Days() int32 {
	return int32(r.End.Sub(r.Start).Hours()/24) + 1
}

// Overlaps is true when the two ranges share at least one day.
func (r DateRange) Overlaps(o DateRange) bool {
	return !r.Start.After(o.End) && !o.Start.After(r.End)
}
