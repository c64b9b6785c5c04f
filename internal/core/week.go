package core

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// WeekRange is a Monday to Sunday span, both ends inclusive.
type WeekRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// WeekStart returns the Monday of the week containing d.
func WeekStart(d Date) Date {
	dow := int(d.Weekday()) // Sunday=0 ... Saturday=6
	offset := 1 - dow
	if dow == 0 {
		offset = -6
	}
	return DateOf(d.Time).AddDays(offset)
}

// WeekOf returns the full Monday to Sunday range containing d.
func WeekOf(d Date) WeekRange {
	start := WeekStart(d)
	return WeekRange{Start: start, End: start.AddDays(6)}
}

// Contains reports whether d falls inside the range.
func (w WeekRange) Contains(d Date) bool {
	day := DateOf(d.Time)
	return !day.Before(w.Start.Time) && !day.After(w.End.Time)
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp. For timestamps the
// calendar date is taken as written, ignoring the offset.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ParseWeek resolves the week a request refers to. An empty value means the
// week containing now.
func ParseWeek(s string, now time.Time) (Date, error) {
	if strings.TrimSpace(s) == "" {
		return WeekStart(DateOf(now)), nil
	}
	d, err := ParseDate(s)
	if err != nil {
		return Date{}, err
	}
	return WeekStart(d), nil
}
