// Package daterange splits a publication-date span into contiguous
// fixed-length intervals for longitudinal counts.
package daterange

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the layout used when printing dates in reports.
const DateLayout = "2006-01-02"

// ErrInvalidRange is matched by every InvalidRangeError.
var ErrInvalidRange = errors.New("invalid date range")

// InvalidRangeError reports a from date after the to date, or a partition
// request without an end date.
type InvalidRangeError struct {
	From time.Time
	To   time.Time
}

// Error implements the error interface.
func (e *InvalidRangeError) Error() string {
	if e.To.IsZero() {
		return fmt.Sprintf("invalid date range: partitioning from %s requires an end date", e.From.Format(DateLayout))
	}
	return fmt.Sprintf("invalid date range: to date %s is before from date %s",
		e.To.Format(DateLayout), e.From.Format(DateLayout))
}

// Unwrap returns ErrInvalidRange for use with errors.Is.
func (e *InvalidRangeError) Unwrap() error {
	return ErrInvalidRange
}

// Range is an inclusive span of calendar dates.
type Range struct {
	From time.Time `json:"from" yaml:"from"`
	To   time.Time `json:"to" yaml:"to"`
}

// String renders the range as "2006-01-02 to 2006-12-31".
func (r Range) String() string {
	return r.From.Format(DateLayout) + " to " + r.To.Format(DateLayout)
}

// Day truncates t to its calendar date at UTC midnight.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Partition splits [from, to] into consecutive ranges of intervalYears
// calendar years each. Each range starts the day after the previous one ends
// and ends the day before the same month and day intervalYears later; the
// last range is clipped to to.
//
// intervalYears <= 0 yields the single range [from, to].
func Partition(from, to time.Time, intervalYears int) ([]Range, error) {
	from, to = Day(from), Day(to)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, &InvalidRangeError{From: from, To: to}
	}
	if intervalYears <= 0 {
		return []Range{{From: from, To: to}}, nil
	}
	if to.IsZero() || from.IsZero() {
		return nil, &InvalidRangeError{From: from, To: to}
	}

	var ranges []Range
	end := from.AddDate(0, 0, -1)
	for end.Before(to) {
		start := end.AddDate(0, 0, 1)
		// AddDate normalises Feb 29 to Mar 1 in non-leap years.
		end = start.AddDate(intervalYears, 0, 0).AddDate(0, 0, -1)
		if end.After(to) {
			end = to
		}
		ranges = append(ranges, Range{From: start, To: end})
	}
	return ranges, nil
}

var dateLayouts = []string{
	"01-02-2006",
	DateLayout,
	"2006/01/02",
}

// ParseDate parses MM-DD-YYYY, YYYY-MM-DD or YYYY/MM/DD into a UTC date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected MM-DD-YYYY or YYYY-MM-DD", s)
}
