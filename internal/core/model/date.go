package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the day-month-year form requests carry dates in.
const DateLayout = "02-01-2006"

// ClimatologyYear indexes collapsed day-of-year rows. It is a leap year so
// Feb 29 keeps its own bucket.
const ClimatologyYear = 2220

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q is not DD-MM-YYYY", ErrInvalidWindow, s)
	}
	return t, nil
}

func FormatDate(t time.Time) string { return t.UTC().Format(DateLayout) }

// RangeLabel is the column label for values observed between first and last.
func RangeLabel(first, last time.Time) string {
	const layout = "02/01/2006"
	return first.UTC().Format(layout) + " - " + last.UTC().Format(layout)
}

// Window is a closed date interval.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Validate() error {
	if w.Start.After(w.End) {
		return fmt.Errorf("%w: start %s after end %s", ErrInvalidWindow, FormatDate(w.Start), FormatDate(w.End))
	}
	return nil
}

func ParseWindow(start, end string) (Window, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Window{}, err
	}
	w := Window{Start: s, End: e}
	return w, w.Validate()
}
