package shared

import "time"

// ReportPeriod names a reporting window resolved against "now".
type ReportPeriod string

const (
	PeriodWeek    ReportPeriod = "week"
	PeriodMonth   ReportPeriod = "month"
	PeriodQuarter ReportPeriod = "quarter"
	PeriodYear    ReportPeriod = "year"
)

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns the window length.
func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// ResolvePeriod maps a report period to its current window and the prior
// window of equal length, both ending-aligned so percent changes compare
// like with like.
func ResolvePeriod(period ReportPeriod, now time.Time) (current, previous Window, err error) {
	var start time.Time
	switch period {
	case PeriodWeek:
		start = now.AddDate(0, 0, -7)
	case PeriodMonth:
		start = now.AddDate(0, -1, 0)
	case PeriodQuarter:
		start = now.AddDate(0, -3, 0)
	case PeriodYear:
		start = now.AddDate(-1, 0, 0)
	default:
		return Window{}, Window{}, Validationf("unknown period %q", period)
	}
	current = Window{Start: start, End: now}
	previous = Window{Start: start.Add(-current.Duration()), End: start}
	return current, previous, nil
}
