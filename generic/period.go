package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Half-open range of calendar days
// =============================================================================

// Period is the range [Start, End). End is exclusive so that a calendar month
// is Period{StartOfMonth(y, m), StartOfMonth(y, m+1)}.
type Period struct {
	Start Date
	End   Date
}

// NewPeriod validates the bounds. An empty period (Start == End) is allowed.
func NewPeriod(start, end Date) (Period, error) {
	if end.Before(start) {
		return Period{}, fmt.Errorf("%w: %s..%s", ErrInvalidPeriod, start, end)
	}
	return Period{Start: start, End: end}, nil
}

// MonthPeriod returns the whole calendar month.
func MonthPeriod(year int, month time.Month) Period {
	start := StartOfMonth(year, month)
	return Period{Start: start, End: start.AddMonths(1)}
}

// Contains returns true if d is in [Start, End).
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.Before(p.End)
}

// Len is the number of days in the period.
func (p Period) Len() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysBetween(p.Start, p.End)
}

// Days returns every day in the period in ascending order.
func (p Period) Days() []Date {
	days := make([]Date, 0, p.Len())
	for current := p.Start; current.Before(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Windows returns the fetch windows the period touches.
func (p Period) Windows() []Window {
	if p.Len() == 0 {
		return nil
	}
	return WindowsBetween(p.Start, p.End.AddDays(-1))
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + ")"
}

// =============================================================================
// WINDOW - (year, month) batch unit for incremental record retrieval
// =============================================================================

type Window struct {
	Year  int
	Month time.Month
}

// ParseWindow parses "yyyy-MM".
func ParseWindow(s string) (Window, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window %q: %w", s, err)
	}
	return Window{Year: t.Year(), Month: t.Month()}, nil
}

func (w Window) String() string { return fmt.Sprintf("%04d-%02d", w.Year, int(w.Month)) }

// Period returns the days covered by the window.
func (w Window) Period() Period { return MonthPeriod(w.Year, w.Month) }

// Contains reports whether d falls in the window's month.
func (w Window) Contains(d Date) bool { return d.Year() == w.Year && d.Month() == w.Month }

func (w Window) Next() Window {
	return StartOfMonth(w.Year, w.Month).AddMonths(1).Window()
}

// WindowsBetween lists the windows from the month of from to the month of to,
// inclusive, in ascending order.
func WindowsBetween(from, to Date) []Window {
	if to.Before(from) {
		return nil
	}
	var windows []Window
	last := to.Window()
	for w := from.Window(); ; w = w.Next() {
		windows = append(windows, w)
		if w == last {
			break
		}
	}
	return windows
}
