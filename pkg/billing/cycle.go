// Package billing computes subscription billing-cycle windows and values
// usage against the subscribed plan.
package billing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pario-ai/tokenboard/pkg/models"
)

// DateLayout is the date format used for usage rows and cycle bounds.
const DateLayout = "2006-01-02"

// ErrNoCycleStart is returned when no billing-cycle start date is configured.
var ErrNoCycleStart = errors.New("billing cycle start date is not configured")

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days in the window.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// StartDate formats the first day.
func (w Window) StartDate() string { return w.Start.Format(DateLayout) }

// EndDate formats the last day.
func (w Window) EndDate() string { return w.End.Format(DateLayout) }

// ParseStartDay extracts the anchor day from a YYYY-MM-DD date or a bare
// day number.
func ParseStartDay(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrNoCycleStart
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.Day(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Day(), nil
	}
	day, err := strconv.Atoi(s)
	if err != nil || day < 1 || day > 31 {
		return 0, fmt.Errorf("invalid billing cycle start %q", s)
	}
	return day, nil
}

// anchor returns the cycle start in the given month, clamping the day to the
// month's length so a 31st anchor lands on Feb 28/29.
func anchor(year int, month time.Month, day int) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Current returns the cycle containing now.
func Current(startDay int, now time.Time) Window {
	today := truncateDay(now)
	start := anchor(today.Year(), today.Month(), startDay)
	if today.Before(start) {
		start = anchor(today.Year(), today.Month()-1, startDay)
	}
	next := anchor(start.Year(), start.Month()+1, startDay)
	return Window{Start: start, End: next.AddDate(0, 0, -1)}
}

// Previous returns the cycle immediately before cur. The two windows are
// contiguous.
func Previous(startDay int, cur Window) Window {
	start := anchor(cur.Start.Year(), cur.Start.Month()-1, startDay)
	return Window{Start: start, End: cur.Start.AddDate(0, 0, -1)}
}

// Describe builds the billing-cycle summary for now.
func Describe(startDay int, now time.Time) models.BillingCycle {
	cur := Current(startDay, now)
	prev := Previous(startDay, cur)
	elapsed := Window{Start: cur.Start, End: truncateDay(now)}.Days()
	return models.BillingCycle{
		StartDay:      startDay,
		CurrentStart:  cur.StartDate(),
		CurrentEnd:    cur.EndDate(),
		PreviousStart: prev.StartDate(),
		PreviousEnd:   prev.EndDate(),
		TotalDays:     cur.Days(),
		DaysElapsed:   elapsed,
		DaysRemaining: cur.Days() - elapsed,
	}
}
