package utils

import (
	"fmt"
	"strings"
	"time"
)

const (
	periodLayout = "2006-01"
	dateLayout   = "2006-01-02"
)

// Period is an inclusive range of calendar days
type Period struct {
	From time.Time
	To   time.Time
}

// Label returns YYYY-MM for a whole month, otherwise from..to
func (p Period) Label() string {
	first := time.Date(p.From.Year(), p.From.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	if p.From.Equal(first) && p.To.Equal(last) {
		return first.Format(periodLayout)
	}
	return p.From.Format(dateLayout) + ".." + p.To.Format(dateLayout)
}

// Contains reports whether t falls on a day inside the period
func (p Period) Contains(t time.Time) bool {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Before(p.From) && !d.After(p.To)
}

// MonthPeriod returns the first and last day of the month containing t
func MonthPeriod(t time.Time) Period {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{From: first, To: first.AddDate(0, 1, -1)}
}

// PreviousMonth returns the calendar month before now
func PreviousMonth(now time.Time) Period {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return MonthPeriod(first.AddDate(0, -1, 0))
}

// ParsePeriod parses YYYY-MM into that month's period
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse(periodLayout, strings.TrimSpace(s))
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q, expected YYYY-MM", s)
	}
	return MonthPeriod(t), nil
}

// ResolvePeriod picks the period from explicit dates, a YYYY-MM value, or the previous month
func ResolvePeriod(period, from, to string, now time.Time) (Period, error) {
	if from != "" || to != "" {
		if from == "" || to == "" {
			return Period{}, fmt.Errorf("both from and to dates are required")
		}
		start, err := time.Parse(dateLayout, strings.TrimSpace(from))
		if err != nil {
			return Period{}, fmt.Errorf("invalid from date %q: %w", from, err)
		}
		end, err := time.Parse(dateLayout, strings.TrimSpace(to))
		if err != nil {
			return Period{}, fmt.Errorf("invalid to date %q: %w", to, err)
		}
		if end.Before(start) {
			return Period{}, fmt.Errorf("to date %s is before from date %s", to, from)
		}
		return Period{From: start, To: end}, nil
	}
	if period != "" {
		return ParsePeriod(period)
	}
	return PreviousMonth(now), nil
}
