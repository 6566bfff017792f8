package entities

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the width of a balance period
type Granularity int

const (
	Monthly Granularity = iota
	Daily
)

const (
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
)

// String method for Granularity enum
func (g Granularity) String() string {
	switch g {
	case Monthly:
		return "monthly"
	case Daily:
		return "daily"
	default:
		return "unknown"
	}
}

// ParseGranularity accepts "monthly"/"month"/"m" and "daily"/"day"/"d"
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "monthly", "month", "m":
		return Monthly, nil
	case "daily", "day", "d":
		return Daily, nil
	default:
		return Monthly, fmt.Errorf("invalid granularity: %s (expected monthly or daily)", s)
	}
}

func (g Granularity) layout() string {
	if g == Daily {
		return dayLayout
	}
	return monthLayout
}

// Period is a time bucket identified by its UTC start instant
type Period struct {
	Start       time.Time
	Granularity Granularity
}

// PeriodOf truncates t to the period of granularity g that contains it.
// The calendar date of t is taken in its own location.
func PeriodOf(t time.Time, g Granularity) Period {
	y, m, d := t.Date()
	if g == Daily {
		return Period{Start: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Granularity: g}
	}
	return Period{Start: time.Date(y, m, 1, 0, 0, 0, 0, time.UTC), Granularity: Monthly}
}

// ParsePeriod parses "2006-01" for monthly and "2006-01-02" for daily periods
func ParsePeriod(s string, g Granularity) (Period, error) {
	t, err := time.Parse(g.layout(), strings.TrimSpace(s))
	if err != nil {
		return Period{}, fmt.Errorf("invalid %s period %q (expected %s)", g, s, g.layout())
	}
	return PeriodOf(t, g), nil
}

// Next returns the period immediately after p
func (p Period) Next() Period {
	if p.Granularity == Daily {
		return Period{Start: p.Start.AddDate(0, 0, 1), Granularity: Daily}
	}
	return Period{Start: p.Start.AddDate(0, 1, 0), Granularity: Monthly}
}

// Before reports whether p starts before o
func (p Period) Before(o Period) bool {
	return p.Start.Before(o.Start)
}

// Equal reports whether p and o denote the same bucket
func (p Period) Equal(o Period) bool {
	return p.Granularity == o.Granularity && p.Start.Equal(o.Start)
}

// IsZero reports whether p was never set
func (p Period) IsZero() bool {
	return p.Start.IsZero()
}

func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return p.Start.Format(p.Granularity.layout())
}

// PeriodRange returns every period from first to last inclusive
func PeriodRange(first, last Period) []Period {
	if last.Before(first) {
		return nil
	}
	var periods []Period
	for p := first; !last.Before(p); p = p.Next() {
		periods = append(periods, p)
	}
	return periods
}
