package analysis

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/macho715/wh3/pkg/domain/entities"
)

// DefaultDeadStockDays is the idle age at which a case counts as dead stock
const DefaultDeadStockDays = 180

// DeadStockCase is a case that has not moved for at least the threshold
type DeadStockCase struct {
	CaseNo       string
	LastMove     time.Time
	DaysIdle     int
	LastLocation entities.CanonicalLocation
	Quantity     decimal.Decimal
	Movements    int
}

// DeadStockAnalyzer finds cases whose last movement is older than a threshold
type DeadStockAnalyzer struct {
	ThresholdDays int
	// Now returns the reference instant; time.Now when nil
	Now func() time.Time
}

// NewDeadStockAnalyzer creates an analyzer with the given threshold in days
func NewDeadStockAnalyzer(thresholdDays int) *DeadStockAnalyzer {
	if thresholdDays <= 0 {
		thresholdDays = DefaultDeadStockDays
	}
	return &DeadStockAnalyzer{ThresholdDays: thresholdDays}
}

type caseTrack struct {
	first    decimal.Decimal
	last     time.Time
	location entities.CanonicalLocation
	moves    int
}

// Analyze groups events by case number and returns the idle cases, longest
// idle first. Events without a case number are ignored. Quantity is that of
// the first event of the case in input order.
func (a *DeadStockAnalyzer) Analyze(events []entities.TransactionEvent) []DeadStockCase {
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}

	cases := make(map[string]*caseTrack)
	for _, ev := range events {
		if ev.CaseNo == "" {
			continue
		}
		c, ok := cases[ev.CaseNo]
		if !ok {
			c = &caseTrack{first: ev.Quantity, last: ev.Timestamp, location: ev.CanonicalLocation}
			cases[ev.CaseNo] = c
		}
		if !ev.Timestamp.Before(c.last) {
			c.last = ev.Timestamp
			c.location = ev.CanonicalLocation
		}
		c.moves++
	}

	out := make([]DeadStockCase, 0)
	for caseNo, c := range cases {
		days := int(now.Sub(c.last).Hours() / 24)
		if days < a.ThresholdDays {
			continue
		}
		out = append(out, DeadStockCase{
			CaseNo:       caseNo,
			LastMove:     c.last,
			DaysIdle:     days,
			LastLocation: c.location,
			Quantity:     c.first,
			Movements:    c.moves,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DaysIdle != out[j].DaysIdle {
			return out[i].DaysIdle > out[j].DaysIdle
		}
		return out[i].CaseNo < out[j].CaseNo
	})
	return out
}
