package entities

import "github.com/shopspring/decimal"

// ReconciliationStatus classifies one compared balance
type ReconciliationStatus string

const (
	StatusOK        ReconciliationStatus = "OK"
	StatusAttention ReconciliationStatus = "ATTENTION"
	StatusMissing   ReconciliationStatus = "MISSING_REFERENCE"
)

// AlertLevel grades the size of a reconciliation delta
type AlertLevel string

const (
	AlertNone   AlertLevel = ""
	AlertLow    AlertLevel = "LOW"
	AlertMedium AlertLevel = "MEDIUM"
	AlertHigh   AlertLevel = "HIGH"
)

// ReconciliationResult compares one computed closing with its reference.
// ReferenceClosing and Delta are nil when no reference record exists.
// Delta is reference minus computed.
type ReconciliationResult struct {
	Location         CanonicalLocation
	Period           Period
	ComputedClosing  decimal.Decimal
	ReferenceClosing *decimal.Decimal
	Matched          bool
	Delta            *decimal.Decimal
	Status           ReconciliationStatus
	AlertLevel       AlertLevel
}

// OrphanReference is a reference record with no computed balance to compare against
type OrphanReference struct {
	RawLocation  string
	Location     CanonicalLocation
	Period       Period
	ClosingStock decimal.Decimal
}

// ReconciliationReport is the per-record list plus aggregate match rate
type ReconciliationReport struct {
	Results          []ReconciliationResult
	Orphans          []OrphanReference
	Epsilon          decimal.Decimal
	TotalCompared    int
	Matched          int
	MissingReference int
	MatchRate        float64
}

// Mismatches returns the compared results outside epsilon. Results without a
// reference are not mismatches.
func (r *ReconciliationReport) Mismatches() []ReconciliationResult {
	var out []ReconciliationResult
	for _, res := range r.Results {
		if res.ReferenceClosing != nil && !res.Matched {
			out = append(out, res)
		}
	}
	return out
}
