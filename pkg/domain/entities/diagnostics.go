package entities

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrMalformedRecord marks a rejected input row. It is never fatal to a batch.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrInvalidSource marks an input source whose rows all lack a required field.
	ErrInvalidSource = errors.New("invalid input source")
)

// DiagnosticKind categorizes a non-fatal finding of a run
type DiagnosticKind string

const (
	KindMalformedRecord      DiagnosticKind = "MALFORMED_RECORD"
	KindUnresolvedLocation   DiagnosticKind = "UNRESOLVED_LOCATION"
	KindNegativeClosingStock DiagnosticKind = "NEGATIVE_CLOSING_STOCK"
	KindDuplicateSource      DiagnosticKind = "DUPLICATE_SOURCE_RECORD"
	KindReferenceMismatch    DiagnosticKind = "REFERENCE_MISMATCH"
)

// MalformedRecordError describes why an input row was rejected
type MalformedRecordError struct {
	SourceRecordID string
	Row            int
	Reason         string
}

func (e *MalformedRecordError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s: record %q (row %d): %s", ErrMalformedRecord, e.SourceRecordID, e.Row, e.Reason)
	}
	return fmt.Sprintf("%s: record %q: %s", ErrMalformedRecord, e.SourceRecordID, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}

// UnresolvedLocation counts events of one raw label that fell into the unmatched bucket
type UnresolvedLocation struct {
	RawLocation string
	Events      int
}

// DuplicateSourceRecord is a suppressed repeat of an already counted source record
type DuplicateSourceRecord struct {
	SourceRecordID string
	Occurrences    int
}

// NegativeClosingStock flags a period whose closing went below zero
type NegativeClosingStock struct {
	Location     CanonicalLocation
	Period       Period
	ClosingStock decimal.Decimal
}

// Diagnostics accumulates every non-fatal finding of a run
type Diagnostics struct {
	Malformed           []MalformedRecordError
	Unresolved          []UnresolvedLocation
	Duplicates          []DuplicateSourceRecord
	NegativeClosings    []NegativeClosingStock
	ReferenceMismatches []ReconciliationResult
}

// Count returns the number of findings of the given kind
func (d *Diagnostics) Count(kind DiagnosticKind) int {
	if d == nil {
		return 0
	}
	switch kind {
	case KindMalformedRecord:
		return len(d.Malformed)
	case KindUnresolvedLocation:
		return len(d.Unresolved)
	case KindDuplicateSource:
		return len(d.Duplicates)
	case KindNegativeClosingStock:
		return len(d.NegativeClosings)
	case KindReferenceMismatch:
		return len(d.ReferenceMismatches)
	default:
		return 0
	}
}

// SuppressedDuplicates returns how many events the duplicate guard dropped
func (d *Diagnostics) SuppressedDuplicates() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, dup := range d.Duplicates {
		n += dup.Occurrences - 1
	}
	return n
}

// Empty reports whether no finding was recorded
func (d *Diagnostics) Empty() bool {
	return d.Count(KindMalformedRecord)+d.Count(KindUnresolvedLocation)+d.Count(KindDuplicateSource)+
		d.Count(KindNegativeClosingStock)+d.Count(KindReferenceMismatch) == 0
}
