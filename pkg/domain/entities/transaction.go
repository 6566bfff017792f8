package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the movement sense of a transaction event
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

// String method for Direction enum
func (d Direction) String() string {
	switch d {
	case Inbound:
		return "Inbound"
	case Outbound:
		return "Outbound"
	default:
		return "Unknown"
	}
}

// Suffix is appended to a row id when one row yields events in both directions
func (d Direction) Suffix() string {
	if d == Outbound {
		return "#OUT"
	}
	return "#IN"
}

// HasDirectionSuffix reports whether id ends with a suffix reserved for the
// events of two-sided rows
func HasDirectionSuffix(id string) bool {
	return strings.HasSuffix(id, Inbound.Suffix()) || strings.HasSuffix(id, Outbound.Suffix())
}

// TransactionRow is one raw record handed over by a file loader. Quantities are
// nil when the source cell was empty.
type TransactionRow struct {
	SourceRecordID string
	Row            int
	SourceFile     string
	RawLocation    string
	Timestamp      time.Time
	InboundQty     *decimal.Decimal
	OutboundQty    *decimal.Decimal
	CaseNo         string
	// Invalid is set by the loader when a cell could not be parsed
	Invalid string
}

// TransactionEvent is one atomic, immutable movement at a canonical location
type TransactionEvent struct {
	SourceRecordID    string
	RawLocation       string
	CanonicalLocation CanonicalLocation
	Timestamp         time.Time
	Direction         Direction
	Quantity          decimal.Decimal
	CaseNo            string
}

// NewTransactionEvent creates a validated TransactionEvent
func NewTransactionEvent(sourceRecordID, rawLocation string, location CanonicalLocation, timestamp time.Time, direction Direction, quantity decimal.Decimal) (*TransactionEvent, error) {
	if sourceRecordID == "" {
		return nil, fmt.Errorf("source record id cannot be empty")
	}
	if location.ID == "" {
		return nil, fmt.Errorf("canonical location cannot be empty")
	}
	if timestamp.IsZero() {
		return nil, fmt.Errorf("timestamp cannot be empty")
	}
	if quantity.IsNegative() {
		return nil, fmt.Errorf("quantity cannot be negative, got %s", quantity)
	}

	return &TransactionEvent{
		SourceRecordID:    sourceRecordID,
		RawLocation:       rawLocation,
		CanonicalLocation: location,
		Timestamp:         timestamp,
		Direction:         direction,
		Quantity:          quantity,
	}, nil
}


// StockSnapshot is an independently recorded closing stock, e.g. a physical count
type StockSnapshot struct {
	RawLocation  string
	Period       Period
	ClosingStock decimal.Decimal
	Row          int
}

// OpeningStockRecord is a raw opening balance handed over by a loader
type OpeningStockRecord struct {
	RawLocation string
	Quantity    decimal.Decimal
	Row         int
}

// InitialStocks maps canonical location ids to the opening balance of their first period
type InitialStocks map[string]decimal.Decimal

// Get returns the initial stock for a location, zero when absent
func (s InitialStocks) Get(locationID string) decimal.Decimal {
	if s == nil {
		return decimal.Zero
	}
	if v, ok := s[locationID]; ok {
		return v
	}
	return decimal.Zero
}
