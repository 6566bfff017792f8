package events

import (
	"github.com/shopspring/decimal"
)

const (
	RunStartedEvent   = "run.started"
	RunCompletedEvent = "run.completed"
	RunFailedEvent    = "run.failed"

	SourceLoadedEvent = "source.loaded"

	RecordMalformedEvent    = "record.malformed"
	LocationUnresolvedEvent = "location.unresolved"
	RecordDuplicateEvent    = "record.duplicate"
	ClosingNegativeEvent    = "closing.negative"
	ReferenceMismatchEvent  = "reference.mismatch"
	ValidationFailedEvent   = "validation.failed"
	DeadStockDetectedEvent  = "deadstock.detected"
	BalancesComputedEvent   = "balances.computed"
	ReconciliationDoneEvent = "reconciliation.completed"
)

// DiagnosticEventTypes are the event types carrying non-fatal findings
var DiagnosticEventTypes = []string{
	RecordMalformedEvent,
	LocationUnresolvedEvent,
	RecordDuplicateEvent,
	ClosingNegativeEvent,
	ReferenceMismatchEvent,
	ValidationFailedEvent,
	DeadStockDetectedEvent,
}

type RunStarted struct {
	VocabularyVersion string `json:"vocabulary_version"`
	Granularity       string `json:"granularity"`
	SourceFile        string `json:"source_file,omitempty"`
}

type SourceLoaded struct {
	Rows   int `json:"rows"`
	Events int `json:"events"`
}

type RecordMalformed struct {
	SourceRecordID string `json:"source_record_id"`
	Row            int    `json:"row"`
	Reason         string `json:"reason"`
}

type LocationUnresolved struct {
	RawLocation string `json:"raw_location"`
	Events      int    `json:"events"`
}

type RecordDuplicate struct {
	SourceRecordID string `json:"source_record_id"`
	Occurrences    int    `json:"occurrences"`
}

type ClosingNegative struct {
	Location     string          `json:"location"`
	Period       string          `json:"period"`
	ClosingStock decimal.Decimal `json:"closing_stock"`
}

type ReferenceMismatch struct {
	Location   string          `json:"location"`
	Period     string          `json:"period"`
	Computed   decimal.Decimal `json:"computed"`
	Reference  decimal.Decimal `json:"reference"`
	Delta      decimal.Decimal `json:"delta"`
	AlertLevel string          `json:"alert_level"`
}

type ValidationFailed struct {
	Errors []string `json:"errors"`
}

type DeadStockDetected struct {
	Cases int `json:"cases"`
}

type BalancesComputed struct {
	Locations int `json:"locations"`
	Periods   int `json:"periods"`
	Balances  int `json:"balances"`
}

type ReconciliationDone struct {
	TotalCompared int     `json:"total_compared"`
	Matched       int     `json:"matched"`
	MatchRate     float64 `json:"match_rate"`
	Orphans       int     `json:"orphans"`
}

type RunCompleted struct {
	Balances    int   `json:"balances"`
	DurationMS  int64 `json:"duration_ms"`
	Diagnostics int   `json:"diagnostics"`
}

type RunFailed struct {
	Error string `json:"error"`
}
