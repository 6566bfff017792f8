package entities

import "time"

// Run is one persisted balance computation
type Run struct {
	ID                string
	CreatedAt         time.Time
	VocabularyVersion string
	Granularity       Granularity
	SourceFile        string
	Balances          []PeriodBalance
	Reconciliation    *ReconciliationReport
	Diagnostics       *Diagnostics
}

// RunSummary describes a stored run without its balance rows
type RunSummary struct {
	ID                string
	CreatedAt         time.Time
	VocabularyVersion string
	Granularity       Granularity
	SourceFile        string
	BalanceCount      int
	MatchRate         *float64
}
