package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/macho715/wh3/pkg/application/services/analysis"
	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/domain/services"
)

// RunResult contains the complete output of a balance run
type RunResult struct {
	RunID             string
	StartedAt         time.Time
	CompletedAt       time.Time
	VocabularyVersion string
	Granularity       entities.Granularity
	SourceFile        string
	Rows              int
	EventsCounted     int
	Balances          []entities.PeriodBalance
	Validation        *services.ValidationResult
	Reconciliation    *entities.ReconciliationReport
	DeadStock         []analysis.DeadStockCase
	Summary           *InventorySummary
	Diagnostics       *entities.Diagnostics
}

// Duration returns how long the run took
func (r *RunResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// LocationSummary aggregates the balance series of one location
type LocationSummary struct {
	Location      entities.CanonicalLocation
	Periods       int
	Events        int
	OpeningStock  decimal.Decimal
	TotalInbound  decimal.Decimal
	TotalOutbound decimal.Decimal
	FinalClosing  decimal.Decimal
	MinClosing    decimal.Decimal
	MaxClosing    decimal.Decimal
}

// InventorySummary is the per-location summary plus grand totals
type InventorySummary struct {
	Locations         []LocationSummary
	TotalInbound      decimal.Decimal
	TotalOutbound     decimal.Decimal
	TotalFinalClosing decimal.Decimal
}

// Summarize builds an InventorySummary from a balance table ordered by
// location, then period
func Summarize(balances []entities.PeriodBalance) *InventorySummary {
	summary := &InventorySummary{Locations: make([]LocationSummary, 0)}

	var current *LocationSummary
	flush := func() {
		if current == nil {
			return
		}
		summary.TotalInbound = summary.TotalInbound.Add(current.TotalInbound)
		summary.TotalOutbound = summary.TotalOutbound.Add(current.TotalOutbound)
		summary.TotalFinalClosing = summary.TotalFinalClosing.Add(current.FinalClosing)
		summary.Locations = append(summary.Locations, *current)
	}

	for _, b := range balances {
		if current == nil || current.Location.ID != b.Location.ID {
			flush()
			current = &LocationSummary{
				Location:     b.Location,
				OpeningStock: b.OpeningStock,
				MinClosing:   b.ClosingStock,
				MaxClosing:   b.ClosingStock,
			}
		}
		current.Periods++
		current.Events += b.EventCount
		current.TotalInbound = current.TotalInbound.Add(b.InboundQty)
		current.TotalOutbound = current.TotalOutbound.Add(b.OutboundQty)
		current.FinalClosing = b.ClosingStock
		current.MinClosing = decimal.Min(current.MinClosing, b.ClosingStock)
		current.MaxClosing = decimal.Max(current.MaxClosing, b.ClosingStock)
	}
	flush()

	return summary
}
