package services

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/macho715/wh3/pkg/domain/entities"
)

// BalanceValidator checks the stock flow laws of a computed balance table
type BalanceValidator struct{}

// NewBalanceValidator creates a new balance validator
func NewBalanceValidator() *BalanceValidator {
	return &BalanceValidator{}
}

// ValidationResult contains the results of balance validation
type ValidationResult struct {
	Valid             bool
	Locations         int
	Periods           int
	TotalInitial      decimal.Decimal
	TotalInbound      decimal.Decimal
	TotalOutbound     decimal.Decimal
	TotalFinalClosing decimal.Decimal
	Errors            []string
	Warnings          []string
}

// Validate checks, per location:
//   - closing = opening + inbound - outbound
//   - the first opening equals the initial stock
//   - each opening equals the previous closing, with no period gaps
//
// Negative closings are warnings. Totals are checked across all locations.
func (v *BalanceValidator) Validate(balances []entities.PeriodBalance, initial entities.InitialStocks) *ValidationResult {
	result := &ValidationResult{
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}

	byLocation, order := v.groupByLocation(balances)
	result.Locations = len(order)
	result.Periods = len(balances)

	for _, id := range order {
		rows := byLocation[id]
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Period.Before(rows[j].Period)
		})

		start := initial.Get(id)
		result.TotalInitial = result.TotalInitial.Add(start)

		if !rows[0].OpeningStock.Equal(start) {
			result.Errors = append(result.Errors, fmt.Sprintf("%s %s: first opening %s does not equal initial stock %s",
				id, rows[0].Period, rows[0].OpeningStock, start))
		}

		for i, b := range rows {
			expected := b.OpeningStock.Add(b.NetMovement())
			if !b.ClosingStock.Equal(expected) {
				result.Errors = append(result.Errors, fmt.Sprintf("%s %s: closing %s != opening %s + in %s - out %s",
					id, b.Period, b.ClosingStock, b.OpeningStock, b.InboundQty, b.OutboundQty))
			}
			if b.IsNegative() {
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s %s: negative closing stock %s",
					id, b.Period, b.ClosingStock))
			}

			result.TotalInbound = result.TotalInbound.Add(b.InboundQty)
			result.TotalOutbound = result.TotalOutbound.Add(b.OutboundQty)

			if i == 0 {
				continue
			}
			prev := rows[i-1]
			if !prev.Period.Next().Equal(b.Period) {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: gap between %s and %s", id, prev.Period, b.Period))
			}
			if !b.OpeningStock.Equal(prev.ClosingStock) {
				result.Errors = append(result.Errors, fmt.Sprintf("%s %s: opening %s does not carry previous closing %s",
					id, b.Period, b.OpeningStock, prev.ClosingStock))
			}
		}

		result.TotalFinalClosing = result.TotalFinalClosing.Add(rows[len(rows)-1].ClosingStock)
	}

	expectedTotal := result.TotalInitial.Add(result.TotalInbound).Sub(result.TotalOutbound)
	if !result.TotalFinalClosing.Equal(expectedTotal) {
		result.Errors = append(result.Errors, fmt.Sprintf("total final closing %s != initial %s + in %s - out %s",
			result.TotalFinalClosing, result.TotalInitial, result.TotalInbound, result.TotalOutbound))
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// groupByLocation keeps the first-seen order of location ids
func (v *BalanceValidator) groupByLocation(balances []entities.PeriodBalance) (map[string][]entities.PeriodBalance, []string) {
	byLocation := make(map[string][]entities.PeriodBalance)
	order := make([]string, 0)

	for _, b := range balances {
		id := b.Location.ID
		if _, exists := byLocation[id]; !exists {
			order = append(order, id)
		}
		byLocation[id] = append(byLocation[id], b)
	}
	return byLocation, order
}
