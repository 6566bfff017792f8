package entities

import "github.com/shopspring/decimal"

// PeriodBalance is the stock movement of one location over one period.
//
// ClosingStock = OpeningStock + InboundQty - OutboundQty, and the opening of a
// period equals the closing of the previous period of the same location.
// CumulativeStock is the net movement since the first period, i.e. the closing
// stock excluding the initial stock.
type PeriodBalance struct {
	Location        CanonicalLocation
	Period          Period
	OpeningStock    decimal.Decimal
	InboundQty      decimal.Decimal
	OutboundQty     decimal.Decimal
	ClosingStock    decimal.Decimal
	CumulativeStock decimal.Decimal
	EventCount      int
}

// NetMovement returns inbound minus outbound for the period
func (b PeriodBalance) NetMovement() decimal.Decimal {
	return b.InboundQty.Sub(b.OutboundQty)
}

// IsNegative reports a closing stock below zero
func (b PeriodBalance) IsNegative() bool {
	return b.ClosingStock.IsNegative()
}

// BalanceKey identifies a balance row
type BalanceKey struct {
	LocationID string
	Period     string
}

// Key returns the (location, period) key of b
func (b PeriodBalance) Key() BalanceKey {
	return BalanceKey{LocationID: b.Location.ID, Period: b.Period.String()}
}

// FinalClosings returns the closing stock of the last period of each location,
// suitable as the initial stocks of a following run
func FinalClosings(balances []PeriodBalance) InitialStocks {
	last := make(map[string]PeriodBalance)
	for _, b := range balances {
		prev, ok := last[b.Location.ID]
		if !ok || prev.Period.Before(b.Period) {
			last[b.Location.ID] = b
		}
	}

	out := make(InitialStocks, len(last))
	for id, b := range last {
		out[id] = b.ClosingStock
	}
	return out
}
