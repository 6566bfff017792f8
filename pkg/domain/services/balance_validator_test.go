package services

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/macho715/wh3/pkg/domain/entities"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func monthly(year int, month time.Month) entities.Period {
	return entities.PeriodOf(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), entities.Monthly)
}

func balanceRow(loc string, p entities.Period, open, in, out int64) entities.PeriodBalance {
	return entities.PeriodBalance{
		Location:     entities.CanonicalLocation{ID: loc, Kind: entities.Warehouse},
		Period:       p,
		OpeningStock: dec(open),
		InboundQty:   dec(in),
		OutboundQty:  dec(out),
		ClosingStock: dec(open + in - out),
	}
}

func TestBalanceValidator_ValidTable(t *testing.T) {
	v := NewBalanceValidator()
	balances := []entities.PeriodBalance{
		balanceRow("MOSB", monthly(2024, time.January), 10, 100, 20),
		balanceRow("MOSB", monthly(2024, time.February), 90, 0, 30),
		balanceRow("DSV WH", monthly(2024, time.January), 0, 5, 0),
		balanceRow("DSV WH", monthly(2024, time.February), 5, 0, 0),
	}

	result := v.Validate(balances, entities.InitialStocks{"MOSB": dec(10)})

	if !result.Valid {
		t.Fatalf("Expected valid table, got errors: %v", result.Errors)
	}
	if result.Locations != 2 || result.Periods != 4 {
		t.Errorf("Expected 2 locations and 4 periods, got %d and %d", result.Locations, result.Periods)
	}
	if !result.TotalFinalClosing.Equal(dec(65)) {
		t.Errorf("Expected total final closing 65, got %s", result.TotalFinalClosing)
	}
	if !result.TotalInbound.Equal(dec(105)) || !result.TotalOutbound.Equal(dec(50)) {
		t.Errorf("Expected totals in=105 out=50, got in=%s out=%s", result.TotalInbound, result.TotalOutbound)
	}
}

func TestBalanceValidator_DetectsViolations(t *testing.T) {
	v := NewBalanceValidator()

	broken := balanceRow("MOSB", monthly(2024, time.February), 50, 0, 0)
	badClosing := balanceRow("MOSB", monthly(2024, time.April), 0, 10, 0)
	badClosing.ClosingStock = dec(99)

	balances := []entities.PeriodBalance{
		balanceRow("MOSB", monthly(2024, time.January), 0, 10, 0),
		broken,
		badClosing,
	}

	result := v.Validate(balances, nil)
	if result.Valid {
		t.Fatal("Expected validation to fail")
	}

	joined := strings.Join(result.Errors, "\n")
	for _, want := range []string{"does not carry previous closing", "gap between 2024-02 and 2024-04", "closing 99 != opening 0"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected error containing %q, got:\n%s", want, joined)
		}
	}
}

func TestBalanceValidator_FirstOpeningAndNegativeWarning(t *testing.T) {
	v := NewBalanceValidator()
	balances := []entities.PeriodBalance{
		balanceRow("AGI", monthly(2024, time.March), 0, 5, 12),
	}

	result := v.Validate(balances, entities.InitialStocks{"AGI": dec(3)})
	if result.Valid {
		t.Fatal("Expected first opening mismatch to fail validation")
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "negative closing stock -7") {
		t.Errorf("Expected negative closing warning, got %v", result.Warnings)
	}
}

func TestBalanceValidator_Empty(t *testing.T) {
	result := NewBalanceValidator().Validate(nil, nil)
	if !result.Valid {
		t.Errorf("Expected empty table to be valid, got %v", result.Errors)
	}
}
