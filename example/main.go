package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/macho715/wh3/pkg/application/services/orchestration"
	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/domain/services"
)

func main() {
	ctx := context.Background()

	resolver := services.NewDefaultResolver()
	pipeline := orchestration.NewPipeline(resolver, orchestration.DefaultConfig())

	qty := func(v int64) *decimal.Decimal {
		d := decimal.NewFromInt(v)
		return &d
	}
	day := func(m time.Month, d int) time.Time {
		return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
	}

	// A receipt into the indoor yard, a partial issue from one of its bays and
	// a delivery to a site
	rows := []entities.TransactionRow{
		{SourceRecordID: "HE-001", RawLocation: "DSV Indoor", Timestamp: day(time.January, 8), InboundQty: qty(12), CaseNo: "207721"},
		{SourceRecordID: "HE-002", RawLocation: "M44-A12", Timestamp: day(time.February, 3), OutboundQty: qty(4), CaseNo: "207721"},
		{SourceRecordID: "HE-003", RawLocation: "MIR laydown", Timestamp: day(time.February, 5), InboundQty: qty(4), CaseNo: "207721"},
		{SourceRecordID: "HE-004", RawLocation: "Mosb barge", Timestamp: day(time.March, 11), InboundQty: qty(7), OutboundQty: qty(2)},
	}

	physicalCount := []entities.StockSnapshot{
		{RawLocation: "dsv indoor", Period: entities.PeriodOf(day(time.March, 1), entities.Monthly), ClosingStock: decimal.NewFromInt(8)},
		{RawLocation: "MOSB", Period: entities.PeriodOf(day(time.March, 1), entities.Monthly), ClosingStock: decimal.NewFromInt(6)},
	}

	fmt.Println("📦 Computing warehouse balances...")
	result, err := pipeline.Run(ctx, orchestration.RunInput{
		SourceFile: "example",
		Rows:       rows,
		Reference:  physicalCount,
		Initial:    entities.InitialStocks{"DSV Indoor": decimal.NewFromInt(2)},
	})
	if err != nil {
		log.Fatalf("balance run failed: %v", err)
	}

	fmt.Printf("\n%-15s %-8s %8s %8s %8s %8s\n", "Location", "Period", "Opening", "In", "Out", "Closing")
	for _, b := range result.Balances {
		fmt.Printf("%-15s %-8s %8s %8s %8s %8s\n",
			b.Location.ID, b.Period, b.OpeningStock, b.InboundQty, b.OutboundQty, b.ClosingStock)
	}

	fmt.Printf("\n🔍 Reconciliation: %d of %d compared closings match\n",
		result.Reconciliation.Matched, result.Reconciliation.TotalCompared)
	for _, m := range result.Reconciliation.Mismatches() {
		fmt.Printf("  %s %s: computed %s, counted %s (%s)\n",
			m.Location.ID, m.Period, m.ComputedClosing, m.ReferenceClosing, m.AlertLevel)
	}

	if !result.Validation.Valid {
		fmt.Println("❌ Balance integrity check failed")
		for _, e := range result.Validation.Errors {
			fmt.Println("  " + e)
		}
		return
	}
	fmt.Println("✅ Balance integrity check passed")
}
