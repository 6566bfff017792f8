package testing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/macho715/wh3/pkg/application/services/normalizer"
	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/domain/services"
	"github.com/macho715/wh3/pkg/infrastructure/repositories/memory"
)

// rawLabels are spellings seen in real movement records, each resolving to a
// different canonical location through the default rules
var rawLabels = []string{
	"DSV Indoor",
	"M44-A12",
	"DSV_Outdoor",
	"OUT-03",
	"DSV Al Markaz",
	"M1 bay 2",
	"MOSB",
	"Mosb barge",
	"DHL WH",
	"AAA Storage",
	"MIR laydown",
	"SHU site",
	"DAS island",
	"AGI",
}

// BuildWarehouseScenario builds the repositories of a small three-month scenario:
// receipts into the indoor yard, issues from its bays, a site delivery and a
// physical count for March
func BuildWarehouseScenario() (*memory.TransactionRepository, *memory.SnapshotRepository, *memory.InitialStockRepository) {
	transactionRepo := memory.NewTransactionRepository()
	snapshotRepo := memory.NewSnapshotRepository()
	initialRepo := memory.NewInitialStockRepository()

	rows := []entities.TransactionRow{
		row("HE-001", 2, "DSV Indoor", date(2024, time.January, 8), 12, 0, "207721"),
		row("HE-002", 3, "M44-A12", date(2024, time.February, 3), 0, 4, "207721"),
		row("HE-003", 4, "MIR laydown", date(2024, time.February, 5), 4, 0, "207721"),
		row("HE-004", 5, "Mosb barge", date(2024, time.March, 11), 7, 2, ""),
		row("HE-005", 6, "dsv_outdoor", date(2024, time.March, 14), 3, 0, "207790"),
	}
	_ = transactionRepo.LoadRows(rows)

	march := entities.PeriodOf(date(2024, time.March, 1), entities.Monthly)
	_ = snapshotRepo.LoadSnapshots([]entities.StockSnapshot{
		{RawLocation: "dsv indoor", Period: march, ClosingStock: decimal.NewFromInt(10), Row: 2},
		{RawLocation: "MOSB", Period: march, ClosingStock: decimal.NewFromInt(5), Row: 3},
	})

	initialRepo.AddInitialStock("DSV Indoor", decimal.NewFromInt(2))

	return transactionRepo, snapshotRepo, initialRepo
}

// BuildLargeRows generates n rows spread round-robin over the raw labels and
// across months starting January 2020. Every seventh row is outbound, every
// eleventh is two-sided.
func BuildLargeRows(n int) []entities.TransactionRow {
	rows := make([]entities.TransactionRow, 0, n)
	start := date(2020, time.January, 1)

	for i := 0; i < n; i++ {
		label := rawLabels[i%len(rawLabels)]
		ts := start.Add(time.Duration(i%(5*365)) * 24 * time.Hour)
		qty := int64(i%50 + 1)

		var in, out int64 = qty, 0
		switch {
		case i%11 == 0:
			out = qty / 2
		case i%7 == 0:
			in, out = 0, qty
		}
		rows = append(rows, row(fmt.Sprintf("R%07d", i), i+2, label, ts, in, out, fmt.Sprintf("C%05d", i%997)))
	}
	return rows
}

// NormalizeRows resolves rows into events with the default resolver
func NormalizeRows(rows []entities.TransactionRow) ([]entities.TransactionEvent, error) {
	result, err := normalizer.NewNormalizer(services.NewDefaultResolver()).Collect(rows)
	if err != nil {
		return nil, err
	}
	return result.Events, nil
}

func row(id string, line int, label string, ts time.Time, in, out int64, caseNo string) entities.TransactionRow {
	r := entities.TransactionRow{
		SourceRecordID: id,
		Row:            line,
		RawLocation:    label,
		Timestamp:      ts,
		CaseNo:         caseNo,
	}
	if in > 0 {
		q := decimal.NewFromInt(in)
		r.InboundQty = &q
	}
	if out > 0 {
		q := decimal.NewFromInt(out)
		r.OutboundQty = &q
	}
	return r
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
