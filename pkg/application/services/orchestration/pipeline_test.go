package orchestration

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/domain/services"
	"github.com/macho715/wh3/pkg/infrastructure/events"
	"github.com/macho715/wh3/pkg/infrastructure/repositories/memory"
)

func qty(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func at(month time.Month, day int) time.Time {
	return time.Date(2024, month, day, 9, 0, 0, 0, time.UTC)
}

func period(t *testing.T, s string) entities.Period {
	t.Helper()
	p, err := entities.ParsePeriod(s, entities.Monthly)
	require.NoError(t, err)
	return p
}

func sampleInput(t *testing.T) RunInput {
	return RunInput{
		SourceFile: "tx.csv",
		Rows: []entities.TransactionRow{
			{SourceRecordID: "T1", Row: 2, RawLocation: "DSV Indoor", Timestamp: at(time.January, 5), InboundQty: qty(100), CaseNo: "C1"},
			{SourceRecordID: "T2", Row: 3, RawLocation: "M44-A12", Timestamp: at(time.January, 20), OutboundQty: qty(30), CaseNo: "C1"},
			{SourceRecordID: "T3", Row: 4, RawLocation: "MIR site", Timestamp: at(time.February, 2), InboundQty: qty(40)},
			{SourceRecordID: "T1", Row: 5, RawLocation: "DSV Indoor", Timestamp: at(time.January, 5), InboundQty: qty(100)},
			{SourceRecordID: "T4", Row: 6, RawLocation: "Mystery Yard", Timestamp: at(time.February, 10), InboundQty: qty(5)},
			{SourceRecordID: "T5", Row: 7, RawLocation: "DSV Indoor", InboundQty: qty(1)},
		},
		OpeningStocks: []entities.OpeningStockRecord{
			{RawLocation: "dsv_indoor", Quantity: decimal.NewFromInt(10), Row: 2},
		},
		Reference: []entities.StockSnapshot{
			{RawLocation: "DSV  Indoor", Period: period(t, "2024-02"), ClosingStock: decimal.NewFromInt(80)},
			{RawLocation: "MIR", Period: period(t, "2024-02"), ClosingStock: decimal.NewFromInt(50)},
		},
	}
}

func newTestPipeline(t *testing.T, logs *bytes.Buffer) (*Pipeline, *events.InMemoryEventStore, *memory.RunRepository) {
	t.Helper()
	store := events.NewInMemoryEventStore()
	runs := memory.NewRunRepository()

	config := DefaultConfig()
	config.EventStore = store
	config.Runs = runs
	config.Logger = slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	config.Now = func() time.Time { return time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC) }

	return NewPipeline(services.NewDefaultResolver(), config), store, runs
}

func TestPipeline_Run(t *testing.T) {
	var logs bytes.Buffer
	pipeline, store, runs := newTestPipeline(t, &logs)

	result, err := pipeline.Run(context.Background(), sampleInput(t))
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, services.DefaultVocabularyVersion, result.VocabularyVersion)
	assert.Equal(t, 6, result.Rows)
	assert.Equal(t, 4, result.EventsCounted)

	// DSV Indoor, MIR and UNMATCHED over January and February
	require.Len(t, result.Balances, 6)
	indoorJan := result.Balances[0]
	assert.Equal(t, "DSV Indoor", indoorJan.Location.ID)
	assert.Equal(t, "10", indoorJan.OpeningStock.String())
	assert.Equal(t, "80", indoorJan.ClosingStock.String())
	assert.Equal(t, "80", result.Balances[1].ClosingStock.String())
	assert.Equal(t, entities.UnmatchedID, result.Balances[5].Location.ID)

	require.NotNil(t, result.Validation)
	assert.True(t, result.Validation.Valid, result.Validation.Errors)

	diag := result.Diagnostics
	require.Len(t, diag.Malformed, 1)
	assert.Equal(t, "T5", diag.Malformed[0].SourceRecordID)
	require.Len(t, diag.Unresolved, 1)
	assert.Equal(t, "Mystery Yard", diag.Unresolved[0].RawLocation)
	require.Len(t, diag.Duplicates, 1)
	assert.Equal(t, "T1", diag.Duplicates[0].SourceRecordID)

	report := result.Reconciliation
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Matched)
	require.Len(t, diag.ReferenceMismatches, 1)
	mismatch := diag.ReferenceMismatches[0]
	assert.Equal(t, "MIR", mismatch.Location.ID)
	assert.Equal(t, "10", mismatch.Delta.String())
	assert.Equal(t, entities.StatusAttention, mismatch.Status)
	assert.Equal(t, entities.AlertMedium, mismatch.AlertLevel)

	require.Len(t, result.DeadStock, 1)
	assert.Equal(t, "C1", result.DeadStock[0].CaseNo)

	require.NotNil(t, result.Summary)
	assert.Len(t, result.Summary.Locations, 3)

	stream, err := store.ReadEvents(result.RunID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, stream)
	assert.Equal(t, events.RunStartedEvent, stream[0].Type())
	assert.Equal(t, events.RunCompletedEvent, stream[len(stream)-1].Type())

	out := logs.String()
	for _, eventType := range []string{
		events.RecordMalformedEvent,
		events.LocationUnresolvedEvent,
		events.RecordDuplicateEvent,
		events.ReferenceMismatchEvent,
	} {
		assert.Contains(t, out, eventType)
	}
	assert.Contains(t, out, "level=WARN")

	saved, err := runs.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, result.RunID, saved[0].ID)

	closings, err := runs.FinalClosings(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "80", closings.Get("DSV Indoor").String())
}

func TestPipeline_WithoutReference(t *testing.T) {
	var logs bytes.Buffer
	pipeline, _, _ := newTestPipeline(t, &logs)

	in := sampleInput(t)
	in.Reference = nil

	result, err := pipeline.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Nil(t, result.Reconciliation)
	assert.Empty(t, result.Diagnostics.ReferenceMismatches)
}

func TestPipeline_InvalidSource(t *testing.T) {
	var logs bytes.Buffer
	pipeline, store, runs := newTestPipeline(t, &logs)

	in := RunInput{Rows: []entities.TransactionRow{
		{SourceRecordID: "T1", RawLocation: "DSV Indoor", InboundQty: qty(1)},
		{SourceRecordID: "T2", RawLocation: "MIR", OutboundQty: qty(1)},
	}}

	_, err := pipeline.Run(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrInvalidSource))

	all, err := store.ReadAllEvents(0)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Equal(t, events.RunFailedEvent, all[len(all)-1].Type())

	saved, err := runs.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestPipeline_EmptyBatch(t *testing.T) {
	var logs bytes.Buffer
	pipeline, _, _ := newTestPipeline(t, &logs)

	result, err := pipeline.Run(context.Background(), RunInput{})
	require.NoError(t, err)
	assert.Empty(t, result.Balances)
	assert.True(t, result.Validation.Valid)
}

func TestPipeline_SeedsFromPreviousRun(t *testing.T) {
	var logs bytes.Buffer
	pipeline, _, runs := newTestPipeline(t, &logs)
	ctx := context.Background()

	first, err := pipeline.Run(ctx, sampleInput(t))
	require.NoError(t, err)

	initial, err := runs.FinalClosings(ctx, first.RunID)
	require.NoError(t, err)

	second, err := pipeline.Run(ctx, RunInput{
		Rows: []entities.TransactionRow{
			{SourceRecordID: "N1", RawLocation: "DSV Indoor", Timestamp: at(time.March, 1), OutboundQty: qty(20)},
		},
		Initial: initial,
	})
	require.NoError(t, err)

	var indoor *entities.PeriodBalance
	for i := range second.Balances {
		if second.Balances[i].Location.ID == "DSV Indoor" {
			indoor = &second.Balances[i]
		}
	}
	require.NotNil(t, indoor)
	assert.Equal(t, "80", indoor.OpeningStock.String())
	assert.Equal(t, "60", indoor.ClosingStock.String())
}

func TestResolveInitialStocks(t *testing.T) {
	base := entities.InitialStocks{"MIR": decimal.NewFromInt(3)}
	records := []entities.OpeningStockRecord{
		{RawLocation: "MIR", Quantity: decimal.NewFromInt(2)},
		{RawLocation: "M44 bay", Quantity: decimal.NewFromInt(5)},
		{RawLocation: "DSV Indoor", Quantity: decimal.NewFromInt(1)},
	}

	got := ResolveInitialStocks(services.NewDefaultResolver(), base, records)

	assert.Equal(t, "5", got.Get("MIR").String())
	assert.Equal(t, "6", got.Get("DSV Indoor").String())
	assert.Equal(t, "3", base.Get("MIR").String())
}

func TestPipeline_RunSources(t *testing.T) {
	var logs bytes.Buffer
	pipeline, _, _ := newTestPipeline(t, &logs)
	in := sampleInput(t)

	transactions := memory.NewTransactionRepository()
	require.NoError(t, transactions.LoadRows(in.Rows))
	snapshots := memory.NewSnapshotRepository()
	require.NoError(t, snapshots.LoadSnapshots(in.Reference))
	initial := memory.NewInitialStockRepository()
	initial.AddInitialStock("DSV Indoor", decimal.NewFromInt(10))

	result, err := pipeline.RunSources(context.Background(), Sources{
		SourceFile:   "tx.csv",
		Transactions: transactions,
		Snapshots:    snapshots,
		Initial:      initial,
	})
	require.NoError(t, err)

	assert.Equal(t, "10", result.Balances[0].OpeningStock.String())
	require.NotNil(t, result.Reconciliation)
	assert.Equal(t, 1, result.Reconciliation.Matched)
}

func TestSources_RequiresTransactions(t *testing.T) {
	_, err := Sources{}.Input()
	assert.Error(t, err)
}

func TestPipeline_SharedStoreLogsOnce(t *testing.T) {
	var logs bytes.Buffer
	store := events.NewInMemoryEventStore()

	config := DefaultConfig()
	config.EventStore = store
	config.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	config.Now = func() time.Time { return time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC) }

	first := NewPipeline(services.NewDefaultResolver(), config)
	_ = NewPipeline(services.NewDefaultResolver(), config)

	_, err := first.Run(context.Background(), sampleInput(t))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(logs.String(), "msg="+events.RecordDuplicateEvent))

	_, err = first.Run(context.Background(), sampleInput(t))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(logs.String(), "msg="+events.RecordDuplicateEvent))
}

func TestPipeline_InitialOutsideVocabulary(t *testing.T) {
	var logs bytes.Buffer
	pipeline, _, _ := newTestPipeline(t, &logs)

	in := sampleInput(t)
	in.Initial = entities.InitialStocks{"Retired Yard": decimal.NewFromInt(4)}

	result, err := pipeline.Run(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, result.Validation.Valid, result.Validation.Errors)
	assert.Contains(t, result.Diagnostics.Unresolved, entities.UnresolvedLocation{RawLocation: "Retired Yard"})
	for _, b := range result.Balances {
		assert.NotEqual(t, "Retired Yard", b.Location.ID)
	}
	assert.Contains(t, logs.String(), `raw_location="Retired Yard"`)
}
