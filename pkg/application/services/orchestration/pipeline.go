package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/macho715/wh3/pkg/application/dto"
	"github.com/macho715/wh3/pkg/application/services/analysis"
	"github.com/macho715/wh3/pkg/application/services/balance"
	"github.com/macho715/wh3/pkg/application/services/normalizer"
	"github.com/macho715/wh3/pkg/application/services/reconciliation"
	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/domain/repositories"
	"github.com/macho715/wh3/pkg/domain/services"
	"github.com/macho715/wh3/pkg/infrastructure/events"
)

// Config holds the settings of a balance pipeline
type Config struct {
	Granularity    entities.Granularity
	Workers        int
	Reconciliation reconciliation.Config
	DeadStockDays  int

	// EventStore receives the audit events of every run; an in-memory store when nil
	EventStore events.EventStore
	// Runs persists completed runs when set
	Runs repositories.RunRepository
	// Logger receives diagnostics and progress; slog.Default() when nil
	Logger *slog.Logger
	// Now returns the current time; time.Now when nil
	Now func() time.Time
}

// DefaultConfig returns a monthly, serial pipeline with exact reconciliation
func DefaultConfig() Config {
	return Config{
		Granularity:    entities.Monthly,
		Workers:        1,
		Reconciliation: reconciliation.DefaultConfig(),
		DeadStockDays:  analysis.DefaultDeadStockDays,
	}
}

// RunInput is everything one balance run reads
type RunInput struct {
	SourceFile string
	Rows       []entities.TransactionRow
	// Reference enables reconciliation when non-nil
	Reference []entities.StockSnapshot
	// Initial holds already canonical initial stocks, e.g. closings of a previous run
	Initial entities.InitialStocks
	// OpeningStocks are raw-labelled initial stocks, resolved and added to Initial
	OpeningStocks []entities.OpeningStockRecord
}

// Pipeline runs normalization, balance computation, validation,
// reconciliation and dead stock analysis as one audited run
type Pipeline struct {
	resolver   *services.Resolver
	normalizer *normalizer.Normalizer
	engine     *balance.Engine
	validator  *services.BalanceValidator
	checker    *reconciliation.Checker
	deadStock  *analysis.DeadStockAnalyzer
	eventStore events.EventStore
	runs       repositories.RunRepository
	logger     *slog.Logger
	now        func() time.Time
	config     Config
}

// NewPipeline wires a pipeline around resolver
func NewPipeline(resolver *services.Resolver, config Config) *Pipeline {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	store := config.EventStore
	if store == nil {
		store = events.NewInMemoryEventStore()
	}

	deadStock := analysis.NewDeadStockAnalyzer(config.DeadStockDays)
	deadStock.Now = now

	return &Pipeline{
		resolver:   resolver,
		normalizer: normalizer.NewNormalizer(resolver),
		engine: balance.NewEngineWithConfig(balance.Config{
			Granularity: config.Granularity,
			Workers:     config.Workers,
			Vocabulary:  resolver.Vocabulary(),
		}),
		validator:  services.NewBalanceValidator(),
		checker:    reconciliation.NewChecker(resolver, config.Reconciliation),
		deadStock:  deadStock,
		eventStore: store,
		runs:       config.Runs,
		logger:     logger,
		now:        now,
		config:     config,
	}
}

// EventStore returns the store receiving run events
func (p *Pipeline) EventStore() events.EventStore {
	return p.eventStore
}

// Run executes one balance run. Only a structurally invalid source, a
// cancelled context or a persistence failure return an error; every other
// finding is reported in the result diagnostics.
func (p *Pipeline) Run(ctx context.Context, in RunInput) (*dto.RunResult, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to create run id: %w", err)
	}
	runID := id.String()

	result := &dto.RunResult{
		RunID:             runID,
		StartedAt:         p.now(),
		VocabularyVersion: p.resolver.Vocabulary().Version(),
		Granularity:       p.config.Granularity,
		SourceFile:        in.SourceFile,
		Rows:              len(in.Rows),
	}
	log := p.logger.With(slog.String("run_id", runID))

	// the store may be shared with other pipelines; each run logs only its own stream
	diagnostics := events.NewDiagnosticLogger(p.logger).ForStream(runID)
	if err := p.eventStore.Subscribe(events.DiagnosticEventTypes, diagnostics); err != nil {
		log.Warn("failed to subscribe diagnostic logger", slog.Any("error", err))
	}
	defer func() {
		if err := p.eventStore.Unsubscribe(diagnostics); err != nil {
			log.Warn("failed to unsubscribe diagnostic logger", slog.Any("error", err))
		}
	}()

	p.publish(runID, events.RunStartedEvent, events.RunStarted{
		VocabularyVersion: result.VocabularyVersion,
		Granularity:       result.Granularity.String(),
		SourceFile:        in.SourceFile,
	})

	if err := p.execute(ctx, runID, in, result); err != nil {
		p.publish(runID, events.RunFailedEvent, events.RunFailed{Error: err.Error()})
		log.Error("run failed", slog.Any("error", err))
		return nil, err
	}

	result.CompletedAt = p.now()
	p.publish(runID, events.RunCompletedEvent, events.RunCompleted{
		Balances:    len(result.Balances),
		DurationMS:  result.Duration().Milliseconds(),
		Diagnostics: diagnosticTotal(result.Diagnostics),
	})
	log.Info("run completed",
		slog.Int("rows", result.Rows),
		slog.Int("events", result.EventsCounted),
		slog.Int("balances", len(result.Balances)),
		slog.Duration("duration", result.Duration()),
	)

	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, runID string, in RunInput, result *dto.RunResult) error {
	normalized, err := p.normalizer.Collect(in.Rows)
	if err != nil {
		return fmt.Errorf("failed to normalize %s: %w", sourceName(in.SourceFile), err)
	}
	diag := normalized.Diagnostics
	result.Diagnostics = diag

	p.publish(runID, events.SourceLoadedEvent, events.SourceLoaded{Rows: normalized.Rows, Events: len(normalized.Events)})
	for _, m := range diag.Malformed {
		p.publish(runID, events.RecordMalformedEvent, events.RecordMalformed{SourceRecordID: m.SourceRecordID, Row: m.Row, Reason: m.Reason})
	}
	for _, u := range diag.Unresolved {
		p.publish(runID, events.LocationUnresolvedEvent, events.LocationUnresolved{RawLocation: u.RawLocation, Events: u.Events})
	}

	initial := ResolveInitialStocks(p.resolver, in.Initial, in.OpeningStocks)

	computed, err := p.engine.ComputeBalances(ctx, normalized.Events, initial)
	if err != nil {
		return fmt.Errorf("failed to compute balances: %w", err)
	}
	result.Balances = computed.Balances
	result.EventsCounted = computed.EventsCounted
	diag.Duplicates = computed.Duplicates
	diag.NegativeClosings = computed.NegativeClosings

	for _, id := range computed.UnknownInitial {
		diag.Unresolved = append(diag.Unresolved, entities.UnresolvedLocation{RawLocation: id})
		p.publish(runID, events.LocationUnresolvedEvent, events.LocationUnresolved{RawLocation: id})
	}

	for _, d := range computed.Duplicates {
		p.publish(runID, events.RecordDuplicateEvent, events.RecordDuplicate{SourceRecordID: d.SourceRecordID, Occurrences: d.Occurrences})
	}
	for _, n := range computed.NegativeClosings {
		p.publish(runID, events.ClosingNegativeEvent, events.ClosingNegative{Location: n.Location.ID, Period: n.Period.String(), ClosingStock: n.ClosingStock})
	}
	p.publish(runID, events.BalancesComputedEvent, events.BalancesComputed{
		Locations: countLocations(computed.Balances),
		Periods:   len(computed.Periods),
		Balances:  len(computed.Balances),
	})

	result.Validation = p.validator.Validate(computed.Balances, computed.Initial)
	if !result.Validation.Valid {
		p.publish(runID, events.ValidationFailedEvent, events.ValidationFailed{Errors: result.Validation.Errors})
	}

	if in.Reference != nil {
		report := p.checker.Reconcile(computed.Balances, in.Reference)
		result.Reconciliation = report
		diag.ReferenceMismatches = report.Mismatches()

		for _, m := range diag.ReferenceMismatches {
			p.publish(runID, events.ReferenceMismatchEvent, events.ReferenceMismatch{
				Location:   m.Location.ID,
				Period:     m.Period.String(),
				Computed:   m.ComputedClosing,
				Reference:  *m.ReferenceClosing,
				Delta:      *m.Delta,
				AlertLevel: string(m.AlertLevel),
			})
		}
		p.publish(runID, events.ReconciliationDoneEvent, events.ReconciliationDone{
			TotalCompared: report.TotalCompared,
			Matched:       report.Matched,
			MatchRate:     report.MatchRate,
			Orphans:       len(report.Orphans),
		})
	}

	unique, _ := balance.Deduplicate(normalized.Events)
	result.DeadStock = p.deadStock.Analyze(unique)
	if len(result.DeadStock) > 0 {
		p.publish(runID, events.DeadStockDetectedEvent, events.DeadStockDetected{Cases: len(result.DeadStock)})
	}

	result.Summary = dto.Summarize(computed.Balances)

	if p.runs != nil {
		run := &entities.Run{
			ID:                runID,
			CreatedAt:         result.StartedAt,
			VocabularyVersion: result.VocabularyVersion,
			Granularity:       result.Granularity,
			SourceFile:        result.SourceFile,
			Balances:          result.Balances,
			Reconciliation:    result.Reconciliation,
			Diagnostics:       diag,
		}
		if err := p.runs.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
	}

	return nil
}

// Sources are the repositories a run reads from. Snapshots and Initial are optional.
type Sources struct {
	SourceFile   string
	Transactions repositories.TransactionRepository
	Snapshots    repositories.SnapshotRepository
	Initial      repositories.InitialStockRepository
}

// Input reads the repositories into a RunInput
func (s Sources) Input() (RunInput, error) {
	if s.Transactions == nil {
		return RunInput{}, fmt.Errorf("no transaction repository")
	}
	in := RunInput{SourceFile: s.SourceFile}

	rows, err := s.Transactions.GetRows()
	if err != nil {
		return RunInput{}, fmt.Errorf("failed to read transactions: %w", err)
	}
	in.Rows = rows

	if s.Snapshots != nil {
		snapshots, err := s.Snapshots.GetSnapshots()
		if err != nil {
			return RunInput{}, fmt.Errorf("failed to read reference snapshots: %w", err)
		}
		in.Reference = snapshots
		if in.Reference == nil {
			in.Reference = make([]entities.StockSnapshot, 0)
		}
	}

	if s.Initial != nil {
		initial, err := s.Initial.GetInitialStocks()
		if err != nil {
			return RunInput{}, fmt.Errorf("failed to read initial stocks: %w", err)
		}
		in.Initial = initial
	}
	return in, nil
}

// RunSources reads src and runs it
func (p *Pipeline) RunSources(ctx context.Context, src Sources) (*dto.RunResult, error) {
	in, err := src.Input()
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, in)
}

// ResolveInitialStocks resolves raw opening stock labels and adds them to a
// copy of base. Records resolving to the same location are summed.
func ResolveInitialStocks(resolver *services.Resolver, base entities.InitialStocks, records []entities.OpeningStockRecord) entities.InitialStocks {
	out := make(entities.InitialStocks, len(base)+len(records))
	for id, qty := range base {
		out[id] = qty
	}
	for _, r := range records {
		id := resolver.Resolve(r.RawLocation).ID
		out[id] = out.Get(id).Add(r.Quantity)
	}
	return out
}

func (p *Pipeline) publish(runID, eventType string, data any) {
	if err := p.eventStore.AppendEvent(runID, events.NewEventAt(eventType, runID, data, p.now())); err != nil {
		p.logger.Warn("failed to publish event", slog.String("type", eventType), slog.Any("error", err))
	}
}

func countLocations(balances []entities.PeriodBalance) int {
	seen := make(map[string]struct{})
	for _, b := range balances {
		seen[b.Location.ID] = struct{}{}
	}
	return len(seen)
}

func diagnosticTotal(d *entities.Diagnostics) int {
	total := 0
	for _, kind := range []entities.DiagnosticKind{
		entities.KindMalformedRecord,
		entities.KindUnresolvedLocation,
		entities.KindDuplicateSource,
		entities.KindNegativeClosingStock,
		entities.KindReferenceMismatch,
	} {
		total += d.Count(kind)
	}
	return total
}

func sourceName(s string) string {
	if s == "" {
		return "input"
	}
	return s
}

