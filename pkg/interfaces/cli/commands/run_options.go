package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/macho715/wh3/pkg/application/dto"
	"github.com/macho715/wh3/pkg/application/services/orchestration"
	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/domain/services"
	"github.com/macho715/wh3/pkg/infrastructure/config"
	"github.com/macho715/wh3/pkg/infrastructure/events"
	"github.com/macho715/wh3/pkg/infrastructure/repositories/csv"
	"github.com/macho715/wh3/pkg/infrastructure/repositories/memory"
	"github.com/macho715/wh3/pkg/infrastructure/repositories/sqlite"
	"github.com/macho715/wh3/pkg/infrastructure/repositories/xlsx"
	"github.com/macho715/wh3/pkg/interfaces/cli/output"
)

// RunOptions holds the flags of the commands that run the balance pipeline
type RunOptions struct {
	*RootOptions
	Transactions   string
	Reference      string
	Initial        string
	Ontology       string
	Granularity    string
	Epsilon        string
	Workers        int
	DeadStockDays  int
	Database       string
	OpeningFromRun string
	Output         string
}

func addRunFlags(cmd *cobra.Command, opts *RunOptions) {
	cmd.Flags().StringVar(&opts.Transactions, "transactions", "", "transaction file, CSV or XLSX (required)")
	cmd.Flags().StringVar(&opts.Reference, "reference", "", "reference closing stock file, CSV or XLSX")
	cmd.Flags().StringVar(&opts.Initial, "initial", "", "initial stock file, CSV or XLSX")
	cmd.Flags().StringVar(&opts.Ontology, "ontology", "", "ontology YAML file (default built-in vocabulary)")
	cmd.Flags().StringVar(&opts.Granularity, "granularity", "", "period granularity (monthly|daily)")
	cmd.Flags().StringVar(&opts.Epsilon, "epsilon", "", "reconciliation tolerance")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "locations computed in parallel")
	cmd.Flags().IntVar(&opts.DeadStockDays, "dead-stock-days", 0, "idle days before a case counts as dead stock")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database to store the run in")
	cmd.Flags().StringVar(&opts.OpeningFromRun, "opening-from-run", "", "seed initial stocks from the final closings of a stored run")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the report to a file instead of stdout")
	_ = cmd.MarkFlagRequired("transactions")
}

// settings merges flags over the environment configuration
type settings struct {
	granularity   entities.Granularity
	epsilon       decimal.Decimal
	workers       int
	deadStockDays int
	database      string
	ontology      string
}

func (o *RunOptions) settings(cmd *cobra.Command) (settings, error) {
	cfg := o.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(); err != nil {
			return settings{}, err
		}
	}

	s := settings{
		granularity:   cfg.Granularity,
		epsilon:       cfg.Epsilon,
		workers:       cfg.Workers,
		deadStockDays: cfg.DeadStockDays,
		database:      cfg.DBPath,
		ontology:      cfg.OntologyFile,
	}

	flags := cmd.Flags()
	if flags.Changed("granularity") {
		g, err := entities.ParseGranularity(o.Granularity)
		if err != nil {
			return settings{}, err
		}
		s.granularity = g
	}
	if flags.Changed("epsilon") {
		eps, err := decimal.NewFromString(o.Epsilon)
		if err != nil {
			return settings{}, fmt.Errorf("invalid epsilon %q: %w", o.Epsilon, err)
		}
		if eps.IsNegative() {
			return settings{}, fmt.Errorf("epsilon cannot be negative, got %s", eps)
		}
		s.epsilon = eps
	}
	if flags.Changed("workers") {
		s.workers = o.Workers
	}
	if flags.Changed("dead-stock-days") {
		s.deadStockDays = o.DeadStockDays
	}
	if flags.Changed("db") {
		s.database = o.Database
	}
	if flags.Changed("ontology") {
		s.ontology = o.Ontology
	}
	return s, nil
}

// tableLoader reads the input tables of a run from one file format
type tableLoader interface {
	LoadTransactions(filename string) ([]entities.TransactionRow, error)
	LoadReference(filename string) ([]entities.StockSnapshot, error)
	LoadInitialStocks(filename string) ([]entities.OpeningStockRecord, error)
}

func loaderFor(filename string, g entities.Granularity) tableLoader {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return xlsx.NewLoader(g)
	default:
		return csv.NewLoader(g)
	}
}

func loadResolver(path string) (*services.Resolver, error) {
	if path == "" {
		return services.NewDefaultResolver(), nil
	}
	ontology, err := config.LoadOntology(path)
	if err != nil {
		return nil, err
	}
	return ontology.Resolver()
}

// openStore opens the run database when a path is configured
func openStore(path string) (*sqlite.Store, error) {
	if path == "" {
		return nil, nil
	}
	return sqlite.Open(path)
}

// executeRun loads the inputs, runs the pipeline and writes the report
func (o *RunOptions) executeRun(ctx context.Context, cmd *cobra.Command, reconcileOnly bool) (*dto.RunResult, error) {
	s, err := o.settings(cmd)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid flags", err)
	}

	resolver, err := loadResolver(s.ontology)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load ontology", err)
	}

	store, err := openStore(s.database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	if store != nil {
		defer store.Close()
	}

	sources, err := o.loadSources(ctx, s, resolver, store)
	if err != nil {
		return nil, err
	}

	pipelineConfig := orchestration.DefaultConfig()
	pipelineConfig.Granularity = s.granularity
	pipelineConfig.Workers = s.workers
	pipelineConfig.DeadStockDays = s.deadStockDays
	pipelineConfig.Reconciliation.Epsilon = s.epsilon
	pipelineConfig.EventStore = events.NewInMemoryEventStore()
	pipelineConfig.Logger = o.logger()
	if store != nil {
		pipelineConfig.Runs = store
	}

	result, err := orchestration.NewPipeline(resolver, pipelineConfig).RunSources(ctx, sources)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "run failed", err)
	}

	if err := o.writeReport(cmd, result, reconcileOnly); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to write report", err)
	}
	return result, nil
}

func (o *RunOptions) loadSources(ctx context.Context, s settings, resolver *services.Resolver, store *sqlite.Store) (orchestration.Sources, error) {
	sources := orchestration.Sources{SourceFile: o.Transactions}
	log := o.logger()

	rows, err := loaderFor(o.Transactions, s.granularity).LoadTransactions(o.Transactions)
	if err != nil {
		return sources, WrapExitError(ExitCommandError, "failed to load transactions", err)
	}
	transactions := memory.NewTransactionRepository()
	if err := transactions.LoadRows(rows); err != nil {
		return sources, WrapExitError(ExitCommandError, "failed to load transactions", err)
	}
	sources.Transactions = transactions
	log.Debug("transactions loaded", slog.String("file", o.Transactions), slog.Int("rows", len(rows)))

	if o.Reference != "" {
		snapshots, err := loaderFor(o.Reference, s.granularity).LoadReference(o.Reference)
		if err != nil {
			return sources, WrapExitError(ExitCommandError, "failed to load reference", err)
		}
		repo := memory.NewSnapshotRepository()
		if err := repo.LoadSnapshots(snapshots); err != nil {
			return sources, WrapExitError(ExitCommandError, "failed to load reference", err)
		}
		sources.Snapshots = repo
		log.Debug("reference loaded", slog.String("file", o.Reference), slog.Int("records", len(snapshots)))
	}

	initial := memory.NewInitialStockRepository()
	var seeded entities.InitialStocks
	if o.OpeningFromRun != "" {
		if store == nil {
			return sources, NewExitError(ExitCommandError, "--opening-from-run needs a database (--db or WH3_DB_PATH)")
		}
		if seeded, err = store.FinalClosings(ctx, o.OpeningFromRun); err != nil {
			return sources, WrapExitError(ExitCommandError, "failed to read previous run", err)
		}
		log.Debug("initial stocks seeded from run", slog.String("from_run", o.OpeningFromRun), slog.Int("locations", len(seeded)))
	}
	var records []entities.OpeningStockRecord
	if o.Initial != "" {
		if records, err = loaderFor(o.Initial, s.granularity).LoadInitialStocks(o.Initial); err != nil {
			return sources, WrapExitError(ExitCommandError, "failed to load initial stocks", err)
		}
	}
	if err := initial.LoadInitialStocks(orchestration.ResolveInitialStocks(resolver, seeded, records)); err != nil {
		return sources, WrapExitError(ExitCommandError, "failed to load initial stocks", err)
	}
	sources.Initial = initial

	return sources, nil
}

func (o *RunOptions) writeReport(cmd *cobra.Command, result *dto.RunResult, reconcileOnly bool) error {
	var w io.Writer = cmd.OutOrStdout()
	if o.Output != "" {
		if err := os.MkdirAll(filepath.Dir(o.Output), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		f, err := os.Create(o.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return output.Generate(w, result, output.Config{
		Format:         o.Format,
		Verbose:        o.Verbose,
		Reconciliation: reconcileOnly,
	})
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
