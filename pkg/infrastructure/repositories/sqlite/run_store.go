package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/domain/repositories"
)

// ErrRunNotFound is returned when a run id is not in the store
var ErrRunNotFound = errors.New("run not found")

var _ repositories.RunRepository = (*Store)(nil)

// SaveRun writes a run with its balances, reconciliation results and
// diagnostics in one transaction. Saving an existing run id is a no-op.
func (s *Store) SaveRun(ctx context.Context, run *entities.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("save run: run id cannot be empty")
	}

	var matchRate any
	if run.Reconciliation != nil {
		matchRate = run.Reconciliation.MatchRate
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, created_at, vocabulary_version, granularity, source_file, match_rate)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`,
			run.ID,
			run.CreatedAt.UTC().Format(time.RFC3339Nano),
			run.VocabularyVersion,
			run.Granularity.String(),
			run.SourceFile,
			matchRate,
		)
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("save run: %w", err)
		} else if n == 0 {
			return nil
		}

		if err := insertBalances(ctx, tx, run.ID, run.Balances); err != nil {
			return err
		}
		if run.Reconciliation != nil {
			if err := insertReconciliation(ctx, tx, run.ID, run.Reconciliation.Results); err != nil {
				return err
			}
		}
		return insertDiagnostics(ctx, tx, run.ID, run.Diagnostics)
	})
}

func insertBalances(ctx context.Context, tx *sql.Tx, runID string, balances []entities.PeriodBalance) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO balances
		(run_id, location_id, location_kind, period, opening_stock, inbound_qty, outbound_qty, closing_stock, cumulative_stock, event_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("save balances: %w", err)
	}
	defer stmt.Close()

	for _, b := range balances {
		if _, err := stmt.ExecContext(ctx,
			runID,
			b.Location.ID,
			b.Location.Kind.String(),
			b.Period.String(),
			b.OpeningStock.String(),
			b.InboundQty.String(),
			b.OutboundQty.String(),
			b.ClosingStock.String(),
			b.CumulativeStock.String(),
			b.EventCount,
		); err != nil {
			return fmt.Errorf("save balance %s %s: %w", b.Location.ID, b.Period, err)
		}
	}
	return nil
}

func insertReconciliation(ctx context.Context, tx *sql.Tx, runID string, results []entities.ReconciliationResult) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reconciliation_results
		(run_id, location_id, period, computed, reference, delta, matched, status, alert_level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("save reconciliation: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		if _, err := stmt.ExecContext(ctx,
			runID,
			r.Location.ID,
			r.Period.String(),
			r.ComputedClosing.String(),
			nullableDecimal(r.ReferenceClosing),
			nullableDecimal(r.Delta),
			r.Matched,
			string(r.Status),
			string(r.AlertLevel),
		); err != nil {
			return fmt.Errorf("save reconciliation %s %s: %w", r.Location.ID, r.Period, err)
		}
	}
	return nil
}

type diagnosticRow struct {
	kind    entities.DiagnosticKind
	subject string
	detail  string
}

func diagnosticRows(d *entities.Diagnostics) []diagnosticRow {
	if d == nil {
		return nil
	}
	var rows []diagnosticRow
	for _, m := range d.Malformed {
		rows = append(rows, diagnosticRow{entities.KindMalformedRecord, m.SourceRecordID, fmt.Sprintf("row %d: %s", m.Row, m.Reason)})
	}
	for _, u := range d.Unresolved {
		rows = append(rows, diagnosticRow{entities.KindUnresolvedLocation, u.RawLocation, fmt.Sprintf("%d events", u.Events)})
	}
	for _, dup := range d.Duplicates {
		rows = append(rows, diagnosticRow{entities.KindDuplicateSource, dup.SourceRecordID, fmt.Sprintf("%d occurrences", dup.Occurrences)})
	}
	for _, n := range d.NegativeClosings {
		rows = append(rows, diagnosticRow{entities.KindNegativeClosingStock, n.Location.ID, fmt.Sprintf("%s closing %s", n.Period, n.ClosingStock)})
	}
	for _, r := range d.ReferenceMismatches {
		detail := r.Period.String()
		if r.Delta != nil {
			detail = fmt.Sprintf("%s delta %s", r.Period, r.Delta)
		}
		rows = append(rows, diagnosticRow{entities.KindReferenceMismatch, r.Location.ID, detail})
	}
	return rows
}

func insertDiagnostics(ctx context.Context, tx *sql.Tx, runID string, d *entities.Diagnostics) error {
	for i, row := range diagnosticRows(d) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO diagnostics (run_id, seq, kind, subject, detail)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, runID, i+1, string(row.kind), row.subject, row.detail); err != nil {
			return fmt.Errorf("save diagnostics: %w", err)
		}
	}
	return nil
}

// ListRuns returns every stored run, oldest first
func (s *Store) ListRuns(ctx context.Context) ([]entities.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.created_at, r.vocabulary_version, r.granularity, r.source_file, r.match_rate,
		       (SELECT COUNT(*) FROM balances b WHERE b.run_id = r.id)
		FROM runs r
		ORDER BY r.created_at, r.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]entities.RunSummary, 0)
	for rows.Next() {
		var (
			summary     entities.RunSummary
			createdAt   string
			granularity string
			matchRate   sql.NullFloat64
		)
		if err := rows.Scan(&summary.ID, &createdAt, &summary.VocabularyVersion, &granularity,
			&summary.SourceFile, &matchRate, &summary.BalanceCount); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if summary.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("list runs: bad created_at %q: %w", createdAt, err)
		}
		if summary.Granularity, err = entities.ParseGranularity(granularity); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if matchRate.Valid {
			rate := matchRate.Float64
			summary.MatchRate = &rate
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// LoadBalances returns the balance table of a run ordered by location, then period
func (s *Store) LoadBalances(ctx context.Context, runID string) ([]entities.PeriodBalance, error) {
	granularity, err := s.runGranularity(ctx, runID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT location_id, location_kind, period, opening_stock, inbound_qty, outbound_qty,
		       closing_stock, cumulative_stock, event_count
		FROM balances
		WHERE run_id = ?
		ORDER BY location_id, period
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}
	defer rows.Close()

	out := make([]entities.PeriodBalance, 0)
	for rows.Next() {
		var (
			b                                        entities.PeriodBalance
			kind, period                             string
			opening, inbound, outbound, closing, cum string
		)
		if err := rows.Scan(&b.Location.ID, &kind, &period, &opening, &inbound, &outbound,
			&closing, &cum, &b.EventCount); err != nil {
			return nil, fmt.Errorf("load balances: %w", err)
		}
		if b.Location.Kind, err = entities.ParseLocationKind(kind); err != nil {
			return nil, fmt.Errorf("load balances: %w", err)
		}
		if b.Period, err = entities.ParsePeriod(period, granularity); err != nil {
			return nil, fmt.Errorf("load balances: %w", err)
		}
		if err := parseDecimals(
			[]string{opening, inbound, outbound, closing, cum},
			[]*decimal.Decimal{&b.OpeningStock, &b.InboundQty, &b.OutboundQty, &b.ClosingStock, &b.CumulativeStock},
		); err != nil {
			return nil, fmt.Errorf("load balances %s %s: %w", b.Location.ID, period, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// FinalClosings returns the closing stock of the last stored period of every
// location of a run
func (s *Store) FinalClosings(ctx context.Context, runID string) (entities.InitialStocks, error) {
	if _, err := s.runGranularity(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.location_id, b.closing_stock
		FROM balances b
		JOIN (
			SELECT location_id, MAX(period) AS period
			FROM balances
			WHERE run_id = ?
			GROUP BY location_id
		) last ON last.location_id = b.location_id AND last.period = b.period
		WHERE b.run_id = ?
	`, runID, runID)
	if err != nil {
		return nil, fmt.Errorf("final closings: %w", err)
	}
	defer rows.Close()

	out := make(entities.InitialStocks)
	for rows.Next() {
		var id, closing string
		if err := rows.Scan(&id, &closing); err != nil {
			return nil, fmt.Errorf("final closings: %w", err)
		}
		d, err := decimal.NewFromString(closing)
		if err != nil {
			return nil, fmt.Errorf("final closings %s: %w", id, err)
		}
		out[id] = d
	}
	return out, rows.Err()
}

// DiagnosticCounts returns the number of stored findings per kind for a run
func (s *Store) DiagnosticCounts(ctx context.Context, runID string) (map[entities.DiagnosticKind]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM diagnostics WHERE run_id = ? GROUP BY kind
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("diagnostic counts: %w", err)
	}
	defer rows.Close()

	out := make(map[entities.DiagnosticKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("diagnostic counts: %w", err)
		}
		out[entities.DiagnosticKind(kind)] = n
	}
	return out, rows.Err()
}

func (s *Store) runGranularity(ctx context.Context, runID string) (entities.Granularity, error) {
	var g string
	err := s.db.QueryRowContext(ctx, `SELECT granularity FROM runs WHERE id = ?`, runID).Scan(&g)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Monthly, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return entities.Monthly, fmt.Errorf("lookup run %s: %w", runID, err)
	}
	return entities.ParseGranularity(g)
}

func nullableDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseDecimals(raw []string, dst []*decimal.Decimal) error {
	for i, s := range raw {
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		*dst[i] = d
	}
	return nil
}
