package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/macho715/wh3/pkg/application/dto"
	"github.com/macho715/wh3/pkg/domain/entities"
)

// ValidFormats lists the supported output formats
var ValidFormats = []string{"text", "json", "csv"}

// IsValidFormat reports whether format is one of ValidFormats
func IsValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Config holds configuration for output generation
type Config struct {
	Format  string
	Verbose bool
	// Reconciliation selects the reconciliation table instead of balances for csv
	Reconciliation bool
}

// Generate writes a run result in the configured format
func Generate(w io.Writer, result *dto.RunResult, config Config) error {
	switch config.Format {
	case "text":
		return generateTextOutput(w, result, config)
	case "json":
		return writeJSON(w, newRunView(result))
	case "csv":
		if config.Reconciliation {
			if result.Reconciliation == nil {
				return fmt.Errorf("no reconciliation report to write")
			}
			return WriteReconciliationCSV(w, result.Reconciliation)
		}
		return WriteBalancesCSV(w, result.Balances)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

// BalanceHeader is the header row of the balance CSV table
var BalanceHeader = []string{
	"location", "kind", "period", "opening_stock", "inbound_qty", "outbound_qty",
	"closing_stock", "cumulative_stock", "event_count",
}

// WriteBalancesCSV writes the balance table, one row per location and period
func WriteBalancesCSV(w io.Writer, balances []entities.PeriodBalance) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(BalanceHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, b := range balances {
		record := []string{
			b.Location.ID,
			strings.ToLower(b.Location.Kind.String()),
			b.Period.String(),
			b.OpeningStock.String(),
			b.InboundQty.String(),
			b.OutboundQty.String(),
			b.ClosingStock.String(),
			b.CumulativeStock.String(),
			strconv.Itoa(b.EventCount),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write balance %s %s: %w", b.Location.ID, b.Period, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReconciliationHeader is the header row of the reconciliation CSV table
var ReconciliationHeader = []string{
	"location", "period", "computed_closing", "reference_closing", "delta", "matched", "status", "alert_level",
}

// WriteReconciliationCSV writes one row per compared balance
func WriteReconciliationCSV(w io.Writer, report *entities.ReconciliationReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ReconciliationHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range report.Results {
		record := []string{
			r.Location.ID,
			r.Period.String(),
			r.ComputedClosing.String(),
			optional(r.ReferenceClosing),
			optional(r.Delta),
			strconv.FormatBool(r.Matched),
			string(r.Status),
			string(r.AlertLevel),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write reconciliation %s %s: %w", r.Location.ID, r.Period, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func optional(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return nil
}
