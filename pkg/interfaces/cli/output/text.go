package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/macho715/wh3/pkg/application/dto"
)

// generateTextOutput writes a human-readable report
func generateTextOutput(w io.Writer, result *dto.RunResult, config Config) error {
	p := &printer{w: w}

	p.printf("📊 Inventory Balance Summary\n")
	p.printf("============================\n\n")
	p.printf("Run: %s\n", result.RunID)
	if result.SourceFile != "" {
		p.printf("Source: %s\n", result.SourceFile)
	}
	p.printf("Vocabulary: %s\n", result.VocabularyVersion)
	p.printf("Granularity: %s\n", result.Granularity)
	p.printf("Rows: %d, events counted: %d\n", result.Rows, result.EventsCounted)
	p.printf("Duration: %v\n\n", result.Duration().Round(time.Millisecond))

	if result.Summary != nil && len(result.Summary.Locations) > 0 {
		p.printf("📦 Locations:\n")
		p.printf("%-20s %-10s %8s %12s %12s %12s %12s\n",
			"Location", "Kind", "Periods", "Inbound", "Outbound", "Closing", "Min Closing")
		p.printf("%s\n", strings.Repeat("-", 92))
		for _, s := range result.Summary.Locations {
			p.printf("%-20s %-10s %8d %12s %12s %12s %12s\n",
				s.Location.ID,
				s.Location.Kind,
				s.Periods,
				s.TotalInbound,
				s.TotalOutbound,
				s.FinalClosing,
				s.MinClosing)
		}
		p.printf("%-20s %-10s %8s %12s %12s %12s\n\n",
			"TOTAL", "", "",
			result.Summary.TotalInbound,
			result.Summary.TotalOutbound,
			result.Summary.TotalFinalClosing)
	}

	if config.Verbose && len(result.Balances) > 0 {
		p.printf("📋 Balances:\n")
		p.printf("%-20s %-10s %12s %12s %12s %12s %7s\n",
			"Location", "Period", "Opening", "Inbound", "Outbound", "Closing", "Events")
		p.printf("%s\n", strings.Repeat("-", 91))
		for _, b := range result.Balances {
			p.printf("%-20s %-10s %12s %12s %12s %12s %7d\n",
				b.Location.ID,
				b.Period,
				b.OpeningStock,
				b.InboundQty,
				b.OutboundQty,
				b.ClosingStock,
				b.EventCount)
		}
		p.printf("\n")
	}

	if v := result.Validation; v != nil {
		if v.Valid {
			p.printf("✅ Balance integrity: valid\n")
		} else {
			p.printf("❌ Balance integrity: %d error(s)\n", len(v.Errors))
			for _, e := range v.Errors {
				p.printf("  %s\n", e)
			}
		}
		for _, warn := range v.Warnings {
			p.printf("  warning: %s\n", warn)
		}
		p.printf("\n")
	}

	if rep := result.Reconciliation; rep != nil {
		p.printf("🔍 Reconciliation: %d/%d matched (%.1f%%), %d without reference, %d orphan(s)\n",
			rep.Matched, rep.TotalCompared, rep.MatchRate*100, rep.MissingReference, len(rep.Orphans))
		mismatches := rep.Mismatches()
		if len(mismatches) > 0 {
			p.printf("%-20s %-10s %12s %12s %12s %-10s %-6s\n",
				"Location", "Period", "Computed", "Reference", "Delta", "Status", "Alert")
			p.printf("%s\n", strings.Repeat("-", 88))
			for _, r := range mismatches {
				p.printf("%-20s %-10s %12s %12s %12s %-10s %-6s\n",
					r.Location.ID,
					r.Period,
					r.ComputedClosing,
					optional(r.ReferenceClosing),
					optional(r.Delta),
					r.Status,
					r.AlertLevel)
			}
		}
		for _, o := range rep.Orphans {
			p.printf("  orphan reference %q (%s) %s: %s\n", o.RawLocation, o.Location.ID, o.Period, o.ClosingStock)
		}
		p.printf("\n")
	}

	if len(result.DeadStock) > 0 {
		p.printf("🕸️  Dead stock: %d case(s)\n", len(result.DeadStock))
		for _, c := range result.DeadStock {
			p.printf("  %-15s %-20s idle %d days since %s\n",
				c.CaseNo, c.LastLocation.ID, c.DaysIdle, c.LastMove.Format(time.DateOnly))
		}
		p.printf("\n")
	}

	if d := result.Diagnostics; d != nil && !d.Empty() {
		p.printf("⚠️  Diagnostics:\n")
		p.printf("  Malformed records: %d\n", len(d.Malformed))
		if config.Verbose {
			for _, m := range d.Malformed {
				p.printf("    row %d %s: %s\n", m.Row, m.SourceRecordID, m.Reason)
			}
		}
		p.printf("  Unresolved labels: %d\n", len(d.Unresolved))
		for _, u := range d.Unresolved {
			p.printf("    %q (%d events)\n", u.RawLocation, u.Events)
		}
		p.printf("  Duplicate records suppressed: %d\n", d.SuppressedDuplicates())
		p.printf("  Negative closings: %d\n", len(d.NegativeClosings))
		p.printf("  Reference mismatches: %d\n", len(d.ReferenceMismatches))
	}

	return p.err
}

// printer keeps the first write error so report code can stay linear
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
