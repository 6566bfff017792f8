package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/macho715/wh3/pkg/domain/entities"
)

// ValidationReport is the outcome of checking a transaction file
type ValidationReport struct {
	Source      string
	Rows        int
	Events      int
	SourceError string
	Diagnostics *entities.Diagnostics
}

// OK reports a structurally valid file with no malformed or unresolved records
func (r ValidationReport) OK() bool {
	return r.SourceError == "" &&
		r.Diagnostics.Count(entities.KindMalformedRecord) == 0 &&
		r.Diagnostics.Count(entities.KindUnresolvedLocation) == 0
}

type validationReportView struct {
	Source      string          `json:"source"`
	OK          bool            `json:"ok"`
	Rows        int             `json:"rows"`
	Events      int             `json:"events"`
	SourceError string          `json:"source_error,omitempty"`
	Diagnostics diagnosticsView `json:"diagnostics"`
}

// WriteValidation writes a validation report in format
func WriteValidation(w io.Writer, format string, r ValidationReport) error {
	diag := r.Diagnostics
	if diag == nil {
		diag = &entities.Diagnostics{}
	}

	switch format {
	case "json":
		return writeJSON(w, validationReportView{
			Source:      r.Source,
			OK:          r.OK(),
			Rows:        r.Rows,
			Events:      r.Events,
			SourceError: r.SourceError,
			Diagnostics: newDiagnosticsView(diag),
		})
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"kind", "subject", "row", "detail"}); err != nil {
			return err
		}
		if r.SourceError != "" {
			if err := cw.Write([]string{"INVALID_SOURCE", r.Source, "", r.SourceError}); err != nil {
				return err
			}
		}
		for _, m := range diag.Malformed {
			if err := cw.Write([]string{string(entities.KindMalformedRecord), m.SourceRecordID, strconv.Itoa(m.Row), m.Reason}); err != nil {
				return err
			}
		}
		for _, u := range diag.Unresolved {
			if err := cw.Write([]string{string(entities.KindUnresolvedLocation), u.RawLocation, "", fmt.Sprintf("%d events", u.Events)}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case "text":
		p := &printer{w: w}
		p.printf("%s: %d rows, %d events\n", r.Source, r.Rows, r.Events)
		if r.SourceError != "" {
			p.printf("❌ %s\n", r.SourceError)
			return p.err
		}
		for _, m := range diag.Malformed {
			p.printf("  row %d %s: %s\n", m.Row, m.SourceRecordID, m.Reason)
		}
		for _, u := range diag.Unresolved {
			p.printf("  unresolved %q (%d events)\n", u.RawLocation, u.Events)
		}
		if r.OK() {
			p.printf("✅ valid\n")
		} else {
			p.printf("❌ %d malformed, %d unresolved\n", len(diag.Malformed), len(diag.Unresolved))
		}
		return p.err
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
