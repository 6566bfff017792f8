package output

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/macho715/wh3/pkg/application/dto"
	"github.com/macho715/wh3/pkg/domain/entities"
)

type runView struct {
	RunID             string              `json:"run_id"`
	StartedAt         time.Time           `json:"started_at"`
	DurationMS        int64               `json:"duration_ms"`
	VocabularyVersion string              `json:"vocabulary_version"`
	Granularity       string              `json:"granularity"`
	SourceFile        string              `json:"source_file,omitempty"`
	Rows              int                 `json:"rows"`
	EventsCounted     int                 `json:"events_counted"`
	Balances          []balanceView       `json:"balances"`
	Validation        *validationView     `json:"validation,omitempty"`
	Reconciliation    *reconciliationView `json:"reconciliation,omitempty"`
	DeadStock         []deadStockView     `json:"dead_stock,omitempty"`
	Summary           []locationView      `json:"summary"`
	Diagnostics       diagnosticsView     `json:"diagnostics"`
}

type balanceView struct {
	Location        string          `json:"location"`
	Kind            string          `json:"kind"`
	Period          string          `json:"period"`
	OpeningStock    decimal.Decimal `json:"opening_stock"`
	InboundQty      decimal.Decimal `json:"inbound_qty"`
	OutboundQty     decimal.Decimal `json:"outbound_qty"`
	ClosingStock    decimal.Decimal `json:"closing_stock"`
	CumulativeStock decimal.Decimal `json:"cumulative_stock"`
	EventCount      int             `json:"event_count"`
}

type validationView struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type resultView struct {
	Location         string           `json:"location"`
	Period           string           `json:"period"`
	ComputedClosing  decimal.Decimal  `json:"computed_closing"`
	ReferenceClosing *decimal.Decimal `json:"reference_closing"`
	Delta            *decimal.Decimal `json:"delta"`
	Matched          bool             `json:"matched"`
	Status           string           `json:"status"`
	AlertLevel       string           `json:"alert_level,omitempty"`
}

type orphanView struct {
	RawLocation  string          `json:"raw_location"`
	Location     string          `json:"location"`
	Period       string          `json:"period"`
	ClosingStock decimal.Decimal `json:"closing_stock"`
}

type reconciliationView struct {
	TotalCompared    int          `json:"total_compared"`
	Matched          int          `json:"matched"`
	MissingReference int          `json:"missing_reference"`
	MatchRate        float64      `json:"match_rate"`
	Results          []resultView `json:"results"`
	Orphans          []orphanView `json:"orphans,omitempty"`
}

type deadStockView struct {
	CaseNo       string          `json:"case_no"`
	LastMove     string          `json:"last_move"`
	DaysIdle     int             `json:"days_idle"`
	LastLocation string          `json:"last_location"`
	Quantity     decimal.Decimal `json:"quantity"`
}

type locationView struct {
	Location      string          `json:"location"`
	Periods       int             `json:"periods"`
	Events        int             `json:"events"`
	TotalInbound  decimal.Decimal `json:"total_inbound"`
	TotalOutbound decimal.Decimal `json:"total_outbound"`
	FinalClosing  decimal.Decimal `json:"final_closing"`
	MinClosing    decimal.Decimal `json:"min_closing"`
	MaxClosing    decimal.Decimal `json:"max_closing"`
}

type malformedView struct {
	SourceRecordID string `json:"source_record_id"`
	Row            int    `json:"row"`
	Reason         string `json:"reason"`
}

type diagnosticsView struct {
	Malformed           []malformedView `json:"malformed"`
	Unresolved          map[string]int  `json:"unresolved"`
	Duplicates          map[string]int  `json:"duplicates"`
	NegativeClosings    int             `json:"negative_closings"`
	ReferenceMismatches int             `json:"reference_mismatches"`
}

func newRunView(r *dto.RunResult) runView {
	v := runView{
		RunID:             r.RunID,
		StartedAt:         r.StartedAt,
		DurationMS:        r.Duration().Milliseconds(),
		VocabularyVersion: r.VocabularyVersion,
		Granularity:       r.Granularity.String(),
		SourceFile:        r.SourceFile,
		Rows:              r.Rows,
		EventsCounted:     r.EventsCounted,
		Balances:          make([]balanceView, 0, len(r.Balances)),
		Summary:           make([]locationView, 0),
	}

	for _, b := range r.Balances {
		v.Balances = append(v.Balances, balanceView{
			Location:        b.Location.ID,
			Kind:            b.Location.Kind.String(),
			Period:          b.Period.String(),
			OpeningStock:    b.OpeningStock,
			InboundQty:      b.InboundQty,
			OutboundQty:     b.OutboundQty,
			ClosingStock:    b.ClosingStock,
			CumulativeStock: b.CumulativeStock,
			EventCount:      b.EventCount,
		})
	}

	if r.Validation != nil {
		v.Validation = &validationView{Valid: r.Validation.Valid, Errors: r.Validation.Errors, Warnings: r.Validation.Warnings}
	}

	if rep := r.Reconciliation; rep != nil {
		rv := &reconciliationView{
			TotalCompared:    rep.TotalCompared,
			Matched:          rep.Matched,
			MissingReference: rep.MissingReference,
			MatchRate:        rep.MatchRate,
			Results:          make([]resultView, 0, len(rep.Results)),
		}
		for _, res := range rep.Results {
			rv.Results = append(rv.Results, resultView{
				Location:         res.Location.ID,
				Period:           res.Period.String(),
				ComputedClosing:  res.ComputedClosing,
				ReferenceClosing: res.ReferenceClosing,
				Delta:            res.Delta,
				Matched:          res.Matched,
				Status:           string(res.Status),
				AlertLevel:       string(res.AlertLevel),
			})
		}
		for _, o := range rep.Orphans {
			rv.Orphans = append(rv.Orphans, orphanView{
				RawLocation:  o.RawLocation,
				Location:     o.Location.ID,
				Period:       o.Period.String(),
				ClosingStock: o.ClosingStock,
			})
		}
		v.Reconciliation = rv
	}

	for _, c := range r.DeadStock {
		v.DeadStock = append(v.DeadStock, deadStockView{
			CaseNo:       c.CaseNo,
			LastMove:     c.LastMove.Format(time.DateOnly),
			DaysIdle:     c.DaysIdle,
			LastLocation: c.LastLocation.ID,
			Quantity:     c.Quantity,
		})
	}

	if r.Summary != nil {
		for _, s := range r.Summary.Locations {
			v.Summary = append(v.Summary, newLocationView(s))
		}
	}

	if d := r.Diagnostics; d != nil {
		v.Diagnostics = newDiagnosticsView(d)
	}
	return v
}

func newDiagnosticsView(d *entities.Diagnostics) diagnosticsView {
	v := diagnosticsView{
		Malformed:           make([]malformedView, 0, len(d.Malformed)),
		Unresolved:          make(map[string]int, len(d.Unresolved)),
		Duplicates:          make(map[string]int, len(d.Duplicates)),
		NegativeClosings:    len(d.NegativeClosings),
		ReferenceMismatches: len(d.ReferenceMismatches),
	}
	for _, m := range d.Malformed {
		v.Malformed = append(v.Malformed, malformedView{SourceRecordID: m.SourceRecordID, Row: m.Row, Reason: m.Reason})
	}
	for _, u := range d.Unresolved {
		v.Unresolved[u.RawLocation] = u.Events
	}
	for _, dup := range d.Duplicates {
		v.Duplicates[dup.SourceRecordID] = dup.Occurrences
	}
	return v
}

func newLocationView(s dto.LocationSummary) locationView {
	return locationView{
		Location:      s.Location.ID,
		Periods:       s.Periods,
		Events:        s.Events,
		TotalInbound:  s.TotalInbound,
		TotalOutbound: s.TotalOutbound,
		FinalClosing:  s.FinalClosing,
		MinClosing:    s.MinClosing,
		MaxClosing:    s.MaxClosing,
	}
}
