package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/macho715/wh3/pkg/domain/entities"
)

// Resolution is the outcome of resolving one raw label
type Resolution struct {
	Label    string `json:"label"`
	Location string `json:"location"`
	Kind     string `json:"kind"`
	Rule     int    `json:"rule"`
	Pattern  string `json:"pattern,omitempty"`
}

// WriteResolutions writes label resolutions in format
func WriteResolutions(w io.Writer, format string, resolutions []Resolution) error {
	switch format {
	case "json":
		return writeJSON(w, resolutions)
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"label", "location", "kind", "rule", "pattern"}); err != nil {
			return err
		}
		for _, r := range resolutions {
			if err := cw.Write([]string{r.Label, r.Location, r.Kind, strconv.Itoa(r.Rule), r.Pattern}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case "text":
		p := &printer{w: w}
		for _, r := range resolutions {
			if r.Rule < 0 {
				p.printf("%q -> %s (no rule matched)\n", r.Label, r.Location)
				continue
			}
			p.printf("%q -> %s [%s] via rule %d %s\n", r.Label, r.Location, r.Kind, r.Rule, r.Pattern)
		}
		return p.err
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

type runSummaryView struct {
	ID                string    `json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	VocabularyVersion string    `json:"vocabulary_version"`
	Granularity       string    `json:"granularity"`
	SourceFile        string    `json:"source_file"`
	Balances          int       `json:"balances"`
	MatchRate         *float64  `json:"match_rate"`
}

// WriteRuns writes the list of stored runs in format
func WriteRuns(w io.Writer, format string, runs []entities.RunSummary) error {
	views := make([]runSummaryView, 0, len(runs))
	for _, r := range runs {
		views = append(views, runSummaryView{
			ID:                r.ID,
			CreatedAt:         r.CreatedAt,
			VocabularyVersion: r.VocabularyVersion,
			Granularity:       r.Granularity.String(),
			SourceFile:        r.SourceFile,
			Balances:          r.BalanceCount,
			MatchRate:         r.MatchRate,
		})
	}

	switch format {
	case "json":
		return writeJSON(w, views)
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"id", "created_at", "vocabulary_version", "granularity", "source_file", "balances", "match_rate"}); err != nil {
			return err
		}
		for _, v := range views {
			rate := ""
			if v.MatchRate != nil {
				rate = strconv.FormatFloat(*v.MatchRate, 'f', 4, 64)
			}
			if err := cw.Write([]string{v.ID, v.CreatedAt.Format(time.RFC3339), v.VocabularyVersion, v.Granularity,
				v.SourceFile, strconv.Itoa(v.Balances), rate}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case "text":
		p := &printer{w: w}
		p.printf("%-38s %-20s %-8s %9s %8s  %s\n", "Run", "Created", "Period", "Balances", "Match", "Source")
		for _, v := range views {
			rate := "-"
			if v.MatchRate != nil {
				rate = fmt.Sprintf("%.1f%%", *v.MatchRate*100)
			}
			p.printf("%-38s %-20s %-8s %9d %8s  %s\n",
				v.ID, v.CreatedAt.Format(time.DateTime), v.Granularity, v.Balances, rate, v.SourceFile)
		}
		return p.err
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
