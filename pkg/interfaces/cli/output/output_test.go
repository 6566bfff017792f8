package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macho715/wh3/pkg/application/dto"
	"github.com/macho715/wh3/pkg/application/services/reconciliation"
	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/domain/services"
)

func month(t *testing.T, s string) entities.Period {
	t.Helper()
	p, err := entities.ParsePeriod(s, entities.Monthly)
	require.NoError(t, err)
	return p
}

func row(t *testing.T, id string, kind entities.LocationKind, period string, opening, in, out, cumulative int64, events int) entities.PeriodBalance {
	t.Helper()
	o, i, x := decimal.NewFromInt(opening), decimal.NewFromInt(in), decimal.NewFromInt(out)
	return entities.PeriodBalance{
		Location:        entities.CanonicalLocation{ID: id, Kind: kind},
		Period:          month(t, period),
		OpeningStock:    o,
		InboundQty:      i,
		OutboundQty:     x,
		ClosingStock:    o.Add(i).Sub(x),
		CumulativeStock: decimal.NewFromInt(cumulative),
		EventCount:      events,
	}
}

func fixtureBalances(t *testing.T) []entities.PeriodBalance {
	return []entities.PeriodBalance{
		row(t, "DSV Indoor", entities.Warehouse, "2024-01", 10, 100, 30, 70, 2),
		row(t, "DSV Indoor", entities.Warehouse, "2024-02", 80, 0, 0, 70, 0),
		row(t, "MIR", entities.Site, "2024-01", 0, 0, 0, 0, 0),
		row(t, "MIR", entities.Site, "2024-02", 0, 40, 0, 40, 1),
	}
}

func fixtureResult(t *testing.T) *dto.RunResult {
	balances := fixtureBalances(t)
	checker := reconciliation.NewChecker(services.NewDefaultResolver(), reconciliation.DefaultConfig())
	report := checker.Reconcile(balances, []entities.StockSnapshot{
		{RawLocation: "DSV Indoor", Period: month(t, "2024-02"), ClosingStock: decimal.NewFromInt(80)},
		{RawLocation: "mir", Period: month(t, "2024-02"), ClosingStock: decimal.NewFromInt(50)},
	})

	started := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	return &dto.RunResult{
		RunID:             "run-1",
		StartedAt:         started,
		CompletedAt:       started.Add(15 * time.Millisecond),
		VocabularyVersion: services.DefaultVocabularyVersion,
		Granularity:       entities.Monthly,
		SourceFile:        "tx.csv",
		Rows:              4,
		EventsCounted:     3,
		Balances:          balances,
		Validation:        services.NewBalanceValidator().Validate(balances, entities.InitialStocks{"DSV Indoor": decimal.NewFromInt(10)}),
		Reconciliation:    report,
		Summary:           dto.Summarize(balances),
		Diagnostics: &entities.Diagnostics{
			Malformed:           []entities.MalformedRecordError{{SourceRecordID: "T9", Row: 5, Reason: "missing timestamp"}},
			ReferenceMismatches: report.Mismatches(),
		},
	}
}

func TestWriteBalancesCSV_Golden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBalancesCSV(&buf, fixtureBalances(t)))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "balances_csv", buf.Bytes())
}

func TestWriteReconciliationCSV_Golden(t *testing.T) {
	result := fixtureResult(t)

	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, result, Config{Format: "csv", Reconciliation: true}))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "reconciliation_csv", buf.Bytes())
}

func TestGenerate_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, fixtureResult(t), Config{Format: "json"}))

	var decoded struct {
		RunID    string `json:"run_id"`
		Balances []struct {
			Location     string `json:"location"`
			Period       string `json:"period"`
			ClosingStock string `json:"closing_stock"`
		} `json:"balances"`
		Reconciliation struct {
			Matched int `json:"matched"`
			Results []struct {
				Delta *string `json:"delta"`
			} `json:"results"`
		} `json:"reconciliation"`
		Diagnostics struct {
			Malformed []struct {
				SourceRecordID string `json:"source_record_id"`
			} `json:"malformed"`
		} `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Balances, 4)
	assert.Equal(t, "DSV Indoor", decoded.Balances[0].Location)
	assert.Equal(t, "2024-01", decoded.Balances[0].Period)
	assert.Equal(t, "80", decoded.Balances[0].ClosingStock)
	assert.Equal(t, 1, decoded.Reconciliation.Matched)
	require.Len(t, decoded.Reconciliation.Results, 4)
	assert.Nil(t, decoded.Reconciliation.Results[0].Delta)
	require.NotNil(t, decoded.Reconciliation.Results[3].Delta)
	assert.Equal(t, "10", *decoded.Reconciliation.Results[3].Delta)
	require.Len(t, decoded.Diagnostics.Malformed, 1)
	assert.Equal(t, "T9", decoded.Diagnostics.Malformed[0].SourceRecordID)
}

func TestGenerate_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, fixtureResult(t), Config{Format: "text", Verbose: true}))

	out := buf.String()
	assert.Contains(t, out, "Run: run-1")
	assert.Contains(t, out, "Balance integrity: valid")
	assert.Contains(t, out, "Reconciliation: 1/2 matched (50.0%), 2 without reference")
	assert.Contains(t, out, "ATTENTION")
	assert.Contains(t, out, "row 5 T9: missing timestamp")
}

func TestGenerate_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Generate(&buf, fixtureResult(t), Config{Format: "xml"}))

	result := fixtureResult(t)
	result.Reconciliation = nil
	assert.Error(t, Generate(&buf, result, Config{Format: "csv", Reconciliation: true}))
}

func TestWriteResolutions(t *testing.T) {
	resolutions := []Resolution{
		{Label: "M44-A12", Location: "DSV Indoor", Kind: "Warehouse", Rule: 13, Pattern: `^M44\b`},
		{Label: "Mystery", Location: entities.UnmatchedID, Kind: "Warehouse", Rule: -1},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteResolutions(&buf, "text", resolutions))
	assert.Contains(t, buf.String(), `"M44-A12" -> DSV Indoor [Warehouse] via rule 13`)
	assert.Contains(t, buf.String(), `"Mystery" -> UNMATCHED (no rule matched)`)

	buf.Reset()
	require.NoError(t, WriteResolutions(&buf, "csv", resolutions))
	assert.Contains(t, buf.String(), "Mystery,UNMATCHED,Warehouse,-1,\n")
}

func TestWriteRuns(t *testing.T) {
	rate := 0.75
	runs := []entities.RunSummary{
		{ID: "r1", CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Granularity: entities.Monthly, BalanceCount: 4, MatchRate: &rate},
		{ID: "r2", CreatedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), Granularity: entities.Daily},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRuns(&buf, "text", runs))
	assert.Contains(t, buf.String(), "75.0%")

	buf.Reset()
	require.NoError(t, WriteRuns(&buf, "csv", runs))
	assert.Contains(t, buf.String(), "r1,2024-03-01T00:00:00Z,,monthly,,4,0.7500\n")
	assert.Contains(t, buf.String(), "r2,2024-04-01T00:00:00Z,,daily,,0,\n")
}
