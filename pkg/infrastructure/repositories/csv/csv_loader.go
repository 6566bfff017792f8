package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/macho715/wh3/pkg/domain/entities"
)

var (
	TransactionHeader  = []string{"record_id", "location", "date", "inbound_qty", "outbound_qty"}
	ReferenceHeader    = []string{"location", "period", "closing_stock"}
	InitialStockHeader = []string{"location", "opening_stock"}
)

// Loader handles loading warehouse data from CSV files
type Loader struct {
	// Granularity is used to parse the reference period column
	Granularity entities.Granularity
	// ParseTime parses the transaction date column; ParseDate when nil
	ParseTime func(string) (time.Time, error)
}

// NewLoader creates a new CSV loader
func NewLoader(granularity entities.Granularity) *Loader {
	return &Loader{Granularity: granularity}
}

// LoadTransactions loads transaction rows from a CSV file. Rows with
// unparseable cells are returned with Invalid set so the normalizer can reject
// them individually; only a missing file or a bad header is an error.
func (l *Loader) LoadTransactions(filename string) ([]entities.TransactionRow, error) {
	records, err := readFile(filename, "transactions")
	if err != nil {
		return nil, err
	}
	return l.ParseTransactions(records, filename)
}

// ParseTransactions converts records (header first) into transaction rows
func (l *Loader) ParseTransactions(records [][]string, source string) ([]entities.TransactionRow, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("transactions %s: missing header", source)
	}
	cols, err := indexHeader(records[0], TransactionHeader)
	if err != nil {
		return nil, fmt.Errorf("transactions %s: %w", source, err)
	}
	caseCol := columnOf(records[0], "case_no")

	parseTime := l.ParseTime
	if parseTime == nil {
		parseTime = ParseDate
	}

	rows := make([]entities.TransactionRow, 0, len(records)-1)
	for i, record := range records[1:] {
		if blank(record) {
			continue
		}
		cell := func(name string) string { return field(record, cols[name]) }

		row := entities.TransactionRow{
			SourceRecordID: cell("record_id"),
			Row:            i + 2,
			SourceFile:     source,
			RawLocation:    cell("location"),
		}
		if caseCol >= 0 {
			row.CaseNo = field(record, caseCol)
		}

		var problems []string
		if raw := cell("date"); raw != "" {
			ts, err := parseTime(raw)
			if err != nil {
				problems = append(problems, fmt.Sprintf("invalid date %q", raw))
			}
			row.Timestamp = ts
		}
		if row.InboundQty, err = parseOptionalQuantity(cell("inbound_qty")); err != nil {
			problems = append(problems, fmt.Sprintf("invalid inbound_qty %q", cell("inbound_qty")))
		}
		if row.OutboundQty, err = parseOptionalQuantity(cell("outbound_qty")); err != nil {
			problems = append(problems, fmt.Sprintf("invalid outbound_qty %q", cell("outbound_qty")))
		}
		row.Invalid = strings.Join(problems, "; ")

		rows = append(rows, row)
	}
	return rows, nil
}

// LoadReference loads reference closing stocks from a CSV file
func (l *Loader) LoadReference(filename string) ([]entities.StockSnapshot, error) {
	records, err := readFile(filename, "reference")
	if err != nil {
		return nil, err
	}
	return l.ParseReference(records, filename)
}

// ParseReference converts records (header first) into stock snapshots. Any
// bad row fails the load.
func (l *Loader) ParseReference(records [][]string, source string) ([]entities.StockSnapshot, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("reference %s: missing header", source)
	}
	cols, err := indexHeader(records[0], ReferenceHeader)
	if err != nil {
		return nil, fmt.Errorf("reference %s: %w", source, err)
	}

	snapshots := make([]entities.StockSnapshot, 0, len(records)-1)
	for i, record := range records[1:] {
		if blank(record) {
			continue
		}
		period, err := l.parsePeriod(field(record, cols["period"]))
		if err != nil {
			return nil, fmt.Errorf("reference CSV row %d: %w", i+2, err)
		}
		closing, err := parseQuantity(field(record, cols["closing_stock"]))
		if err != nil {
			return nil, fmt.Errorf("reference CSV row %d: invalid closing_stock: %w", i+2, err)
		}
		snapshots = append(snapshots, entities.StockSnapshot{
			RawLocation:  field(record, cols["location"]),
			Period:       period,
			ClosingStock: closing,
			Row:          i + 2,
		})
	}
	return snapshots, nil
}

// LoadInitialStocks loads raw opening balances from a CSV file
func (l *Loader) LoadInitialStocks(filename string) ([]entities.OpeningStockRecord, error) {
	records, err := readFile(filename, "initial stock")
	if err != nil {
		return nil, err
	}
	return ParseInitialStocks(records, filename)
}

// ParseInitialStocks converts records (header first) into opening stock records
func ParseInitialStocks(records [][]string, source string) ([]entities.OpeningStockRecord, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("initial stock %s: missing header", source)
	}
	cols, err := indexHeader(records[0], InitialStockHeader)
	if err != nil {
		return nil, fmt.Errorf("initial stock %s: %w", source, err)
	}

	out := make([]entities.OpeningStockRecord, 0, len(records)-1)
	for i, record := range records[1:] {
		if blank(record) {
			continue
		}
		qty, err := parseQuantity(field(record, cols["opening_stock"]))
		if err != nil {
			return nil, fmt.Errorf("initial stock CSV row %d: invalid opening_stock: %w", i+2, err)
		}
		out = append(out, entities.OpeningStockRecord{
			RawLocation: field(record, cols["location"]),
			Quantity:    qty,
			Row:         i + 2,
		})
	}
	return out, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02/01/2006",
}

// ParseDate accepts ISO dates with optional time, RFC3339 and dd/mm/yyyy
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format: %s (expected YYYY-MM-DD)", s)
}

func (l *Loader) parsePeriod(s string) (entities.Period, error) {
	if p, err := entities.ParsePeriod(s, l.Granularity); err == nil {
		return p, nil
	}
	parseTime := l.ParseTime
	if parseTime == nil {
		parseTime = ParseDate
	}
	t, err := parseTime(s)
	if err != nil {
		return entities.Period{}, fmt.Errorf("invalid period %q", s)
	}
	return entities.PeriodOf(t, l.Granularity), nil
}

func readFile(filename, kind string) ([][]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file %s: %w", kind, filename, err)
	}
	defer file.Close()

	records, err := readAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", kind, err)
	}
	return records, nil
}

func readAll(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

// indexHeader maps each required column name to its position. Names are
// matched case-insensitively and extra columns are ignored.
func indexHeader(header, required []string) (map[string]int, error) {
	cols := make(map[string]int, len(required))
	var missing []string
	for _, name := range required {
		idx := columnOf(header, name)
		if idx < 0 {
			missing = append(missing, name)
			continue
		}
		cols[name] = idx
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("header missing columns %v. Expected: %v, Got: %v", missing, required, header)
	}
	return cols, nil
}

func columnOf(header []string, name string) int {
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseQuantity(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	return decimal.NewFromString(s)
}

func parseOptionalQuantity(s string) (*decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := parseQuantity(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
