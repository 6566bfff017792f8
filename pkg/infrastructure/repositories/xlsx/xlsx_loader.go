package xlsx

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/infrastructure/repositories/csv"
)

// Loader reads the same tables as the CSV loader from the first sheet (or a
// named sheet) of an Excel workbook
type Loader struct {
	Sheet  string
	parser *csv.Loader
}

// NewLoader creates a new XLSX loader
func NewLoader(granularity entities.Granularity) *Loader {
	parser := csv.NewLoader(granularity)
	parser.ParseTime = ParseCellTime
	return &Loader{parser: parser}
}

// LoadTransactions loads transaction rows from a workbook
func (l *Loader) LoadTransactions(filename string) ([]entities.TransactionRow, error) {
	records, err := l.readSheet(filename)
	if err != nil {
		return nil, err
	}
	return l.parser.ParseTransactions(records, filename)
}

// LoadReference loads reference closing stocks from a workbook
func (l *Loader) LoadReference(filename string) ([]entities.StockSnapshot, error) {
	records, err := l.readSheet(filename)
	if err != nil {
		return nil, err
	}
	return l.parser.ParseReference(records, filename)
}

// LoadInitialStocks loads raw opening balances from a workbook
func (l *Loader) LoadInitialStocks(filename string) ([]entities.OpeningStockRecord, error) {
	records, err := l.readSheet(filename)
	if err != nil {
		return nil, err
	}
	return csv.ParseInitialStocks(records, filename)
}

func (l *Loader) readSheet(filename string) ([][]string, error) {
	f, err := excelize.OpenFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", filename, err)
	}
	defer f.Close()

	sheet := l.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", filename)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheet, filename, err)
	}
	return rows, nil
}

// ParseCellTime accepts Excel date serials as well as the text formats of csv.ParseDate
func ParseCellTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date serial: %s", s)
		}
		return t, nil
	}
	return csv.ParseDate(s)
}
