package intake

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	enc "github.com/cleargate/payline/internal/encoding"
	"github.com/cleargate/payline/internal/settlement"
)

// Parser reads originator batch exports and produces item params for the
// payments they carry. The export format is auto-detected by matching
// column headers against known profiles.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader) ([]settlement.CreateItemParams, error) {
	utf8r, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	reader := csv.NewReader(utf8r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	profile, cols, headerIdx := detectProfile(rows)
	if profile == nil {
		return nil, fmt.Errorf("no matching batch format found: expected columns for ledger, remittance or sepa")
	}

	return parseRows(profile, cols, rows[headerIdx+1:], headerIdx+1)
}

// colIndex maps column names to their index in the row.
type colIndex map[string]int

// detectProfile scans rows for a header that matches a known profile.
// Returns the matched profile, column index map, and header row index.
func detectProfile(rows [][]string) (*Profile, colIndex, int) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			name := strings.TrimSpace(cell)
			if name != "" {
				cols[name] = i
			}
		}

		for i := range profiles {
			if matchesProfile(&profiles[i], cols) {
				return &profiles[i], cols, rowIdx
			}
		}
	}

	return nil, nil, 0
}

// matchesProfile checks if all required columns of a profile are present.
func matchesProfile(p *Profile, cols colIndex) bool {
	for _, name := range p.requiredCols() {
		if _, ok := cols[name]; !ok {
			return false
		}
	}

	return true
}

// parseRows extracts payments from data rows using the matched profile.
// headerRowNum is the 0-based index of the header in the original file.
func parseRows(p *Profile, cols colIndex, rows [][]string, headerRowNum int) ([]settlement.CreateItemParams, error) {
	dateIdx := cols[p.DateCol]
	refIdx := cols[p.RefCol]

	var params []settlement.CreateItemParams

	for i, row := range rows {
		rowNum := headerRowNum + i + 2 // 1-based, skipping header

		if _, ok := parseDate(p, row, dateIdx); !ok {
			continue
		}

		if cellValue(row, refIdx) == "" {
			return nil, fmt.Errorf("row %d: missing payment reference", rowNum)
		}

		amount, ok := rowAmount(p, cols, row)
		if !ok {
			continue
		}

		params = append(params, settlement.CreateItemParams{Amount: amount})
	}

	return params, nil
}

// parseDate reports whether the cell holds a value date. Footer and summary
// rows fail here and are skipped.
func parseDate(p *Profile, row []string, idx int) (time.Time, bool) {
	s := cellValue(row, idx)
	if s == "" {
		return time.Time{}, false
	}

	t, err := time.Parse(p.DateFormat, s)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}

// rowAmount extracts the payment amount from a row. Rows without a positive
// amount (reversals, fees, balance lines) do not open items.
func rowAmount(p *Profile, cols colIndex, row []string) (decimal.Decimal, bool) {
	switch p.AmountMode {
	case amountSingle:
		return positiveAmount(cellValue(row, cols[p.AmountCol]), p.AmountFormat)
	case amountSplit:
		return positiveAmount(cellValue(row, cols[p.CreditCol]), p.AmountFormat)
	}

	return decimal.Decimal{}, false
}

func positiveAmount(s string, format amountFormat) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Decimal{}, false
	}

	d, err := parseBatchAmount(s, format)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}

	return d, true
}

// cellValue safely gets a trimmed cell value from a row.
func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
