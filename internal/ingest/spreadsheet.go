// Package ingest turns uploaded spreadsheets into employee and role records.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
)

// MaxRows caps the data rows accepted from a single upload.
const MaxRows = 10000

var (
	// ErrUnsupportedFormat is returned for file types other than xlsx and csv.
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	// ErrEmptySheet is returned when a file has no header row or no data rows.
	ErrEmptySheet = errors.New("spreadsheet has no data rows")
	// ErrTooManyRows is returned when a file exceeds MaxRows.
	ErrTooManyRows = fmt.Errorf("spreadsheet exceeds %d rows", MaxRows)
)

// Row is one data row keyed by normalized header name.
type Row struct {
	// Line is the 1-based line in the source sheet, header included.
	Line   int
	Values map[string]string
}

// Get returns the first non-empty value among keys.
func (r Row) Get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r.Values[k]); v != "" {
			return v
		}
	}
	return ""
}

// ReadFile parses an uploaded spreadsheet. The format is chosen by the file
// extension: .xlsx, .xlsm and .xltx go through excelize, .csv through
// encoding/csv. Only the first sheet with data is read.
func ReadFile(r io.Reader, fileName string) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm", ".xltx":
		return readExcel(r)
	case ".csv":
		return readCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, fileName)
	}
}

func readExcel(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		grid, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(grid) > 1 {
			return fromGrid(grid)
		}
	}
	return nil, ErrEmptySheet
}

func readCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	grid, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(grid) > 0 && len(grid[0]) > 0 {
		grid[0][0] = strings.TrimPrefix(grid[0][0], "\ufeff")
	}
	return fromGrid(grid)
}

// fromGrid maps a header row plus data rows to Rows, skipping blank lines.
func fromGrid(grid [][]string) ([]Row, error) {
	if len(grid) < 2 {
		return nil, ErrEmptySheet
	}
	if len(grid)-1 > MaxRows {
		return nil, ErrTooManyRows
	}

	header := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		header[i] = NormalizeHeader(h)
	}

	rows := make([]Row, 0, len(grid)-1)
	for i, cells := range grid[1:] {
		values := make(map[string]string, len(header))
		blank := true
		for j, cell := range cells {
			if j >= len(header) || header[j] == "" {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell != "" {
				blank = false
			}
			values[header[j]] = cell
		}
		if blank {
			continue
		}
		rows = append(rows, Row{Line: i + 2, Values: values})
	}
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}
	return rows, nil
}

// FromRecords converts JSON row objects, as sent in the excelData field of
// the upload API, into Rows.
func FromRecords(records []map[string]any) ([]Row, error) {
	if len(records) == 0 {
		return nil, ErrEmptySheet
	}
	if len(records) > MaxRows {
		return nil, ErrTooManyRows
	}
	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		values := make(map[string]string, len(rec))
		for k, v := range rec {
			key := NormalizeHeader(k)
			if key == "" || v == nil {
				continue
			}
			values[key] = strings.TrimSpace(stringify(v))
		}
		rows = append(rows, Row{Line: i + 2, Values: values})
	}
	return rows, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, stringify(p))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

// NormalizeHeader lowercases a column title and folds separators into
// underscores: "Employee No." becomes "employee_no".
func NormalizeHeader(h string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}
