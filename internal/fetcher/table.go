package fetcher

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Table is a header row plus data rows read from a CSV or XLSX document.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the header matching name case-insensitively,
// or -1.
func (t *Table) Column(name string) int {
	want := strings.ToLower(strings.TrimSpace(name))
	for i, h := range t.Header {
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return i
		}
	}
	return -1
}

// Cell returns row[col] trimmed, or "" when col is out of range.
func Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// TableOptions configures tabular decoding.
type TableOptions struct {
	Delimiter rune // CSV only, default ','
	SkipRows  int  // rows before the header
	SheetName string
	Sheet     int
}

// ReadCSVTable parses a CSV document. Rows may have a variable number of
// fields; blank rows are dropped.
func ReadCSVTable(data []byte, opts TableOptions) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	if opts.Delimiter != 0 {
		r.Comma = opts.Delimiter
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csv: read rows")
	}
	return toTable(rows, opts.SkipRows), nil
}

// ReadXLSXTable parses an XLSX workbook held in memory.
func ReadXLSXTable(data []byte, opts TableOptions) (*Table, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}
	sheet, err := pickSheet(f, opts)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return toTable(rows, opts.SkipRows), nil
}

func pickSheet(f *xlsx.File, opts TableOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.Sheet < 0 || opts.Sheet >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (workbook has %d sheets)", opts.Sheet, len(f.Sheets))
	}
	return f.Sheets[opts.Sheet], nil
}

func toTable(rows [][]string, skip int) *Table {
	t := &Table{}
	for i, row := range rows {
		if i < skip || blankRow(row) {
			continue
		}
		if t.Header == nil {
			t.Header = row
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
