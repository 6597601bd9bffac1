package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/fetcher"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

const summarySheet = "Summary"

var recordHeader = []string{"Title", "Code", "End Date", "Link", "Score"}

var summaryHeader = []string{"Target", "Sheet", "Status", "Records", "Attempts", "Elapsed (s)", "Error"}

// XLSXEncoder writes a bundle as a workbook: a summary sheet followed by one
// sheet per target.
type XLSXEncoder struct {
	Bundle *Bundle
}

// Ext implements cache.Encoder.
func (XLSXEncoder) Ext() string { return "xlsx" }

// Encode implements cache.Encoder.
func (e XLSXEncoder) Encode(w io.Writer) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(summarySheet)
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	addRow(summary, summaryHeader...)

	used := map[string]bool{strings.ToLower(summarySheet): true}
	for _, s := range e.Bundle.Sections {
		name := sheetName(s.Target.Key, used)
		status := "ok"
		if s.Failed() {
			status = "failed"
		}
		row := summary.AddRow()
		row.AddCell().SetString(s.Target.Key)
		row.AddCell().SetString(name)
		row.AddCell().SetString(status)
		row.AddCell().SetInt(len(s.Records))
		row.AddCell().SetInt(s.Attempts)
		row.AddCell().SetString(strconv.FormatFloat(s.Elapsed, 'f', 1, 64))
		row.AddCell().SetString(s.Err)

		sheet, err := f.AddSheet(name)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet for %s", s.Target.Key)
		}
		addRow(sheet, recordHeader...)
		for _, r := range s.Records {
			row := sheet.AddRow()
			row.AddCell().SetString(r.Title)
			row.AddCell().SetString(r.Code)
			row.AddCell().SetString(r.EndDate)
			row.AddCell().SetString(r.Link)
			row.AddCell().SetInt(r.Score)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// sheetName makes a unique worksheet name of at most 31 characters without
// the characters Excel rejects.
func sheetName(key string, used map[string]bool) string {
	base := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, strings.TrimSpace(key))
	if base == "" {
		base = "target"
	}
	base = truncate(base, 31)

	name := base
	for i := 2; used[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf("~%d", i)
		name = truncate(base, 31-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ReadXLSX reads a workbook written by XLSXEncoder back into a bundle.
// Target keys come from the summary sheet.
func ReadXLSX(data []byte) (*Bundle, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "export: open workbook")
	}
	summary, ok := f.Sheet[summarySheet]
	if !ok {
		return nil, eris.New("export: workbook has no summary sheet")
	}

	b := &Bundle{}
	for i, row := range summary.Rows {
		if i == 0 {
			continue
		}
		cells := cellStrings(row)
		key := fetcher.Cell(cells, 0)
		if key == "" {
			continue
		}
		s := Section{
			Target:  model.Target{Key: key},
			Success: fetcher.Cell(cells, 2) != "failed",
			Err:     fetcher.Cell(cells, 6),
		}
		s.Attempts, _ = strconv.Atoi(fetcher.Cell(cells, 4))
		s.Elapsed, _ = strconv.ParseFloat(fetcher.Cell(cells, 5), 64)

		sheet, ok := f.Sheet[fetcher.Cell(cells, 1)]
		if !ok {
			return nil, eris.Errorf("export: sheet %q for %s not found", fetcher.Cell(cells, 1), key)
		}
		for j, r := range sheet.Rows {
			if j == 0 {
				continue
			}
			rc := cellStrings(r)
			rec := model.Record{
				Title:   fetcher.Cell(rc, 0),
				Code:    fetcher.Cell(rc, 1),
				EndDate: fetcher.Cell(rc, 2),
				Link:    fetcher.Cell(rc, 3),
			}
			if rec.IsEmpty() {
				continue
			}
			rec.Score, _ = strconv.Atoi(fetcher.Cell(rc, 4))
			s.Records = append(s.Records, rec)
		}
		b.Sections = append(b.Sections, s)
	}
	return b, nil
}

func cellStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.String()
	}
	return out
}
