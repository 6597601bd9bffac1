package sites

import (
	"context"
	"net/url"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/adapter"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/fetcher"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

// FileDrop collects records from a CSV or XLSX file published over HTTP(S)
// or FTP, optionally inside a zip archive.
//
// Params:
//
//	url          http, https or ftp location of the file
//	format       csv or xlsx (default from the file extension)
//	zip_member   glob matched against archive member names; implies zip
//	delimiter    CSV delimiter, one character or "tab"
//	skip_rows    rows before the header row
//	sheet        XLSX sheet name (default first sheet)
//	field.<name> column header (defaults Title, Code, End Date, Link)
type FileDrop struct {
	adapter.SinglePage
	http   *fetcher.HTTPFetcher
	src    fetcher.Fetcher
	log    *zap.Logger
	url    string
	base   *url.URL
	format string
	zip    bool
	member string
	table  fetcher.TableOptions
	fields mapping
}

// NewFileDrop builds a FileDrop adapter for t.
func NewFileDrop(t model.Target, env adapter.Env) (adapter.Adapter, error) {
	raw, base, err := requireURL(t)
	if err != nil {
		return nil, err
	}
	httpF := fetcher.NewHTTPFetcher(env.HTTP)
	src, err := fetcher.ForURL(raw, httpF, fetcher.NewFTPFetcher(env.FTP))
	if err != nil {
		return nil, adapter.Wrap(adapter.GenericFailure, "construct", err)
	}

	p := adapter.Params(t.Params)
	opts := fetcher.TableOptions{SheetName: p.Get("sheet", "")}
	if d := p.Get("delimiter", ""); d != "" {
		if d == "tab" {
			opts.Delimiter = '\t'
		} else {
			r, _ := utf8.DecodeRuneInString(d)
			opts.Delimiter = r
		}
	}
	if s := p.Get("skip_rows", ""); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, adapter.Errorf(adapter.GenericFailure, "construct", "target %s: bad skip_rows %q", t.Key, s)
		}
		opts.SkipRows = n
	}

	member := p.Get("zip_member", "")
	return &FileDrop{
		http:   httpF,
		src:    src,
		log:    env.Log().With(zap.String("adapter", "filedrop"), zap.String("target", t.Key)),
		url:    raw,
		base:   base,
		format: strings.ToLower(p.Get("format", "")),
		zip:    member != "" || strings.EqualFold(path.Ext(base.Path), ".zip"),
		member: member,
		table:  opts,
		fields: mappingFrom(p, mapping{Title: "Title", Code: "Code", EndDate: "End Date", Link: "Link"}),
	}, nil
}

// Search downloads the file and unpacks the archive member if needed.
func (a *FileDrop) Search(ctx context.Context, _ adapter.Params) (*adapter.Page, error) {
	data, err := fetcher.ReadAll(ctx, a.src, a.url, 0)
	if err != nil {
		return nil, err
	}
	name := path.Base(a.base.Path)
	if a.zip {
		name, data, err = fetcher.UnzipMember(data, a.member)
		if err != nil {
			return nil, adapter.Wrap(adapter.ElementMissing, "search", err)
		}
		a.log.Debug("unpacked archive member", zap.String("member", name), zap.Int("bytes", len(data)))
	}

	format := a.format
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	}
	if format != "csv" && format != "xlsx" {
		return nil, eris.Errorf("filedrop: cannot tell format of %q", name)
	}
	return &adapter.Page{Number: 1, URL: a.url, Body: data, Data: format}, nil
}

// ExtractData parses the table and maps columns to records. The title
// column must exist.
func (a *FileDrop) ExtractData(_ context.Context, page *adapter.Page) ([]model.Record, error) {
	var (
		table *fetcher.Table
		err   error
	)
	if page.Data == "xlsx" {
		table, err = fetcher.ReadXLSXTable(page.Body, a.table)
	} else {
		table, err = fetcher.ReadCSVTable(page.Body, a.table)
	}
	if err != nil {
		return nil, err
	}
	if table.Column(a.fields.Title) < 0 {
		return nil, adapter.Missing("extract", "column "+a.fields.Title)
	}

	cols := map[string]int{}
	for _, name := range []string{a.fields.Title, a.fields.Code, a.fields.EndDate, a.fields.Link} {
		if name != "" {
			cols[name] = table.Column(name)
		}
	}
	records := make([]model.Record, 0, len(table.Rows))
	for _, row := range table.Rows {
		records = append(records, a.fields.build(a.base, func(loc string) string {
			return fetcher.Cell(row, cols[loc])
		}))
	}
	return keep(records), nil
}

// Close releases pooled connections. FTP connections are closed per download.
func (a *FileDrop) Close() error {
	a.http.CloseIdleConnections()
	return nil
}
