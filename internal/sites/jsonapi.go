package sites

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/adapter"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/fetcher"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

// JSONAPI collects records from a JSON endpoint.
//
// Params:
//
//	url          endpoint
//	items        dot path to the array of items ("" for a top-level array)
//	page_param   query parameter carrying the page number; empty disables paging
//	page_start   first page number (default 1)
//	field.<name> dot path inside each item (defaults to the field name)
type JSONAPI struct {
	http      *fetcher.HTTPFetcher
	log       *zap.Logger
	base      *url.URL
	items     string
	fields    mapping
	pageParam string
	page      int
}

// NewJSONAPI builds a JSONAPI adapter for t.
func NewJSONAPI(t model.Target, env adapter.Env) (adapter.Adapter, error) {
	_, base, err := requireURL(t)
	if err != nil {
		return nil, err
	}
	p := adapter.Params(t.Params)
	start, err := strconv.Atoi(p.Get("page_start", "1"))
	if err != nil {
		return nil, adapter.Errorf(adapter.GenericFailure, "construct", "target %s: bad page_start: %v", t.Key, err)
	}
	return &JSONAPI{
		http:  fetcher.NewHTTPFetcher(env.HTTP),
		log:   env.Log().With(zap.String("adapter", "jsonapi"), zap.String("target", t.Key)),
		base:  base,
		items: p.Get("items", ""),
		fields: mappingFrom(p, mapping{
			Title: fieldTitle, Code: fieldCode, EndDate: fieldEndDate, Link: fieldLink,
		}),
		pageParam: p.Get("page_param", ""),
		page:      start,
	}, nil
}

// Search fetches the first page.
func (a *JSONAPI) Search(ctx context.Context, _ adapter.Params) (*adapter.Page, error) {
	page, err := a.fetch(ctx, a.page)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// NextPage fetches the next page number. An empty page ends pagination.
func (a *JSONAPI) NextPage(ctx context.Context) (*adapter.Page, error) {
	if a.pageParam == "" {
		return nil, nil
	}
	a.page++
	page, err := a.fetch(ctx, a.page)
	if err != nil {
		return nil, err
	}
	if items, _ := page.Data.([]any); len(items) == 0 {
		a.log.Debug("empty page, pagination done", zap.Int("page", a.page))
		return nil, nil
	}
	return page, nil
}

func (a *JSONAPI) fetch(ctx context.Context, n int) (*adapter.Page, error) {
	u := *a.base
	if a.pageParam != "" {
		q := u.Query()
		q.Set(a.pageParam, strconv.Itoa(n))
		u.RawQuery = q.Encode()
	}
	body, err := a.http.Get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, eris.Wrapf(err, "jsonapi: decode %s", u.String())
	}
	v, ok := lookupPath(doc, a.items)
	if !ok {
		return nil, adapter.Missing("fetch", a.items)
	}
	items, ok := v.([]any)
	if !ok {
		return nil, adapter.Errorf(adapter.ElementMissing, "fetch", "%q is not an array", a.items)
	}
	return &adapter.Page{Number: n, URL: u.String(), Body: body, Data: items}, nil
}

// ExtractData maps each object item to a record. Non-object items are skipped.
func (a *JSONAPI) ExtractData(_ context.Context, page *adapter.Page) ([]model.Record, error) {
	items, ok := page.Data.([]any)
	if !ok {
		return nil, eris.Errorf("jsonapi: page %d carries no items", page.Number)
	}
	records := make([]model.Record, 0, len(items))
	for _, item := range items {
		if _, ok := item.(map[string]any); !ok {
			continue
		}
		records = append(records, a.fields.build(a.base, func(loc string) string {
			v, _ := lookupPath(item, loc)
			return scalar(v)
		}))
	}
	return keep(records), nil
}

// Close releases pooled connections.
func (a *JSONAPI) Close() error {
	a.http.CloseIdleConnections()
	return nil
}

// lookupPath walks a dot path through objects and arrays.
func lookupPath(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	for _, seg := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			v = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			v = node[i]
		default:
			return nil, false
		}
	}
	return v, true
}

func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}
