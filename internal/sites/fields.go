// Package sites holds the configurable reference adapters, one per document
// shape: JSON API, RSS/Atom feed, CSV/XLSX file drop, static HTML listing
// and browser-rendered HTML listing.
package sites

import (
	"net/url"
	"strings"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/adapter"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

// Field names shared by every adapter's "field.<name>" params.
const (
	fieldTitle   = "title"
	fieldCode    = "code"
	fieldEndDate = "end_date"
	fieldLink    = "link"
)

// mapping tells an adapter where each record field lives in its document.
// The locator syntax depends on the adapter (JSON path, column header, CSS
// selector).
type mapping struct {
	Title   string
	Code    string
	EndDate string
	Link    string
}

// mappingFrom reads field.* params over defaults.
func mappingFrom(p adapter.Params, def mapping) mapping {
	return mapping{
		Title:   p.Get("field."+fieldTitle, def.Title),
		Code:    p.Get("field."+fieldCode, def.Code),
		EndDate: p.Get("field."+fieldEndDate, def.EndDate),
		Link:    p.Get("field."+fieldLink, def.Link),
	}
}

// build produces a record using lookup for each non-empty locator. Links
// are resolved against base.
func (m mapping) build(base *url.URL, lookup func(locator string) string) model.Record {
	get := func(loc string) string {
		if loc == "" {
			return ""
		}
		return strings.Join(strings.Fields(lookup(loc)), " ")
	}
	return model.Record{
		Title:   get(m.Title),
		Code:    get(m.Code),
		EndDate: get(m.EndDate),
		Link:    resolveLink(base, get(m.Link)),
	}
}

func resolveLink(base *url.URL, href string) string {
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// requireURL returns the target's "url" param parsed.
func requireURL(t model.Target) (string, *url.URL, error) {
	raw := t.Param("url", "")
	if raw == "" {
		return "", nil, adapter.Errorf(adapter.GenericFailure, "construct", "target %s: missing url param", t.Key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, adapter.Wrap(adapter.GenericFailure, "construct", err)
	}
	return raw, u, nil
}

// keep drops records with every informational field blank.
func keep(records []model.Record) []model.Record {
	out := records[:0]
	for _, r := range records {
		if !r.IsEmpty() {
			out = append(out, r)
		}
	}
	return out
}
