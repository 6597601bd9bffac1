package sites

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/adapter"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/fetcher"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	GUID    string `xml:"guid"`
	PubDate string `xml:"pubDate"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	ID      string `xml:"id"`
	Updated string `xml:"updated"`
	Links   []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
}

func (e atomEntry) link() string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(e.Links) > 0 {
		return e.Links[0].Href
	}
	return ""
}

// Feed collects records from an RSS 2.0 or Atom feed. Any charset declared
// in the XML prolog is honoured.
//
// Params: url.
type Feed struct {
	adapter.SinglePage
	http *fetcher.HTTPFetcher
	log  *zap.Logger
	url  string
	base *url.URL
}

// NewFeed builds a Feed adapter for t.
func NewFeed(t model.Target, env adapter.Env) (adapter.Adapter, error) {
	raw, base, err := requireURL(t)
	if err != nil {
		return nil, err
	}
	return &Feed{
		http: fetcher.NewHTTPFetcher(env.HTTP),
		log:  env.Log().With(zap.String("adapter", "feed"), zap.String("target", t.Key)),
		url:  raw,
		base: base,
	}, nil
}

// Search downloads the feed document.
func (a *Feed) Search(ctx context.Context, _ adapter.Params) (*adapter.Page, error) {
	body, err := a.http.Get(ctx, a.url)
	if err != nil {
		return nil, err
	}
	return &adapter.Page{Number: 1, URL: a.url, Body: body}, nil
}

// ExtractData decodes RSS items, falling back to Atom entries.
func (a *Feed) ExtractData(ctx context.Context, page *adapter.Page) ([]model.Record, error) {
	items, err := fetcher.DecodeXMLElements[rssItem](ctx, bytes.NewReader(page.Body), "item")
	if err != nil {
		return nil, err
	}
	records := make([]model.Record, 0, len(items))
	for _, it := range items {
		code := it.GUID
		if code == "" {
			code = it.Link
		}
		records = append(records, model.Record{
			Title:   clean(it.Title),
			Code:    clean(code),
			EndDate: clean(it.PubDate),
			Link:    resolveLink(a.base, clean(it.Link)),
		})
	}
	if len(items) > 0 {
		return keep(records), nil
	}

	entries, err := fetcher.DecodeXMLElements[atomEntry](ctx, bytes.NewReader(page.Body), "entry")
	if err != nil {
		return nil, err
	}
	a.log.Debug("no rss items, read atom entries", zap.Int("entries", len(entries)))
	for _, e := range entries {
		records = append(records, model.Record{
			Title:   clean(e.Title),
			Code:    clean(e.ID),
			EndDate: clean(e.Updated),
			Link:    resolveLink(a.base, clean(e.link())),
		})
	}
	return keep(records), nil
}

// Close releases pooled connections.
func (a *Feed) Close() error {
	a.http.CloseIdleConnections()
	return nil
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
