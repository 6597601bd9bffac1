package sites

import (
	"context"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/adapter"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/fetcher"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

// HTMLList collects records from server-rendered HTML listing pages.
//
// Params:
//
//	url          first results page
//	item         selector for one result (default "tr")
//	field.<name> selector relative to the item (title "a", link "a@href")
//	next         selector for the next-page link; empty disables paging
type HTMLList struct {
	http    *fetcher.HTTPFetcher
	log     *zap.Logger
	url     string
	list    listing
	current *adapter.Page
	visited map[string]bool
}

// NewHTMLList builds an HTMLList adapter for t.
func NewHTMLList(t model.Target, env adapter.Env) (adapter.Adapter, error) {
	raw, _, err := requireURL(t)
	if err != nil {
		return nil, err
	}
	return &HTMLList{
		http:    fetcher.NewHTTPFetcher(env.HTTP),
		log:     env.Log().With(zap.String("adapter", "htmllist"), zap.String("target", t.Key)),
		url:     raw,
		list:    listingFrom(adapter.Params(t.Params)),
		visited: make(map[string]bool),
	}, nil
}

// Search fetches the first results page.
func (a *HTMLList) Search(ctx context.Context, _ adapter.Params) (*adapter.Page, error) {
	return a.load(ctx, a.url, 1)
}

// NextPage follows the next link of the current page. A missing or already
// visited link ends pagination.
func (a *HTMLList) NextPage(ctx context.Context) (*adapter.Page, error) {
	if a.current == nil {
		return nil, nil
	}
	base, _ := url.Parse(a.current.URL)
	next := a.list.nextURL(a.current.Data.(*html.Node), base)
	if next == "" || a.visited[next] {
		return nil, nil
	}
	return a.load(ctx, next, a.current.Number+1)
}

func (a *HTMLList) load(ctx context.Context, u string, n int) (*adapter.Page, error) {
	a.visited[u] = true
	body, err := a.http.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}
	a.log.Debug("page loaded", zap.Int("page", n), zap.String("url", u))
	a.current = &adapter.Page{Number: n, URL: u, Body: body, Data: doc}
	return a.current, nil
}

// ExtractData maps every item element to a record.
func (a *HTMLList) ExtractData(_ context.Context, page *adapter.Page) ([]model.Record, error) {
	doc, ok := page.Data.(*html.Node)
	if !ok {
		var err error
		if doc, err = parseHTML(page.Body); err != nil {
			return nil, err
		}
	}
	base, _ := url.Parse(page.URL)
	return a.list.extract(doc, base), nil
}

// Close releases pooled connections.
func (a *HTMLList) Close() error {
	a.http.CloseIdleConnections()
	return nil
}
