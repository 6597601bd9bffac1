package sites

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/adapter"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

// listing describes an HTML results page: one element per item, field
// selectors relative to the item, and an optional next-page link.
type listing struct {
	item   selector
	fields mapping
	next   selector
	hasNxt bool
}

func listingFrom(p adapter.Params) listing {
	l := listing{
		item:   parseSelector(p.Get("item", "tr")),
		fields: mappingFrom(p, mapping{Title: "a", Link: "a@href"}),
	}
	if n := p.Get("next", ""); n != "" {
		if !strings.Contains(n, "@") {
			n += "@href"
		}
		l.next = parseSelector(n)
		l.hasNxt = true
	}
	return l
}

func parseHTML(body []byte) (*html.Node, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "html: parse")
	}
	return doc, nil
}

func (l listing) extract(doc *html.Node, base *url.URL) []model.Record {
	items := l.item.all(doc)
	records := make([]model.Record, 0, len(items))
	for _, item := range items {
		records = append(records, l.fields.build(base, func(loc string) string {
			return parseSelector(loc).value(item)
		}))
	}
	return keep(records)
}

// nextURL returns the absolute next-page link or "".
func (l listing) nextURL(doc *html.Node, base *url.URL) string {
	if !l.hasNxt {
		return ""
	}
	href := strings.TrimSpace(l.next.value(doc))
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	return resolveLink(base, href)
}
