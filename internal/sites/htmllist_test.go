package sites

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

const listPage1 = `<html><body>
<table id="bids">
  <tr><th>Title</th><th>Number</th><th>Closes</th></tr>
  <tr class="bid"><td><a href="/bids/x1">Road paving
      services</a></td><td class="code">X1</td><td class="due">2026-12-01</td></tr>
  <tr class="bid"><td><a href="b2.html">Bridge repair</a></td><td class="code">B2</td><td class="due"></td></tr>
</table>
<a class="pager next" href="?page=2">Next</a>
</body></html>`

const listPage2 = `<html><body>
<table id="bids">
  <tr class="bid"><td><a href="/bids/s9">Snow removal</a></td><td class="code">S9</td></tr>
</table>
<a class="pager next" href="?page=1">Next</a>
</body></html>`

func serveListing(t *testing.T) (string, *[]string) {
	t.Helper()
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.RawQuery)
		if r.URL.Query().Get("page") == "2" {
			w.Write([]byte(listPage2)) //nolint:errcheck
			return
		}
		w.Write([]byte(listPage1)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv.URL, &seen
}

var listParams = map[string]string{
	"item":           "table#bids tr.bid",
	"field.code":     "td.code",
	"field.end_date": "td.due",
	"next":           "a.pager.next",
}

func withURL(params map[string]string, u string) map[string]string {
	out := map[string]string{"url": u}
	for k, v := range params {
		out[k] = v
	}
	return out
}

func TestHTMLList_FollowsNextLinkAndStopsOnRevisit(t *testing.T) {
	u, seen := serveListing(t)

	records, err := collect(t, model.Target{Key: "ohio", Adapter: TypeHTMLList, Params: withURL(listParams, u+"/list?page=1")})
	require.NoError(t, err)

	assert.Equal(t, []string{"page=1", "page=2"}, *seen)
	assert.Equal(t, []string{"Road paving services", "Bridge repair", "Snow removal"}, titlesOf(records))
	assert.Equal(t, model.Record{Title: "Road paving services", Code: "X1", EndDate: "2026-12-01", Link: u + "/bids/x1"}, records[0])
	assert.Equal(t, u+"/b2.html", records[1].Link)
}

func TestHTMLList_DefaultsWithoutPaging(t *testing.T) {
	u, seen := serveListing(t)

	records, err := collect(t, model.Target{Key: "ohio", Adapter: TypeHTMLList, Params: map[string]string{"url": u + "/list"}})
	require.NoError(t, err)
	assert.Len(t, *seen, 1)
	// Default item "tr" skips the header row since it has no link.
	assert.Equal(t, []string{"Road paving services", "Bridge repair"}, titlesOf(records))
}

func TestHTMLList_NextPageWithoutSearch(t *testing.T) {
	a, err := NewHTMLList(model.Target{Key: "ohio", Params: map[string]string{"url": "http://x"}}, testEnv())
	require.NoError(t, err)
	p, err := a.NextPage(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestSelector(t *testing.T) {
	doc, err := parseHTML([]byte(`<div id="main"><ul class="list wide">
		<li data-id="1"><a href="/a">Alpha</a></li>
		<li data-id="2" class="hot"><a href="/b">Beta <script>x()</script></a></li>
	</ul><p>tail</p></div>`))
	require.NoError(t, err)

	assert.Len(t, parseSelector("li").all(doc), 2)
	assert.Len(t, parseSelector("#main ul.list.wide li").all(doc), 2)
	assert.Len(t, parseSelector("ul.list.narrow li").all(doc), 0)
	assert.Equal(t, "Beta", parseSelector("li.hot").value(doc))
	assert.Equal(t, "/b", parseSelector("li[data-id=2] a@href").value(doc))
	assert.Equal(t, "1", parseSelector("li[data-id]@data-id").value(doc))
	assert.Equal(t, "", parseSelector("table").value(doc))

	// Nested matches are not duplicated.
	assert.Len(t, parseSelector("div ul li").all(doc), 2)
	assert.Len(t, parseSelector("div li").all(doc), 2)

	li := parseSelector("li").first(doc)
	assert.Equal(t, "Alpha", parseSelector(".").value(li))
	assert.Equal(t, "/a", parseSelector("a@href").value(li))
	assert.True(t, strings.HasPrefix(parseSelector("div").value(doc), "Alpha Beta"))
}
