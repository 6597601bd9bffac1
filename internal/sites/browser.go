package sites

import (
	"context"
	"net/url"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/adapter"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/resilience"
)

// renderer returns the DOM of a page after client-side rendering.
type renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
	Close() error
}

// newRenderer is replaced in tests.
var newRenderer = func(opts adapter.BrowserOptions, log *zap.Logger) renderer {
	return &rodRenderer{opts: opts, log: log}
}

// rodRenderer drives one Chrome tab. The browser is started on first use
// and killed on Close.
type rodRenderer struct {
	opts    adapter.BrowserOptions
	log     *zap.Logger
	lnch    *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page
}

func (r *rodRenderer) start() error {
	wsURL := r.opts.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(r.opts.Headless)
		if r.opts.Bin != "" {
			l = l.Bin(r.opts.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return eris.Wrap(err, "browser: launch")
		}
		r.lnch = l
		wsURL = u
		r.log.Debug("browser: launched local chrome", zap.String("url", wsURL))
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return eris.Wrap(err, "browser: connect")
	}
	r.browser = b

	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return eris.Wrap(err, "browser: create tab")
	}
	r.page = page
	return nil
}

func (r *rodRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	if r.page == nil {
		if err := r.start(); err != nil {
			return "", err
		}
	}
	page := r.page.Context(ctx)
	if err := page.Navigate(pageURL); err != nil {
		return "", eris.Wrapf(err, "browser: navigate %s", pageURL)
	}
	if err := page.WaitLoad(); err != nil {
		r.log.Warn("browser: wait load failed", zap.String("url", pageURL), zap.Error(err))
	}
	if err := resilience.Sleep(ctx, r.opts.Settle); err != nil {
		return "", err
	}
	out, err := page.HTML()
	if err != nil {
		return "", eris.Wrap(err, "browser: read dom")
	}
	return out, nil
}

func (r *rodRenderer) Close() error {
	var first error
	if r.page != nil {
		if err := r.page.Close(); err != nil {
			first = eris.Wrap(err, "browser: close tab")
		}
		r.page = nil
	}
	if r.browser != nil {
		if err := r.browser.Close(); err != nil && first == nil {
			first = eris.Wrap(err, "browser: close")
		}
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Kill()
		r.lnch.Cleanup()
		r.lnch = nil
	}
	return first
}

// Browser collects records from listing pages that only render in a real
// browser. It takes the same params as HTMLList.
type Browser struct {
	render  renderer
	log     *zap.Logger
	url     string
	list    listing
	current *adapter.Page
	visited map[string]bool
}

// NewBrowser builds a Browser adapter for t. Chrome is not started until
// Search.
func NewBrowser(t model.Target, env adapter.Env) (adapter.Adapter, error) {
	raw, _, err := requireURL(t)
	if err != nil {
		return nil, err
	}
	log := env.Log().With(zap.String("adapter", "browser"), zap.String("target", t.Key))
	return &Browser{
		render:  newRenderer(env.Browser, log),
		log:     log,
		url:     raw,
		list:    listingFrom(adapter.Params(t.Params)),
		visited: make(map[string]bool),
	}, nil
}

// Search renders the first results page.
func (a *Browser) Search(ctx context.Context, _ adapter.Params) (*adapter.Page, error) {
	return a.load(ctx, a.url, 1)
}

// NextPage renders the page behind the current next link.
func (a *Browser) NextPage(ctx context.Context) (*adapter.Page, error) {
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

func (a *Browser) load(ctx context.Context, u string, n int) (*adapter.Page, error) {
	a.visited[u] = true
	dom, err := a.render.Render(ctx, u)
	if err != nil {
		return nil, err
	}
	body := []byte(dom)
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}
	a.current = &adapter.Page{Number: n, URL: u, Body: body, Data: doc}
	return a.current, nil
}

// ExtractData maps every item element to a record.
func (a *Browser) ExtractData(_ context.Context, page *adapter.Page) ([]model.Record, error) {
	doc, ok := page.Data.(*html.Node)
	if !ok {
		return nil, eris.Errorf("browser: page %d has no dom", page.Number)
	}
	base, _ := url.Parse(page.URL)
	return a.list.extract(doc, base), nil
}

// Close shuts the tab and kills the browser process.
func (a *Browser) Close() error {
	return a.render.Close()
}
