// Package adapter defines the contract every source adapter implements, the
// registry that builds adapters by name, and the default page loop that
// drives one adapter instance from search to the last page.
package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/fetcher"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/filter"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

// Params are the adapter-specific string options of a target.
type Params map[string]string

// Get returns the value for key or def when absent or empty.
func (p Params) Get(key, def string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return def
}

// Page is an opaque handle to one page of source results. Adapters fill
// whichever fields they need; the default loop only reads Fingerprint.
type Page struct {
	Number int
	URL    string
	Body   []byte
	// Key overrides the body hash as the page identity when set.
	Key  string
	Data any
}

// Fingerprint identifies the page content. Two consecutive pages with the
// same non-empty fingerprint stop the default loop.
func (p *Page) Fingerprint() string {
	if p == nil {
		return ""
	}
	if p.Key != "" {
		return p.Key
	}
	if len(p.Body) == 0 {
		return ""
	}
	sum := sha256.Sum256(p.Body)
	return hex.EncodeToString(sum[:])
}

// Adapter is a stateful collector bound to one target. A fresh instance is
// built per attempt and Close is called exactly once on it.
//
// NextPage returns (nil, nil) when there are no more pages. Errors are never
// used to signal the end of pagination.
type Adapter interface {
	Search(ctx context.Context, params Params) (*Page, error)
	NextPage(ctx context.Context) (*Page, error)
	ExtractData(ctx context.Context, page *Page) ([]model.Record, error)
	Close() error
}

// Collector is implemented by adapters that run their own page loop instead
// of the default one. Such adapters apply env.Filter themselves.
type Collector interface {
	Collect(ctx context.Context, params Params, env Env) ([]model.Record, error)
}

// SinglePage can be embedded by adapters whose search result is the only page.
type SinglePage struct{}

// NextPage always reports that there are no more pages.
func (SinglePage) NextPage(context.Context) (*Page, error) { return nil, nil }

// BrowserOptions configures headless browser adapters.
type BrowserOptions struct {
	// RemoteURL connects to an existing DevTools endpoint instead of
	// launching a local browser.
	RemoteURL string
	Headless  bool
	Bin       string
	// Settle is how long to wait after navigation for client-side rendering.
	Settle time.Duration
}

// Env carries the collaborators an adapter constructor may use. Each adapter
// builds its own transport from these options and owns it until Close.
type Env struct {
	Logger   *zap.Logger
	Filter   *filter.Filter
	HTTP     fetcher.HTTPOptions
	FTP      fetcher.FTPOptions
	Browser  BrowserOptions
	MaxPages int
}

// Log returns the configured logger or the global one.
func (e Env) Log() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.L()
}
