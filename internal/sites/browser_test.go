package sites

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/adapter"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

type fakeRenderer struct {
	pages    map[string]string
	rendered []string
	closed   int
	err      error
}

func (f *fakeRenderer) Render(_ context.Context, u string) (string, error) {
	f.rendered = append(f.rendered, u)
	if f.err != nil {
		return "", f.err
	}
	return f.pages[u], nil
}

func (f *fakeRenderer) Close() error {
	f.closed++
	return nil
}

func useFakeRenderer(t *testing.T, f *fakeRenderer) {
	t.Helper()
	orig := newRenderer
	newRenderer = func(adapter.BrowserOptions, *zap.Logger) renderer { return f }
	t.Cleanup(func() { newRenderer = orig })
}

func TestBrowser_RendersAndPaginates(t *testing.T) {
	f := &fakeRenderer{pages: map[string]string{
		"https://spa.example.gov/bids":        listPage1,
		"https://spa.example.gov/bids?page=2": listPage2,
	}}
	useFakeRenderer(t, f)

	records, err := collect(t, model.Target{Key: "ohio", Adapter: TypeBrowser, Params: withURL(listParams, "https://spa.example.gov/bids")})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://spa.example.gov/bids", "https://spa.example.gov/bids?page=2", "https://spa.example.gov/bids?page=1"}, f.rendered)
	// The page 2 link back to ?page=1 is a new URL; it renders empty and ends the loop.
	assert.Len(t, records, 3)
	assert.Equal(t, "https://spa.example.gov/bids/x1", records[0].Link)
	assert.Equal(t, 1, f.closed)
}

func TestBrowser_RenderFailureIsSearchFailure(t *testing.T) {
	f := &fakeRenderer{err: errors.New("chrome not found")}
	useFakeRenderer(t, f)

	_, err := collect(t, model.Target{Key: "ohio", Adapter: TypeBrowser, Params: map[string]string{"url": "https://spa.example.gov"}})
	require.Error(t, err)
	assert.Equal(t, adapter.SearchFailure, adapter.KindOf(err))
	assert.Equal(t, 1, f.closed)
}

func TestRegister(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{TypeJSONAPI, TypeFeed, TypeFileDrop, TypeHTMLList, TypeBrowser} {
		assert.True(t, reg.Has(name), name)
	}
}
