package adapter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

func staticCtor(a Adapter, err error) Constructor {
	return func(model.Target, Env) (Adapter, error) { return a, err }
}

func TestRegistry_RegisterAndNew(t *testing.T) {
	reg := NewRegistry()
	reg.Register("html", staticCtor(&pagedAdapter{}, nil))
	reg.Register("feed", staticCtor(&pagedAdapter{}, nil))

	assert.Equal(t, []string{"html", "feed"}, reg.Names())
	assert.True(t, reg.Has("feed"))
	assert.False(t, reg.Has("ftp"))

	a, err := reg.New(model.Target{Key: "texas", Adapter: "html"}, testEnv())
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestRegistry_ReplaceKeepsOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", staticCtor(nil, nil))
	reg.Register("b", staticCtor(nil, nil))
	reg.Register("a", staticCtor(&pagedAdapter{}, nil))

	assert.Equal(t, []string{"a", "b"}, reg.Names())
	_, err := reg.New(model.Target{Key: "t", Adapter: "a"}, testEnv())
	assert.NoError(t, err)
}

func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry()
	reg.Register("broken", staticCtor(nil, errors.New("bad params")))
	reg.Register("nil", staticCtor(nil, nil))

	_, err := reg.New(model.Target{Key: "t", Adapter: "unknown"}, testEnv())
	assert.ErrorContains(t, err, `unknown adapter "unknown"`)

	_, err = reg.New(model.Target{Key: "t", Adapter: "broken"}, testEnv())
	assert.ErrorContains(t, err, "bad params")

	_, err = reg.New(model.Target{Key: "t", Adapter: "nil"}, testEnv())
	assert.ErrorContains(t, err, "returned nil")
}

func TestRegistry_NamesIsCopy(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", staticCtor(nil, nil))
	names := reg.Names()
	names[0] = "mutated"
	assert.Equal(t, []string{"a"}, reg.Names())
}
