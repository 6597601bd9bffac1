package sites

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/adapter"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/fetcher"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

func testEnv() adapter.Env {
	return adapter.Env{
		Logger: zap.NewNop(),
		HTTP: fetcher.HTTPOptions{
			Timeout:    5 * time.Second,
			MaxRetries: 1,
			RatePerSec: 1000,
			Burst:      10,
			Backoff:    time.Millisecond,
		},
		MaxPages: 20,
	}
}

// collect builds the adapter from the registry and drives it once.
func collect(t *testing.T, target model.Target) ([]model.Record, error) {
	t.Helper()
	env := testEnv()
	a, err := NewRegistry().New(target, env)
	require.NoError(t, err)
	defer a.Close() //nolint:errcheck
	return adapter.Collect(context.Background(), a, adapter.Params(target.Params), env)
}

func titlesOf(records []model.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}
