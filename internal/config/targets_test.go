package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

func writeTargets(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadTargets(t *testing.T) {
	path := writeTargets(t, `
targets:
  - key: texas
    adapter: jsonapi
    params:
      url: https://example.gov/api
  - key: harris
    region: texas
    sub_region: harris
    adapter: htmllist
`)
	targets, err := LoadTargets(path)
	require.NoError(t, err)
	require.Len(t, targets, 2)

	assert.Equal(t, "texas", targets[0].Region)
	assert.Equal(t, "https://example.gov/api", targets[0].Param("url", ""))
	assert.True(t, targets[1].IsSubRegion())
	assert.Equal(t, "texas", targets[1].Region)
}

func TestLoadTargets_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"duplicate", "targets:\n  - {key: a, adapter: x}\n  - {key: a, adapter: y}\n", "duplicate target key"},
		{"duplicate ignoring case", "targets:\n  - {key: Texas, adapter: x}\n  - {key: texas, adapter: y}\n", "duplicate target key"},
		{"no key", "targets:\n  - {adapter: x}\n", "has no key"},
		{"no adapter", "targets:\n  - {key: a}\n", "has no adapter"},
		{"malformed", "targets: [", "parse targets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTargets(writeTargets(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadTargets_SharedRegion(t *testing.T) {
	path := writeTargets(t, `
targets:
  - {key: texas-dot, region: texas, adapter: jsonapi}
  - {key: texas-gsd, region: texas, adapter: feed}
`)
	targets, err := LoadTargets(path)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, targets[0].Region, targets[1].Region)
}

func TestLoadTargets_Missing(t *testing.T) {
	_, err := LoadTargets(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSelectTargets(t *testing.T) {
	all := []model.Target{{Key: "a"}, {Key: "b"}, {Key: "c"}}

	sel, unknown := SelectTargets(all, []string{"c", "zz", "a", "c"})
	assert.Equal(t, []model.Target{{Key: "c"}, {Key: "a"}}, sel)
	assert.Equal(t, []string{"zz"}, unknown)

	sel, unknown = SelectTargets(all, []string{"b", "ALL"})
	assert.Equal(t, []model.Target{{Key: "b"}, {Key: "a"}, {Key: "c"}}, sel)
	assert.Empty(t, unknown)

	sel, unknown = SelectTargets(all, nil)
	assert.Empty(t, sel)
	assert.Empty(t, unknown)
}
