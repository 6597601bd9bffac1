package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type textEncoder string

func (e textEncoder) Encode(w io.Writer) error {
	_, err := io.WriteString(w, string(e))
	return err
}

func (textEncoder) Ext() string { return "txt" }

type failingEncoder struct{}

func (failingEncoder) Encode(io.Writer) error { return errors.New("sheet too large") }
func (failingEncoder) Ext() string            { return "xlsx" }

func newTestManager(t *testing.T) (*Manager, *time.Time) {
	t.Helper()
	m := NewManager(Options{Dir: filepath.Join(t.TempDir(), "out"), Prefix: "rfp"}, zap.NewNop())
	clock := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return m, &clock
}

func TestWrite_RetainsFiveAfterSixWrites(t *testing.T) {
	m, _ := newTestManager(t)

	var paths []string
	for i := 1; i <= 6; i++ {
		p, err := m.Write(textEncoder(fmt.Sprintf("bundle %d", i)))
		require.NoError(t, err)
		paths = append(paths, p)
	}

	entries, err := m.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.NoFileExists(t, paths[0])
	for i, e := range entries {
		assert.Equal(t, paths[i+1], e.Path, "oldest to newest")
	}

	latest, err := os.ReadFile(m.Latest("txt"))
	require.NoError(t, err)
	assert.Equal(t, "bundle 6", string(latest))

	newest, err := os.ReadFile(paths[5])
	require.NoError(t, err)
	assert.Equal(t, latest, newest)
}

func TestWrite_DeletesOnlyOnePerWrite(t *testing.T) {
	m, clock := newTestManager(t)
	require.NoError(t, os.MkdirAll(m.opts.Dir, 0o755))

	// Seed more entries than the limit, as if the limit had been lowered.
	for i := 0; i < 7; i++ {
		ts := clock.Add(-time.Duration(10-i) * time.Hour)
		p := filepath.Join(m.opts.Dir, "rfp_"+ts.Format(stampLayout)+".txt")
		require.NoError(t, os.WriteFile(p, []byte("old"), 0o644))
		require.NoError(t, os.Chtimes(p, ts, ts))
	}

	_, err := m.Write(textEncoder("new"))
	require.NoError(t, err)

	entries, err := m.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 7)
}

func TestWrite_PruneFailureDoesNotFailWrite(t *testing.T) {
	m, _ := newTestManager(t)
	for i := 1; i <= 5; i++ {
		_, err := m.Write(textEncoder(fmt.Sprintf("bundle %d", i)))
		require.NoError(t, err)
	}

	var tried []string
	m.remove = func(path string) error {
		tried = append(tried, path)
		return errors.New("permission denied")
	}

	path, err := m.Write(textEncoder("bundle 6"))
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Len(t, tried, 1)

	latest, err := os.ReadFile(m.Latest("txt"))
	require.NoError(t, err)
	assert.Equal(t, "bundle 6", string(latest))

	entries, err := m.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, DefaultLimit+1)
	assert.Equal(t, tried[0], entries[0].Path)
}

func TestWrite_BelowLimitDeletesNothing(t *testing.T) {
	m, _ := newTestManager(t)
	for i := 0; i < 3; i++ {
		_, err := m.Write(textEncoder("x"))
		require.NoError(t, err)
	}
	entries, err := m.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestEntries_IgnoresForeignFiles(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Write(textEncoder("x"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(m.opts.Dir, "notes.txt"), []byte("n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(m.opts.Dir, "rfp_backup.txt"), []byte("n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(m.opts.Dir, "rfp_20260101T000000.000000000.d"), 0o755))

	entries, err := m.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.FileExists(t, m.Latest("txt"))
}

func TestEntries_MissingDir(t *testing.T) {
	m := NewManager(Options{Dir: filepath.Join(t.TempDir(), "nope")}, nil)
	entries, err := m.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEntries_TieBrokenByName(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, os.MkdirAll(m.opts.Dir, 0o755))
	same := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, stamp := range []string{"20260101T000000.000000002", "20260101T000000.000000001"} {
		p := filepath.Join(m.opts.Dir, "rfp_"+stamp+".txt")
		require.NoError(t, os.WriteFile(p, nil, 0o644))
		require.NoError(t, os.Chtimes(p, same, same))
	}
	entries, err := m.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "rfp_20260101T000000.000000001.txt", entries[0].Name)
}

func TestWrite_EncodeFailureWritesNothing(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Write(failingEncoder{})
	require.Error(t, err)
	assert.NoFileExists(t, m.Latest("xlsx"))
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(Options{Dir: "out"}, nil)
	assert.Equal(t, DefaultLimit, m.opts.Limit)
	assert.Equal(t, filepath.Join("out", "latest.xlsx"), m.Latest("xlsx"))
}
