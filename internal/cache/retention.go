// Package cache writes run bundles to a bounded set of timestamped files
// plus one canonical latest file.
package cache

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultLimit is the number of historical entries kept on disk.
const DefaultLimit = 5

const stampLayout = "20060102T150405.000000000"

// Encoder renders one bundle.
type Encoder interface {
	Encode(w io.Writer) error
	// Ext is the file extension without the dot.
	Ext() string
}

// Entry is one historical bundle file.
type Entry struct {
	Path    string
	Name    string
	ModTime time.Time
	Size    int64
}

// Options configures a Manager.
type Options struct {
	Dir        string
	Prefix     string
	LatestName string
	Limit      int
}

// Manager owns the output directory.
type Manager struct {
	opts   Options
	log    *zap.Logger
	now    func() time.Time
	remove func(string) error
}

// NewManager returns a Manager for opts. Empty fields take defaults.
func NewManager(opts Options, log *zap.Logger) *Manager {
	if opts.Prefix == "" {
		opts.Prefix = "rfp"
	}
	if opts.LatestName == "" {
		opts.LatestName = "latest"
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if log == nil {
		log = zap.L()
	}
	return &Manager{
		opts:   opts,
		log:    log.With(zap.String("component", "cache")),
		now:    time.Now,
		remove: os.Remove,
	}
}

// Latest returns the path of the canonical latest file for ext.
func (m *Manager) Latest(ext string) string {
	return filepath.Join(m.opts.Dir, m.opts.LatestName+"."+ext)
}

// Write prunes at most one old entry, writes a new timestamped entry, and
// overwrites the latest file with the same bytes. It returns the path of
// the new entry.
func (m *Manager) Write(enc Encoder) (string, error) {
	var buf bytes.Buffer
	if err := enc.Encode(&buf); err != nil {
		return "", eris.Wrap(err, "cache: encode bundle")
	}
	ext := enc.Ext()

	if err := os.MkdirAll(m.opts.Dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "cache: create dir %s", m.opts.Dir)
	}

	entries, err := m.Entries()
	if err != nil {
		return "", err
	}
	if len(entries) >= m.opts.Limit {
		oldest := entries[0]
		if err := m.remove(oldest.Path); err != nil {
			m.log.Warn("failed to remove oldest entry", zap.String("path", oldest.Path), zap.Error(err))
		} else {
			m.log.Info("removed oldest entry", zap.String("path", oldest.Path))
		}
	}

	now := m.now()
	name := m.opts.Prefix + "_" + now.UTC().Format(stampLayout) + "." + ext
	path := filepath.Join(m.opts.Dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", eris.Wrapf(err, "cache: write %s", path)
	}
	if err := os.Chtimes(path, now, now); err != nil {
		m.log.Warn("failed to set entry mtime", zap.String("path", path), zap.Error(err))
	}

	latest := m.Latest(ext)
	if err := os.WriteFile(latest, buf.Bytes(), 0o644); err != nil {
		return "", eris.Wrapf(err, "cache: write %s", latest)
	}

	remaining, err := m.Entries()
	if err != nil {
		return path, err
	}
	for i, e := range remaining {
		m.log.Info("cache entry",
			zap.Int("index", i+1),
			zap.String("name", e.Name),
			zap.Time("mod_time", e.ModTime),
		)
	}
	return path, nil
}

// Entries lists historical entries oldest first by modification time,
// breaking ties by name. The latest file is never an entry.
func (m *Manager) Entries() ([]Entry, error) {
	dirents, err := os.ReadDir(m.opts.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "cache: list %s", m.opts.Dir)
	}

	prefix := m.opts.Prefix + "_"
	var out []Entry
	for _, d := range dirents {
		if d.IsDir() || !strings.HasPrefix(d.Name(), prefix) {
			continue
		}
		stem := strings.TrimSuffix(strings.TrimPrefix(d.Name(), prefix), filepath.Ext(d.Name()))
		if _, err := time.Parse(stampLayout, stem); err != nil {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Path:    filepath.Join(m.opts.Dir, d.Name()),
			Name:    d.Name(),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.Before(out[j].ModTime)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
