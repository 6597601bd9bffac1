// Package estimate keeps a running average execution time per target and
// projects how long a batch of targets will take.
package estimate

import (
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

// Average is the running mean for one key.
type Average struct {
	Count          int     `json:"count"`
	AverageSeconds float64 `json:"average_seconds"`
}

// Observe folds one duration into the mean using the incremental form
// avg += (x - avg) / (n + 1), which avoids the growing avg*n product.
func (a Average) Observe(seconds float64) Average {
	n := a.Count + 1
	return Average{
		Count:          n,
		AverageSeconds: a.AverageSeconds + (seconds-a.AverageSeconds)/float64(n),
	}
}

// AverageStats is the persisted document: region-level target averages
// under "states" and sub-region target averages under "counties", grouped
// by region.
type AverageStats struct {
	States   map[string]Average            `json:"states"`
	Counties map[string]map[string]Average `json:"counties"`
}

// NewAverageStats returns an empty document.
func NewAverageStats() *AverageStats {
	return &AverageStats{
		States:   make(map[string]Average),
		Counties: make(map[string]map[string]Average),
	}
}

// Lookup returns the average for a target and whether one is known.
// Averages are keyed by target key; sub-region targets are nested under
// their region.
func (s *AverageStats) Lookup(t model.Target) (Average, bool) {
	if s == nil {
		return Average{}, false
	}
	key := normalizeKey(t.Key)
	if t.IsSubRegion() {
		subs, ok := s.Counties[normalizeKey(t.Region)]
		if !ok {
			return Average{}, false
		}
		a, ok := subs[key]
		return a, ok
	}
	a, ok := s.States[key]
	return a, ok
}

func (s *AverageStats) set(t model.Target, a Average) {
	key := normalizeKey(t.Key)
	if !t.IsSubRegion() {
		s.States[key] = a
		return
	}
	region := normalizeKey(t.Region)
	subs, ok := s.Counties[region]
	if !ok {
		subs = make(map[string]Average)
		s.Counties[region] = subs
	}
	subs[key] = a
}

func (s *AverageStats) clone() *AverageStats {
	out := NewAverageStats()
	if s == nil {
		return out
	}
	for k, v := range s.States {
		out.States[k] = v
	}
	for region, subs := range s.Counties {
		m := make(map[string]Average, len(subs))
		for k, v := range subs {
			m[k] = v
		}
		out.Counties[region] = m
	}
	return out
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// Estimate sums the known average durations of targets (unknown targets
// count as zero) and splits the rounded total into minutes and seconds.
// Rounding is half-to-even.
func Estimate(stats *AverageStats, targets []model.Target) (minutes, seconds int) {
	total := 0.0
	for _, t := range targets {
		if a, ok := stats.Lookup(t); ok {
			total += a.AverageSeconds
		}
	}
	rounded := int(math.RoundToEven(total))
	return rounded / 60, rounded % 60
}

// Observation pairs a target with a measured duration.
type Observation struct {
	Target  model.Target
	Seconds float64
}

// Store loads and saves AverageStats as one JSON file. It assumes a single
// writer per run; concurrent processes will overwrite each other.
type Store struct {
	path string
}

// NewStore returns a Store bound to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the stats file. A missing or empty file yields empty stats.
func (s *Store) Load() (*AverageStats, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewAverageStats(), nil
		}
		return nil, eris.Wrapf(err, "estimate: read %s", s.path)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return NewAverageStats(), nil
	}

	stats := NewAverageStats()
	if err := json.Unmarshal(data, stats); err != nil {
		return nil, eris.Wrapf(err, "estimate: parse %s", s.path)
	}
	if stats.States == nil {
		stats.States = make(map[string]Average)
	}
	if stats.Counties == nil {
		stats.Counties = make(map[string]map[string]Average)
	}
	return stats, nil
}

// Update folds each observation into a copy of stats, persists the result
// and returns it. The input stats are left untouched.
func (s *Store) Update(stats *AverageStats, observations []Observation) (*AverageStats, error) {
	next := Apply(stats, observations)
	if err := s.Save(next); err != nil {
		return nil, err
	}
	return next, nil
}

// Apply folds observations into a copy of stats without persisting.
func Apply(stats *AverageStats, observations []Observation) *AverageStats {
	next := stats.clone()
	for _, o := range observations {
		prev, _ := next.Lookup(o.Target)
		next.set(o.Target, prev.Observe(o.Seconds))
	}
	return next
}

// Save overwrites the stats file atomically via a temp file and rename.
func (s *Store) Save(stats *AverageStats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return eris.Wrap(err, "estimate: marshal stats")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "estimate: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".durations-*.json")
	if err != nil {
		return eris.Wrap(err, "estimate: create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()        //nolint:errcheck
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrap(err, "estimate: write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrap(err, "estimate: close temp file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "estimate: replace %s", s.path)
	}
	return nil
}
