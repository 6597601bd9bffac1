package filter

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

// SuppressionSet is the persisted set of record codes a user has hidden.
// The on-disk form is a JSON array of strings.
type SuppressionSet struct {
	path string
	ids  map[string]struct{}
}

// NewSuppressionSet builds an unpersisted set from ids.
func NewSuppressionSet(ids ...string) *SuppressionSet {
	s := &SuppressionSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// LoadSuppressionSet reads the set from path. A missing file yields an empty
// set bound to path so a later Save creates it.
func LoadSuppressionSet(path string) (*SuppressionSet, error) {
	s := &SuppressionSet{path: path, ids: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, eris.Wrapf(err, "filter: read suppression list %s", path)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return s, nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, eris.Wrapf(err, "filter: parse suppression list %s", path)
	}
	for _, id := range ids {
		s.Add(id)
	}
	return s, nil
}

// Contains reports whether id is suppressed. Empty ids are never suppressed.
func (s *SuppressionSet) Contains(id string) bool {
	if s == nil || id == "" {
		return false
	}
	_, ok := s.ids[strings.TrimSpace(id)]
	return ok
}

// Add inserts id and reports whether it was new.
func (s *SuppressionSet) Add(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Len returns the number of suppressed ids.
func (s *SuppressionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// IDs returns the suppressed ids sorted.
func (s *SuppressionSet) IDs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Save overwrites the backing file with the whole set.
func (s *SuppressionSet) Save() error {
	if s.path == "" {
		return eris.New("filter: suppression set has no backing file")
	}
	data, err := json.MarshalIndent(s.IDs(), "", "  ")
	if err != nil {
		return eris.Wrap(err, "filter: marshal suppression list")
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "filter: create dir %s", dir)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return eris.Wrapf(err, "filter: write suppression list %s", s.path)
	}
	return nil
}
