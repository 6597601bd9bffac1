package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

// AllTargets selects every configured target.
const AllTargets = "all"

type targetsFile struct {
	Targets []model.Target `yaml:"targets"`
}

// LoadTargets reads the YAML targets file. Keys must be unique ignoring
// case and every target must name an adapter; a missing region defaults to
// the key.
func LoadTargets(path string) ([]model.Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read targets %s", path)
	}
	var tf targetsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, eris.Wrapf(err, "config: parse targets %s", path)
	}

	seen := make(map[string]bool, len(tf.Targets))
	for i := range tf.Targets {
		t := &tf.Targets[i]
		t.Key = strings.TrimSpace(t.Key)
		if t.Key == "" {
			return nil, eris.Errorf("config: target %d has no key", i+1)
		}
		folded := strings.ToLower(t.Key)
		if seen[folded] {
			return nil, eris.Errorf("config: duplicate target key %q", t.Key)
		}
		seen[folded] = true
		if t.Adapter == "" {
			return nil, eris.Errorf("config: target %q has no adapter", t.Key)
		}
		if t.Region == "" {
			t.Region = t.Key
		}
	}
	return tf.Targets, nil
}

// SelectTargets resolves requested keys against the configured targets in
// request order. "all" expands to every target in file order. Unknown keys
// are returned separately and do not fail the selection.
func SelectTargets(all []model.Target, keys []string) (selected []model.Target, unknown []string) {
	byKey := make(map[string]model.Target, len(all))
	for _, t := range all {
		byKey[t.Key] = t
	}

	picked := make(map[string]bool)
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if strings.EqualFold(k, AllTargets) {
			for _, t := range all {
				if !picked[t.Key] {
					picked[t.Key] = true
					selected = append(selected, t)
				}
			}
			continue
		}
		t, ok := byKey[k]
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		if !picked[k] {
			picked[k] = true
			selected = append(selected, t)
		}
	}
	return selected, unknown
}
