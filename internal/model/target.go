// Package model holds the types shared by the collection pipeline: targets,
// records, per-target outcomes and persisted run history.
package model

// Target identifies one collection job: a region (and optionally a sub-region)
// served by exactly one adapter type.
type Target struct {
	Key       string            `json:"key" yaml:"key"`
	Region    string            `json:"region" yaml:"region"`
	SubRegion string            `json:"sub_region,omitempty" yaml:"sub_region"`
	Adapter   string            `json:"adapter" yaml:"adapter"`
	Params    map[string]string `json:"params,omitempty" yaml:"params"`
}

// IsSubRegion reports whether the target is scoped below its region.
func (t Target) IsSubRegion() bool {
	return t.SubRegion != ""
}

// Param returns a target parameter or def when unset.
func (t Target) Param(name, def string) string {
	if v, ok := t.Params[name]; ok && v != "" {
		return v
	}
	return def
}
