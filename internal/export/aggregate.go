// Package export merges per-target outcomes into a bundle and encodes it.
package export

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

// ErrNoRecords reports that no target contributed anything to the bundle.
var ErrNoRecords = eris.New("export: no records scraped for any target")

// Section is one target's slice of a bundle.
type Section struct {
	Target   model.Target   `json:"target"`
	Success  bool           `json:"success"`
	Records  []model.Record `json:"records"`
	Attempts int            `json:"attempts"`
	Elapsed  float64        `json:"elapsed_seconds"`
	Err      string         `json:"error,omitempty"`
}

// Failed reports whether the section stands for a failed target.
func (s Section) Failed() bool {
	return !s.Success
}

// Bundle is the aggregated export of one run.
type Bundle struct {
	GeneratedAt time.Time `json:"generated_at"`
	Sections    []Section `json:"sections"`
}

// RecordCount returns the number of real records across sections.
func (b *Bundle) RecordCount() int {
	n := 0
	for _, s := range b.Sections {
		n += len(s.Records)
	}
	return n
}

// Aggregate merges outcomes in order. Succeeded placeholders are excluded;
// failed placeholders stay as sections without records so the failure is
// visible in the export. An empty result is ErrNoRecords.
func Aggregate(outcomes []model.JobOutcome) (*Bundle, error) {
	b := &Bundle{GeneratedAt: time.Now().UTC()}
	for _, o := range outcomes {
		placeholder := o.IsPlaceholder()
		if placeholder && o.Success {
			continue
		}
		s := Section{
			Target:   o.Target,
			Success:  o.Success,
			Attempts: o.Attempts,
			Elapsed:  o.ElapsedSeconds(),
			Err:      o.Err,
		}
		if !placeholder {
			s.Records = o.Records
		}
		b.Sections = append(b.Sections, s)
	}
	if len(b.Sections) == 0 {
		return nil, ErrNoRecords
	}
	return b, nil
}
