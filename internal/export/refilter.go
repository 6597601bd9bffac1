package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

// ReadFile loads a bundle written by either encoder, picked by extension.
func ReadFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: read %s", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(data)
	case ".json":
		return ReadJSON(bytes.NewReader(data))
	default:
		return nil, eris.Errorf("export: unknown bundle format %q", filepath.Ext(path))
	}
}

// Refilter runs apply over every section's records and returns a new
// bundle. Succeeded sections left without records are dropped, failed
// sections are kept. An empty result is ErrNoRecords.
func Refilter(b *Bundle, apply func([]model.Record) []model.Record) (*Bundle, error) {
	out := &Bundle{GeneratedAt: b.GeneratedAt}
	for _, s := range b.Sections {
		s.Records = apply(s.Records)
		if s.Success && len(s.Records) == 0 {
			continue
		}
		out.Sections = append(out.Sections, s)
	}
	if len(out.Sections) == 0 {
		return nil, ErrNoRecords
	}
	return out, nil
}
