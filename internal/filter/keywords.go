// Package filter scores listings against a keyword list and drops the ones a
// user has permanently suppressed.
package filter

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

// Score returns the sum, over keywords, of case-insensitive occurrence counts
// of each keyword in title.
func Score(title string, keywords []string) int {
	lower := strings.ToLower(title)
	total := 0
	for _, k := range keywords {
		k = strings.ToLower(k)
		if k == "" {
			continue
		}
		total += strings.Count(lower, k)
	}
	return total
}

// Rank removes suppressed records, scores the rest against keywords and
// returns the survivors ordered by score descending. Ties keep their input
// order. With no keywords every non-suppressed record passes with score 0.
// The input slice is not modified.
func Rank(records []model.Record, keywords []string, suppressed *SuppressionSet) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if suppressed.Contains(r.Code) {
			continue
		}
		if len(keywords) == 0 {
			r.Score = 0
			out = append(out, r)
			continue
		}
		r.Score = Score(r.Title, keywords)
		if r.Score > 0 {
			out = append(out, r)
		}
	}

	slices.SortStableFunc(out, func(a, b model.Record) int {
		return b.Score - a.Score
	})
	return out
}

// LoadKeywords reads one keyword per line. Blank lines are skipped and
// surrounding whitespace is trimmed. A missing file returns an error that
// satisfies errors.Is(err, fs.ErrNotExist).
func LoadKeywords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "filter: open keywords %s", path)
	}
	defer f.Close() //nolint:errcheck

	var keywords []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		k := strings.TrimSpace(sc.Text())
		if k != "" {
			keywords = append(keywords, k)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "filter: read keywords %s", path)
	}
	return keywords, nil
}

// Filter bundles a keyword list with a suppression set so adapters can apply
// both in one call.
type Filter struct {
	keywords   []string
	suppressed *SuppressionSet
	missing    bool
}

// New builds a Filter from an in-memory keyword list.
func New(keywords []string, suppressed *SuppressionSet) *Filter {
	return &Filter{keywords: keywords, suppressed: suppressed}
}

// Open loads the keyword file. A missing keyword file is not an error: the
// returned filter yields an empty result for every input.
func Open(keywordsPath string, suppressed *SuppressionSet) (*Filter, error) {
	keywords, err := LoadKeywords(keywordsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Filter{suppressed: suppressed, missing: true}, nil
		}
		return nil, err
	}
	return New(keywords, suppressed), nil
}

// Keywords returns a copy of the keyword list.
func (f *Filter) Keywords() []string {
	return slices.Clone(f.keywords)
}

// KeywordsMissing reports whether the keyword file was absent.
func (f *Filter) KeywordsMissing() bool {
	return f.missing
}

// Apply ranks records. A nil Filter passes records through unscored.
func (f *Filter) Apply(records []model.Record) []model.Record {
	if f == nil {
		return Rank(records, nil, nil)
	}
	if f.missing {
		return []model.Record{}
	}
	return Rank(records, f.keywords, f.suppressed)
}
