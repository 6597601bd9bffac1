package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/filter"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

func refilterBundle() *Bundle {
	return &Bundle{Sections: []Section{
		{Target: model.Target{Key: "ohio"}, Success: true, Records: []model.Record{
			{Title: "Road paving services", Code: "X1"},
			{Title: "Office chairs", Code: "C2"},
		}},
		{Target: model.Target{Key: "utah"}, Success: true, Records: []model.Record{{Title: "Catering", Code: "K3"}}},
		{Target: model.Target{Key: "iowa"}, Success: false, Err: "search_failure: search: 503"},
	}}
}

func TestRefilter(t *testing.T) {
	f := filter.New([]string{"road", "paving"}, filter.NewSuppressionSet())
	out, err := Refilter(refilterBundle(), f.Apply)
	require.NoError(t, err)

	require.Len(t, out.Sections, 2)
	assert.Equal(t, "ohio", out.Sections[0].Target.Key)
	require.Len(t, out.Sections[0].Records, 1)
	assert.Equal(t, 2, out.Sections[0].Records[0].Score)
	assert.True(t, out.Sections[1].Failed())
}

func TestRefilter_SuppressedEverything(t *testing.T) {
	f := filter.New([]string{"road"}, filter.NewSuppressionSet("X1"))
	b := refilterBundle()
	b.Sections = b.Sections[:2]

	_, err := Refilter(b, f.Apply)
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	b := refilterBundle()

	jsonPath := filepath.Join(dir, "b.json")
	fj, err := os.Create(jsonPath)
	require.NoError(t, err)
	require.NoError(t, JSONEncoder{Bundle: b}.Encode(fj))
	require.NoError(t, fj.Close())

	xlsxPath := filepath.Join(dir, "b.xlsx")
	fx, err := os.Create(xlsxPath)
	require.NoError(t, err)
	require.NoError(t, XLSXEncoder{Bundle: b}.Encode(fx))
	require.NoError(t, fx.Close())

	for _, p := range []string{jsonPath, xlsxPath} {
		got, err := ReadFile(p)
		require.NoError(t, err, p)
		require.Len(t, got.Sections, 3, p)
		assert.Equal(t, "X1", got.Sections[0].Records[0].Code, p)
	}

	_, err = ReadFile(filepath.Join(dir, "b.csv"))
	assert.Error(t, err)
}
