package estimate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

var (
	texas  = model.Target{Key: "texas", Region: "texas"}
	ohio   = model.Target{Key: "ohio", Region: "ohio"}
	harris = model.Target{Key: "texas/harris", Region: "texas", SubRegion: "harris"}
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "durations.json"))
}

func TestAverage_Observe(t *testing.T) {
	a := Average{}.Observe(5).Observe(15)
	assert.Equal(t, 2, a.Count)
	assert.InDelta(t, 10.0, a.AverageSeconds, 1e-12)

	b := Average{}.Observe(15).Observe(5)
	assert.Equal(t, a, b)
}

func TestAverage_ObserveStableForLargeCounts(t *testing.T) {
	a := Average{}
	for i := 0; i < 50000; i++ {
		a = a.Observe(float64(100 + i%3))
	}
	assert.Equal(t, 50000, a.Count)
	assert.InDelta(t, 101.0, a.AverageSeconds, 1e-6)
}

func TestUpdate_CommutativeOverOrder(t *testing.T) {
	s1 := newTestStore(t)
	s2 := newTestStore(t)

	a, err := s1.Update(NewAverageStats(), []Observation{{texas, 5}, {texas, 15}})
	require.NoError(t, err)
	b, err := s2.Update(NewAverageStats(), []Observation{{texas, 15}, {texas, 5}})
	require.NoError(t, err)

	ga, _ := a.Lookup(texas)
	gb, _ := b.Lookup(texas)
	assert.Equal(t, Average{Count: 2, AverageSeconds: 10}, ga)
	assert.Equal(t, ga, gb)
}

func TestUpdate_PersistsAndReloads(t *testing.T) {
	s := newTestStore(t)
	stats, err := s.Load()
	require.NoError(t, err)

	stats, err = s.Update(stats, []Observation{{texas, 30}, {harris, 12}})
	require.NoError(t, err)
	stats, err = s.Update(stats, []Observation{{harris, 18}})
	require.NoError(t, err)

	reloaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, stats, reloaded)

	h, ok := reloaded.Lookup(harris)
	require.True(t, ok)
	assert.Equal(t, 2, h.Count)
	assert.InDelta(t, 15.0, h.AverageSeconds, 1e-9)

	// Sub-regions never touch the region bucket.
	tx, ok := reloaded.Lookup(texas)
	require.True(t, ok)
	assert.Equal(t, 1, tx.Count)
}

func TestUpdate_DoesNotMutateInput(t *testing.T) {
	s := newTestStore(t)
	in := NewAverageStats()
	_, err := s.Update(in, []Observation{{ohio, 8}})
	require.NoError(t, err)
	assert.Empty(t, in.States)
}

func TestStore_SchemaOnDisk(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Update(NewAverageStats(), []Observation{{texas, 4}, {harris, 2}})
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"states": {"texas": {"count": 1, "average_seconds": 4}},
		"counties": {"texas": {"texas/harris": {"count": 1, "average_seconds": 2}}}
	}`, string(data))
}

func TestLoad_MissingAndEmpty(t *testing.T) {
	s := newTestStore(t)
	stats, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, stats.States)

	require.NoError(t, os.WriteFile(s.Path(), []byte("  \n"), 0o644))
	stats, err = s.Load()
	require.NoError(t, err)
	assert.NotNil(t, stats.Counties)
}

func TestLoad_PartialDocument(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"states": {"ohio": {"count": 3, "average_seconds": 20}}}`), 0o644))

	stats, err := s.Load()
	require.NoError(t, err)
	assert.NotNil(t, stats.Counties)
	a, ok := stats.Lookup(model.Target{Key: " Ohio ", Region: "ohio"})
	require.True(t, ok)
	assert.Equal(t, Average{Count: 3, AverageSeconds: 20}, a)
}

func TestLoad_Corrupt(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{nope"), 0o644))
	_, err := s.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "estimate: parse")
}

func TestEstimate(t *testing.T) {
	stats := Apply(NewAverageStats(), []Observation{
		{texas, 90},
		{ohio, 40.5},
		{harris, 30},
	})

	m, s := Estimate(stats, []model.Target{texas, ohio, harris})
	// 160.5 rounds half-to-even to 160.
	assert.Equal(t, 2, m)
	assert.Equal(t, 40, s)

	m, s = Estimate(stats, []model.Target{texas, {Key: "unknown", Region: "nowhere"}})
	assert.Equal(t, 1, m)
	assert.Equal(t, 30, s)

	m, s = Estimate(nil, []model.Target{texas})
	assert.Zero(t, m)
	assert.Zero(t, s)
}

func TestEstimate_RoundsHalfToEven(t *testing.T) {
	stats := Apply(NewAverageStats(), []Observation{{texas, 61.5}})
	m, s := Estimate(stats, []model.Target{texas})
	assert.Equal(t, 1, m)
	assert.Equal(t, 2, s)
}

func TestApply_TargetsSharingARegionKeepSeparateAverages(t *testing.T) {
	dot := model.Target{Key: "texas-dot", Region: "texas"}
	gsd := model.Target{Key: "texas-gsd", Region: "texas"}
	bexarA := model.Target{Key: "bexar-bids", Region: "texas", SubRegion: "bexar"}
	bexarB := model.Target{Key: "bexar-rfq", Region: "texas", SubRegion: "bexar"}

	stats := Apply(NewAverageStats(), []Observation{
		{dot, 10}, {gsd, 100}, {bexarA, 4}, {bexarB, 8},
	})

	a, ok := stats.Lookup(dot)
	require.True(t, ok)
	assert.Equal(t, Average{Count: 1, AverageSeconds: 10}, a)
	b, ok := stats.Lookup(gsd)
	require.True(t, ok)
	assert.Equal(t, Average{Count: 1, AverageSeconds: 100}, b)

	c, _ := stats.Lookup(bexarA)
	d, _ := stats.Lookup(bexarB)
	assert.Equal(t, Average{Count: 1, AverageSeconds: 4}, c)
	assert.Equal(t, Average{Count: 1, AverageSeconds: 8}, d)

	m, sec := Estimate(stats, []model.Target{dot, gsd})
	assert.Equal(t, 1, m)
	assert.Equal(t, 50, sec)
}
