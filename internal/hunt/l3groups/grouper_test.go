package l3groups

import (
	"bytes"
	"sort"
	"testing"

	"github.com/banshee-data/cyclotron.report/internal/hunt/l2peaks"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{MinimumGroupSize: 2, MarginLow: 3, MarginHigh: 1, MarginSameSlice: 1, MinimumSpan: 2}
}

func newTestGrouper(t *testing.T, cfg Config) *Grouper {
	t.Helper()
	g, err := NewGrouper(cfg, 0, Axis{TimeStep: 1, BinWidth: 1})
	require.NoError(t, err)
	return g
}

func feed(t *testing.T, g *Grouper, slices map[int64][]int, first, last int64) {
	t.Helper()
	for s := first; s <= last; s++ {
		require.NoError(t, g.AddBins(s, slices[s]))
	}
}

type box struct {
	MinSlice, MaxSlice int64
	MinBin, MaxBin     int
	N                  int
}

func boxes(tracks []Track) []box {
	out := make([]box, len(tracks))
	for i, t := range tracks {
		out[i] = box{t.MinSlice, t.MaxSlice, t.MinBin, t.MaxBin, len(t.Points)}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MinSlice != out[j].MinSlice {
			return out[i].MinSlice < out[j].MinSlice
		}
		return out[i].MinBin < out[j].MinBin
	})
	return out
}

// ---------------------------------------------------------------------------
// Matching
// ---------------------------------------------------------------------------

func TestGrouper_ChirpBecomesOneTrack(t *testing.T) {
	t.Parallel()

	g := newTestGrouper(t, testConfig())
	for s := int64(0); s <= 4; s++ {
		require.NoError(t, g.AddBins(s, []int{10 + int(s)}))
	}
	tracks := g.Drain()

	require.Len(t, tracks, 1)
	tr := tracks[0]
	want := []Point{{0, 10}, {1, 11}, {2, 12}, {3, 13}, {4, 14}}
	if diff := cmp.Diff(want, tr.Points); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(0), tr.MinSlice)
	assert.Equal(t, int64(4), tr.MaxSlice)
	assert.Equal(t, 10, tr.MinBin)
	assert.Equal(t, 14, tr.MaxBin)
	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, 0, g.Open(), "drain transfers every candidate out")
}

func TestGrouper_IsolatedPeakIsPruned(t *testing.T) {
	t.Parallel()

	g := newTestGrouper(t, testConfig())
	require.NoError(t, g.AddBins(0, []int{50}))
	require.NoError(t, g.AddBins(1, nil))
	assert.Equal(t, 1, g.Open(), "pruning waits for the slice after the gap")
	require.NoError(t, g.AddBins(2, nil))

	assert.Equal(t, 0, g.Open())
	assert.Equal(t, 1, g.Pruned())
	assert.Empty(t, g.Drain())
}

func TestGrouper_AsymmetricMargins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		control bool
		next    int
		match   bool
	}{
		{"low margin reaches down 3", false, 17, true},
		{"low margin stops at 4", false, 16, false},
		{"high margin reaches up 1", false, 21, true},
		{"high margin stops at 2", false, 22, false},
		{"control reaches up 3", true, 23, true},
		{"control stops down 2", true, 18, false},
		{"control reaches down 1", true, 19, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			cfg.Control = tt.control
			g := newTestGrouper(t, cfg)
			require.NoError(t, g.AddBins(0, []int{20}))
			require.NoError(t, g.AddBins(1, []int{tt.next}))
			if tt.match {
				assert.Equal(t, 1, g.Open())
				assert.Equal(t, 2, g.Snapshot()[0].Size)
			} else {
				assert.Equal(t, 2, g.Open())
			}
		})
	}
}

func TestGrouper_SameSliceMargin(t *testing.T) {
	t.Parallel()

	g := newTestGrouper(t, testConfig())
	// 10 and 11 join; 13 is two bins above the running max of 11 and starts
	// its own candidate.
	require.NoError(t, g.AddBins(0, []int{10, 11, 13}))

	snap := g.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, CandidateSnapshot{Size: 2, Last: 0, MinLast: 10, MaxLast: 11}, snap[0])
	assert.Equal(t, CandidateSnapshot{Size: 1, Last: 0, MinLast: 13, MaxLast: 13}, snap[1])
}

func TestGrouper_FirstMatchWins(t *testing.T) {
	t.Parallel()

	g := newTestGrouper(t, testConfig())
	require.NoError(t, g.AddBins(0, []int{10, 12}))
	// Bin 10 lies within both [7, 11] and [9, 13]; the older candidate wins
	// and bin 11 then extends it through the same-slice margin.
	require.NoError(t, g.AddBins(1, []int{10, 11}))

	snap := g.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, 3, snap[0].Size)
	assert.Equal(t, int64(1), snap[0].Last)
	assert.Equal(t, 1, snap[1].Size)
	assert.Equal(t, int64(0), snap[1].Last)
}

func TestGrouper_NoDoubleMatch(t *testing.T) {
	t.Parallel()

	g := newTestGrouper(t, testConfig())
	require.NoError(t, g.AddBins(0, []int{10}))
	require.NoError(t, g.AddBins(1, []int{10}))

	total := 0
	for _, c := range g.Snapshot() {
		total += c.Size
	}
	assert.Equal(t, 2, total, "every bin is assigned exactly once")
}

// ---------------------------------------------------------------------------
// Contract violations
// ---------------------------------------------------------------------------

func TestGrouper_OutOfOrderSlice(t *testing.T) {
	t.Parallel()

	g := newTestGrouper(t, testConfig())
	require.NoError(t, g.AddBins(5, []int{1}))

	err := g.AddBins(5, []int{2})
	assert.ErrorIs(t, err, ErrOutOfOrderSlice)
	err = g.AddBins(3, nil)
	assert.ErrorIs(t, err, ErrOutOfOrderSlice)

	assert.Equal(t, 1, g.Open(), "rejected slices leave state untouched")
	require.NoError(t, g.AddBins(6, []int{1}))
}

func TestGrouper_OutOfOrderSliceIsLogged(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(&ops, nil, nil)
	defer SetLogWriters(nil, nil, nil)

	g := newTestGrouper(t, testConfig())
	require.NoError(t, g.AddBins(5, []int{1}))
	require.ErrorIs(t, g.AddBins(4, nil), ErrOutOfOrderSlice)
	assert.Contains(t, ops.String(), "[l3groups] ")
	assert.Contains(t, ops.String(), "rejected slice 4 after 5")
}

func TestGrouper_UnsortedBins(t *testing.T) {
	t.Parallel()

	g := newTestGrouper(t, testConfig())
	assert.ErrorIs(t, g.AddBins(0, []int{5, 3}), ErrUnsortedBins)
	assert.ErrorIs(t, g.AddBins(0, []int{5, 5}), ErrUnsortedBins)
	assert.Equal(t, 0, g.Open())
	require.NoError(t, g.AddBins(0, []int{3, 5}))
}

func TestGrouper_FirstSliceNothingStale(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MinimumGroupSize = 10
	g := newTestGrouper(t, cfg)
	require.NoError(t, g.AddBins(0, []int{4}))
	require.NoError(t, g.AddBins(1, []int{5}))
	assert.Equal(t, 1, g.Open())
	assert.Equal(t, 0, g.Pruned())
}

// ---------------------------------------------------------------------------
// Draining
// ---------------------------------------------------------------------------

func TestGrouper_SpanFilter(t *testing.T) {
	t.Parallel()

	g := newTestGrouper(t, testConfig())
	// Three points in one slice: big enough to survive pruning, but a span
	// of zero slices.
	require.NoError(t, g.AddBins(0, []int{10, 11, 12}))
	// Two slices: span 1.
	require.NoError(t, g.AddBins(1, []int{40}))
	require.NoError(t, g.AddBins(2, []int{40}))

	assert.Empty(t, g.Drain())
	assert.Equal(t, 2, g.Pruned())
}

func TestGrouper_MinimumGroupSizeIsHonoured(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MinimumGroupSize = 4
	g := newTestGrouper(t, cfg)
	stream := map[int64][]int{0: {10}, 1: {11}, 2: {12}, 3: {13}}
	feed(t, g, stream, 0, 3)
	// Four points, not extended at slices 4 and 5: pruned at 5.
	feed(t, g, nil, 4, 5)
	assert.Equal(t, 1, g.Pruned())
	assert.Empty(t, g.Drain())
}

func TestGrouper_DrainClosedMatchesFinalDrain(t *testing.T) {
	t.Parallel()

	stream := map[int64][]int{
		0:  {10, 40},
		1:  {11, 41, 90},
		2:  {12, 42},
		3:  {13, 43},
		4:  {14},
		5:  {70},
		6:  {71},
		7:  {72},
		8:  {73, 120},
		9:  {121},
		10: {122},
		11: {},
		12: {5, 6, 7},
		13: {8},
		14: {9},
	}

	batch := newTestGrouper(t, testConfig())
	feed(t, batch, stream, 0, 14)
	want := boxes(batch.Drain())
	require.NotEmpty(t, want)

	streaming := newTestGrouper(t, testConfig())
	var got []Track
	for s := int64(0); s <= 14; s++ {
		require.NoError(t, streaming.AddBins(s, stream[s]))
		got = append(got, streaming.DrainClosed()...)
	}
	closedEarly := len(got)
	got = append(got, streaming.Drain()...)

	if diff := cmp.Diff(want, boxes(got)); diff != "" {
		t.Errorf("streaming drain differs from batch drain (-want +got):\n%s", diff)
	}
	assert.Greater(t, closedEarly, 0, "some tracks close before the end of the stream")
	assert.Equal(t, batch.Pruned(), streaming.Pruned())
}

func TestGrouper_DrainClosedLeavesSmallCandidates(t *testing.T) {
	t.Parallel()

	g := newTestGrouper(t, testConfig())
	require.NoError(t, g.AddBins(0, []int{10}))
	require.NoError(t, g.AddBins(1, []int{11}))
	require.NoError(t, g.AddBins(2, nil))

	assert.Empty(t, g.DrainClosed())
	assert.Equal(t, 1, g.Open(), "a two-point candidate waits for the next slice to be pruned")
	assert.Empty(t, (&Grouper{}).DrainClosed())
}

func TestGrouper_MonotoneCandidates(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MinimumGroupSize = 0 // nothing is ever pruned, so indices stay stable
	g := newTestGrouper(t, cfg)

	var prev []CandidateSnapshot
	for s := int64(0); s < 30; s++ {
		bins := []int{int(s) % 7, 20 + int(s)/3, 60 - int(s)%4}
		require.NoError(t, g.AddBins(s, bins))
		snap := g.Snapshot()
		require.GreaterOrEqual(t, len(snap), len(prev))
		for i := range prev {
			assert.GreaterOrEqual(t, snap[i].Size, prev[i].Size)
			assert.GreaterOrEqual(t, snap[i].Last, prev[i].Last)
		}
		prev = snap
	}
}

func TestGrouper_Deterministic(t *testing.T) {
	t.Parallel()

	run := func() []box {
		g := newTestGrouper(t, testConfig())
		for s := int64(0); s < 50; s++ {
			require.NoError(t, g.AddBins(s, []int{int(s) / 2, 30 + int(s)%5, 80}))
		}
		return boxes(g.Drain())
	}
	assert.Equal(t, run(), run())
}

func TestGrouper_AddPeakSet(t *testing.T) {
	t.Parallel()

	g := newTestGrouper(t, testConfig())
	require.NoError(t, g.Add(0, l2peaks.PeakSet{{Bin: 3}, {Bin: 9}}))
	assert.Equal(t, 2, g.Open())
}

func TestGrouper_TrackUnits(t *testing.T) {
	t.Parallel()

	g, err := NewGrouper(testConfig(), 3, Axis{TimeStep: 0.5, BinWidth: 2, MinFrequency: 100})
	require.NoError(t, err)
	for s := int64(0); s <= 4; s++ {
		require.NoError(t, g.AddBins(s, []int{10 + int(s)}))
	}
	tracks := g.Drain()
	require.Len(t, tracks, 1)

	want := Track{
		Component:      3,
		MinSlice:       0,
		MaxSlice:       4,
		MinBin:         10,
		MaxBin:         14,
		StartTime:      0,
		EndTime:        2,
		StartFrequency: 121,
		EndFrequency:   129,
		MinFrequency:   120,
		MaxFrequency:   130,
	}
	opts := cmpopts.IgnoreFields(Track{}, "ID", "Points")
	if diff := cmp.Diff(want, tracks[0], opts); diff != "" {
		t.Errorf("track mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 4.0, tracks[0].Slope(), 1e-12)
	assert.Equal(t, 5, tracks[0].Len())
	assert.Equal(t, 0.0, Track{}.Slope())
}

func TestGrouper_Reset(t *testing.T) {
	t.Parallel()

	g := newTestGrouper(t, testConfig())
	require.NoError(t, g.AddBins(10, []int{1}))
	g.Reset(Axis{TimeStep: 2})
	assert.Equal(t, 0, g.Open())
	require.NoError(t, g.AddBins(0, []int{1}), "slice order restarts after reset")
}

func TestConfig(t *testing.T) {
	t.Parallel()

	assert.Error(t, Config{MinimumGroupSize: -1}.Validate())
	assert.Error(t, Config{MarginLow: -1}.Validate())
	assert.Error(t, Config{MinimumSpan: -1}.Validate())
	_, err := NewGrouper(Config{MarginSameSlice: -2}, 0, Axis{})
	assert.Error(t, err)

	cfg := DefaultConfig()
	assert.Equal(t, testConfig(), cfg)
}
