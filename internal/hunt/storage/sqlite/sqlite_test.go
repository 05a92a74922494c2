package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/banshee-data/cyclotron.report/internal/db"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l1spectra"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l3groups"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l4windows"
	"github.com/banshee-data/cyclotron.report/internal/hunt/pipeline"
	"github.com/banshee-data/cyclotron.report/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ pipeline.TrackSink       = (*TrackStore)(nil)
	_ pipeline.SpectrogramSink = (*SpectrogramStore)(nil)
)

// setupTestDB opens a migrated database in a temporary directory.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database.DB
}

func sampleTrack(id string, component int, start float64) l3groups.Track {
	return l3groups.Track{
		ID:             id,
		Component:      component,
		Points:         []l3groups.Point{{Slice: 4, Bin: 10}, {Slice: 5, Bin: 11}, {Slice: 6, Bin: 12}},
		MinSlice:       4,
		MaxSlice:       6,
		MinBin:         10,
		MaxBin:         12,
		StartTime:      start,
		EndTime:        start + 0.5,
		StartFrequency: 40,
		EndFrequency:   48,
		MinFrequency:   38,
		MaxFrequency:   50,
	}
}

// ---------------------------------------------------------------------------
// TrackStore
// ---------------------------------------------------------------------------

func TestTrackStore_InsertGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTrackStore(setupTestDB(t))

	want := sampleTrack("track-1", 0, 1.0)
	id, err := store.InsertTrack(ctx, want)
	require.NoError(t, err)
	assert.Equal(t, "track-1", id)

	got, err := store.GetTrack(ctx, id)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("track mismatch (-want +got):\n%s", diff)
	}
}

func TestTrackStore_GeneratesID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTrackStore(setupTestDB(t))

	tr := sampleTrack("", 0, 0)
	tr.Points = nil
	id, err := store.InsertTrack(ctx, tr)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := store.GetTrack(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.Points)
}

func TestTrackStore_DuplicateIDRejected(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTrackStore(setupTestDB(t))
	require.NoError(t, store.WriteTrack(ctx, sampleTrack("dup", 0, 0)))
	assert.Error(t, store.WriteTrack(ctx, sampleTrack("dup", 0, 0)))
}

func TestTrackStore_ListAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTrackStore(setupTestDB(t))
	for i, tr := range []l3groups.Track{
		sampleTrack("c0-late", 0, 3),
		sampleTrack("c1", 1, 2),
		sampleTrack("c0-early", 0, 1),
	} {
		require.NoError(t, store.WriteTrack(ctx, tr), "track %d", i)
	}

	all, err := store.ListTracks(ctx, -1, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c0-early", all[0].ID)
	assert.Equal(t, "c1", all[1].ID)

	c0, err := store.ListTracks(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, c0, 2)
	assert.Equal(t, "c0-early", c0[0].ID)
	assert.Equal(t, "c0-late", c0[1].ID)

	limited, err := store.ListTracks(ctx, -1, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, store.DeleteTrack(ctx, "c1"))
	assert.ErrorIs(t, store.DeleteTrack(ctx, "c1"), sql.ErrNoRows)
	_, err = store.GetTrack(ctx, "c1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

// ---------------------------------------------------------------------------
// SpectrogramStore
// ---------------------------------------------------------------------------

func sampleSpectrogram(id, trackID string, windowStart float64) *l4windows.Spectrogram {
	return &l4windows.Spectrogram{
		ID:           id,
		TrackID:      trackID,
		Component:    1,
		TrackStart:   windowStart + 0.5,
		TrackEnd:     windowStart + 1.5,
		WindowStart:  windowStart,
		WindowEnd:    windowStart + 2,
		DeltaT:       0.25,
		FirstBin:     7,
		BinWidth:     4,
		MinFrequency: 26,
		Times:        []float64{windowStart, windowStart + 0.25},
		Power:        [][]float64{{1, 2, 3}, {4, 5, 6}},
	}
}

func TestSpectrogramStore_InsertGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSpectrogramStore(setupTestDB(t))

	want := sampleSpectrogram("sg-1", "track-1", 0.5)
	require.NoError(t, store.InsertSpectrogram(ctx, want))

	got, err := store.GetSpectrogram(ctx, "sg-1")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("spectrogram mismatch (-want +got):\n%s", diff)
	}

	_, err = store.GetSpectrogram(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSpectrogramStore_ListForTrack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSpectrogramStore(setupTestDB(t))
	require.NoError(t, store.WriteSpectrogram(ctx, sampleSpectrogram("b", "track-1", 2)))
	require.NoError(t, store.WriteSpectrogram(ctx, sampleSpectrogram("a", "track-1", 1)))
	require.NoError(t, store.WriteSpectrogram(ctx, sampleSpectrogram("", "track-2", 0)))

	list, err := store.ListSpectrogramsForTrack(ctx, "track-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	n, err := store.CountSpectrograms(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestBlobCodec(t *testing.T) {
	t.Parallel()

	blob, err := encodeBlob([]float64{1, 2, 3})
	require.NoError(t, err)
	var got []float64
	require.NoError(t, decodeBlob(blob, &got))
	assert.Equal(t, []float64{1, 2, 3}, got)

	assert.Error(t, decodeBlob(nil, &got))
	assert.Error(t, decodeBlob([]byte("not zstd"), &got))
}

// ---------------------------------------------------------------------------
// Pipeline integration
// ---------------------------------------------------------------------------

func TestStoresAsPipelineSinks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sqlDB := setupTestDB(t)
	tracks := NewTrackStore(sqlDB)
	spectrograms := NewSpectrogramStore(sqlDB)

	cfg := pipeline.DefaultConfig()
	cfg.TrackSinks = []pipeline.TrackSink{tracks}
	cfg.SpectrogramSinks = []pipeline.SpectrogramSink{spectrograms}
	p, err := pipeline.New(cfg)
	require.NoError(t, err)

	h, err := l1spectra.NewHeader(1024, 64, 64, 1)
	require.NoError(t, err)
	require.NoError(t, p.OnHeader(ctx, h))
	for _, s := range testutil.ChirpSlices(h, 0, 6, 8, 1, 4) {
		require.NoError(t, p.ProcessSlice(ctx, s))
	}
	_, err = p.Finish(ctx)
	require.NoError(t, err)

	stored, err := tracks.ListTracks(ctx, -1, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Len(t, stored[0].Points, 6)

	sgs, err := spectrograms.ListSpectrogramsForTrack(ctx, stored[0].ID)
	require.NoError(t, err)
	require.Len(t, sgs, 1)
	assert.Equal(t, 6, sgs[0].Len())
}
