package monitor

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/cyclotron.report/internal/hunt/l4windows"
	"github.com/banshee-data/cyclotron.report/internal/hunt/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ pipeline.SpectrogramSink = (*WaterfallPlotter)(nil)

func testSpectrogram(id string) *l4windows.Spectrogram {
	sg := &l4windows.Spectrogram{
		ID:           id,
		TrackID:      "0123456789abcdef",
		Component:    2,
		DeltaT:       0.125,
		FirstBin:     4,
		BinWidth:     8,
		MinFrequency: 28,
	}
	for i := 0; i < 6; i++ {
		sg.Times = append(sg.Times, float64(i)*sg.DeltaT)
		row := make([]float64, 5)
		for b := range row {
			row[b] = 1
		}
		row[i%5] = 1000
		sg.Power = append(sg.Power, row)
	}
	return sg
}

func TestWaterfallPlotter_StartStop(t *testing.T) {
	t.Parallel()

	wp := NewWaterfallPlotter()
	assert.False(t, wp.IsEnabled())

	dir := filepath.Join(t.TempDir(), "nested", "plots")
	require.NoError(t, wp.Start(dir))
	assert.True(t, wp.IsEnabled())
	assert.Equal(t, dir, wp.GetOutputDir())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	wp.Stop()
	assert.False(t, wp.IsEnabled())
}

func TestWaterfallPlotter_WritesPNG(t *testing.T) {
	t.Parallel()

	wp := NewWaterfallPlotter()
	dir := t.TempDir()
	require.NoError(t, wp.Start(dir))

	require.NoError(t, wp.WriteSpectrogram(context.Background(), testSpectrogram("sg-1")))
	assert.Equal(t, 1, wp.GetPlotCount())

	data, err := os.ReadFile(filepath.Join(dir, "c2_sg-1.png"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "\x89PNG"), "expected a PNG file")
}

func TestWaterfallPlotter_FlatAndSingleSpectrum(t *testing.T) {
	t.Parallel()

	wp := NewWaterfallPlotter()
	require.NoError(t, wp.Start(t.TempDir()))

	flat := testSpectrogram("flat")
	for _, row := range flat.Power {
		for b := range row {
			row[b] = 0
		}
	}
	assert.NoError(t, wp.WriteSpectrogram(context.Background(), flat))

	single := testSpectrogram("single")
	single.Times, single.Power = single.Times[:1], single.Power[:1]
	assert.NoError(t, wp.WriteSpectrogram(context.Background(), single))
	assert.Equal(t, 2, wp.GetPlotCount())
}

func TestWaterfallPlotter_StoppedDiscards(t *testing.T) {
	t.Parallel()

	wp := NewWaterfallPlotter()
	assert.NoError(t, wp.WriteSpectrogram(context.Background(), testSpectrogram("sg")))
	assert.Equal(t, 0, wp.GetPlotCount())
}

func TestWaterfallPlotter_EmptySpectrogram(t *testing.T) {
	t.Parallel()

	wp := NewWaterfallPlotter()
	require.NoError(t, wp.Start(t.TempDir()))
	assert.Error(t, wp.WriteSpectrogram(context.Background(), &l4windows.Spectrogram{ID: "empty"}))
	assert.Equal(t, 0, wp.GetPlotCount())
}

func TestWaterfallGrid(t *testing.T) {
	t.Parallel()

	g := newWaterfallGrid(testSpectrogram("sg"))
	c, r := g.Dims()
	assert.Equal(t, 6, c)
	assert.Equal(t, 5, r)
	assert.Equal(t, 0.25, g.X(2))
	assert.Equal(t, 32.0, g.Y(0))
	assert.Equal(t, 64.0, g.Y(4))
	assert.InDelta(t, 30.0, g.Z(0, 0), 1e-9)
	assert.InDelta(t, 0.0, g.Z(0, 1), 1e-9)
}

func TestFileSafe(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "sg-1", fileSafe("sg-1"))
	assert.Equal(t, "___etc_passwd", fileSafe("../etc/passwd"))
	assert.Equal(t, "unknown", fileSafe(""))
	assert.Len(t, fileSafe(strings.Repeat("a", 100)), 64)
}

func TestPowerDB(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want float64
	}{
		{100, 20},
		{1, 0},
		{0, powerFloorDB},
		{-1, powerFloorDB},
		{math.NaN(), powerFloorDB},
		{1e-20, powerFloorDB},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, powerDB(tt.in), 1e-9, "powerDB(%g)", tt.in)
	}
}

func TestMakePlotOutputDir(t *testing.T) {
	t.Parallel()

	dir := MakePlotOutputDir("plots", "/data/run-7.f32")
	assert.True(t, strings.HasPrefix(dir, filepath.Join("plots", "run-7")+string(filepath.Separator)), dir)

	live := MakePlotOutputDir("plots", "")
	assert.True(t, strings.HasPrefix(live, filepath.Join("plots", "live_")), live)

	assert.Equal(t, "20260102_030405", FormatTimestamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
}
