package l2peaks

import (
	"testing"

	"github.com/banshee-data/cyclotron.report/internal/config"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l1spectra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackgroundBaseline_WarmupIsRunningMean(t *testing.T) {
	t.Parallel()

	b := NewBackgroundBaseline(BaselineConfig{Learned: true, UpdateFraction: 0.01, WarmupSlices: 3})
	assert.Nil(t, b.Current(), "no baseline before any slice")

	b.Update(spectrum(2, 4), nil)
	assert.False(t, b.Settled())
	assert.Equal(t, 1, b.Seen())

	b.Update(spectrum(4, 8), nil)
	b.Update(spectrum(6, 12), nil)
	require.True(t, b.Settled())
	require.NotNil(t, b.Current())

	assert.InDelta(t, 4.0, b.Level(0), 1e-12)
	assert.InDelta(t, 8.0, b.Level(1), 1e-12)
	assert.Equal(t, 2, b.Len())
	assert.Greater(t, b.Spread(1), 0.0)
}

func TestBackgroundBaseline_SettledExcludesPeaks(t *testing.T) {
	t.Parallel()

	b := NewBackgroundBaseline(BaselineConfig{Learned: true, UpdateFraction: 0.5, WarmupSlices: 1, ExcludePeaks: true})
	b.Update(spectrum(1, 1, 1), nil)
	require.True(t, b.Settled())

	b.Update(spectrum(3, 100, 3), PeakSet{{Bin: 1}})
	assert.InDelta(t, 2.0, b.Level(0), 1e-12)
	assert.InDelta(t, 1.0, b.Level(1), 1e-12, "peak bin is frozen")
	assert.InDelta(t, 2.0, b.Level(2), 1e-12)
}

func TestBackgroundBaseline_IncludesPeaksWhenConfigured(t *testing.T) {
	t.Parallel()

	b := NewBackgroundBaseline(BaselineConfig{Learned: true, UpdateFraction: 0.5, WarmupSlices: 1})
	b.Update(spectrum(1, 1), nil)
	b.Update(spectrum(1, 9), PeakSet{{Bin: 1}})
	assert.InDelta(t, 5.0, b.Level(1), 1e-12)
}

func TestBackgroundBaseline_BinCountChangeRelearns(t *testing.T) {
	t.Parallel()

	b := NewBackgroundBaseline(BaselineConfig{Learned: true, UpdateFraction: 0.1, WarmupSlices: 2})
	b.Update(spectrum(1, 1), nil)
	b.Update(spectrum(1, 1), nil)
	require.True(t, b.Settled())

	b.Update(spectrum(5, 5, 5), nil)
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 1, b.Seen())
	assert.False(t, b.Settled())

	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Nil(t, b.Current())
}

func TestBackgroundBaseline_DrivesDiscriminator(t *testing.T) {
	t.Parallel()

	// A bin with a permanently high floor stops being a peak once learned.
	b := NewBackgroundBaseline(BaselineConfig{Learned: true, UpdateFraction: 0.2, WarmupSlices: 4, ExcludePeaks: true})
	d := snrPower(3)
	values := flat(16, 1)
	values[5] = 20
	v := l1spectra.NewPowerSpectrum(values, 1, 0)
	mask := l1spectra.FullMask(16)

	before := d.Discriminate(v, mask, b.Current())
	assert.Contains(t, before.Bins(), 5)

	for i := 0; i < 4; i++ {
		b.Update(v, d.Discriminate(v, mask, b.Current()))
	}
	after := d.Discriminate(v, mask, b.Current())
	assert.NotContains(t, after.Bins(), 5)
}

func TestBaselineConfigFromTuning(t *testing.T) {
	t.Parallel()

	cfg := config.EmptyTuningConfig()
	cfg.BaselineMode = config.PtrString(config.BaselineLearned)
	bc := BaselineConfigFromTuning(cfg)
	assert.True(t, bc.Learned)
	assert.Equal(t, 0.05, bc.UpdateFraction)
	assert.Equal(t, 20, bc.WarmupSlices)
	assert.True(t, bc.ExcludePeaks)

	assert.False(t, BaselineConfigFromTuning(config.EmptyTuningConfig()).Learned)
}
