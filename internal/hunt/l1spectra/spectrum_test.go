package l1spectra

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViews_AgreeOnPower(t *testing.T) {
	t.Parallel()

	coeffs := []complex128{complex(3, 4), complex(0, 2), complex(-1, 0)}
	c := NewComplexSpectrum(coeffs, 5, 100)
	polar := c.Polar()
	power := NewPowerSpectrum([]float64{25, 4, 1}, 5, 100)

	views := map[string]View{"complex": c, "polar": polar, "power": power}
	for name, v := range views {
		require.Equal(t, 3, v.Len(), name)
		assert.InDelta(t, 25, v.Power(0), 1e-9, name)
		assert.InDelta(t, 4, v.Power(1), 1e-9, name)
		assert.InDelta(t, 1, v.Power(2), 1e-9, name)
		assert.InDelta(t, 5, v.Amplitude(0), 1e-9, name)
		assert.Equal(t, 5.0, v.BinWidth(), name)
		assert.Equal(t, 100.0, v.MinFrequency(), name)
	}
	assert.InDelta(t, math.Pi/2, polar.Phase(1), 1e-12)
	assert.Equal(t, 0.0, NewPolarSpectrum([]float64{1}, nil, 1, 0).Phase(0))
}

func TestFrequencyAxis(t *testing.T) {
	t.Parallel()

	v := NewPowerSpectrum(make([]float64, 10), 2, 100)
	assert.Equal(t, 120.0, MaxFrequency(v))
	assert.Equal(t, 101.0, BinCenter(v, 0))
	assert.Equal(t, 109.0, BinCenter(v, 4))

	assert.Equal(t, 0, FindBin(v, 50), "below range clamps to first bin")
	assert.Equal(t, 0, FindBin(v, 100))
	assert.Equal(t, 4, FindBin(v, 109.9))
	assert.Equal(t, 9, FindBin(v, 500), "above range clamps to last bin")
}

func TestCopyBins(t *testing.T) {
	t.Parallel()

	v := NewPowerSpectrum([]float64{0, 1, 2, 3, 4, 5}, 10, 0)

	got := CopyBins(v, 2, 4)
	assert.Equal(t, []float64{2, 3, 4}, got.Values())
	assert.Equal(t, 20.0, got.MinFrequency())

	clamped := CopyBins(v, -5, 50)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, clamped.Values())

	empty := CopyBins(v, 4, 2)
	assert.Equal(t, 0, empty.Len())

	// The copy must not alias the source.
	got.Values()[0] = 99
	assert.Equal(t, 2.0, v.Power(2))
}

func TestPowerValues(t *testing.T) {
	t.Parallel()

	polar := NewPolarSpectrum([]float64{1, 2, 3}, nil, 1, 0)
	dst := PowerValues(nil, polar)
	assert.Equal(t, []float64{1, 4, 9}, dst)

	dst = PowerValues(dst[:0], NewPowerSpectrum([]float64{7, 8}, 1, 0))
	assert.Equal(t, []float64{7, 8}, dst)
}

func TestSlice_Validate(t *testing.T) {
	t.Parallel()

	ok := Slice{Index: 3, Spectra: []View{NewPowerSpectrum(make([]float64, 4), 1, 0)}}
	require.NoError(t, ok.Validate(4))
	require.NoError(t, ok.Validate(0))

	err := ok.Validate(5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBinCountMismatch))

	err = Slice{Index: 1}.Validate(4)
	assert.ErrorIs(t, err, ErrEmptySpectrum)

	err = Slice{Spectra: []View{NewPowerSpectrum(nil, 1, 0)}}.Validate(0)
	assert.ErrorIs(t, err, ErrEmptySpectrum)

	assert.Nil(t, ok.Component(1))
	assert.NotNil(t, ok.Component(0))
}

func TestHeader_Validate(t *testing.T) {
	t.Parallel()

	_, err := NewHeader(0, 100, 50, 1)
	assert.Error(t, err)
	_, err = NewHeader(1000, 0, 50, 1)
	assert.Error(t, err)
	_, err = NewHeader(1000, 100, 0, 1)
	assert.Error(t, err)
	_, err = NewHeader(1000, 100, 50, 0)
	assert.Error(t, err)

	h, err := NewHeader(1000, 100, 50, 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, h.TimeStep(), 1e-12)
	assert.InDelta(t, 0.1, h.SliceLength(), 1e-12)
	assert.InDelta(t, -5, h.MinFrequency, 1e-12)
	assert.InDelta(t, 505, h.MaxFrequency(), 1e-9)
	assert.Equal(t, 10, h.FindBin(100), "bins are centred on multiples of the bin width")
	assert.Equal(t, 10, h.FindBin(104.9))
	assert.Equal(t, 11, h.FindBin(105))
	assert.InDelta(t, 0.15, h.Timestamp(3), 1e-12)
}

func TestSetLogWriters(t *testing.T) {
	var buf bytes.Buffer
	SetLogWriters(nil, &buf, nil)
	defer SetLogWriters(nil, nil, nil)

	h, err := NewHeader(1000, 100, 50, 1)
	require.NoError(t, err)
	_, err = NewMaskFromHeader(h, nil, 1)
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.Contains(out, "[l1spectra]"), out)
	assert.True(t, strings.Contains(out, "50 of 51 bins active"), out)

	var ops bytes.Buffer
	SetLogWriters(&ops, nil, nil)
	_, err = NewMaskFromHeader(h, []FrequencyRange{{Low: 0, High: 1000}}, 0)
	require.NoError(t, err)
	assert.Contains(t, ops.String(), "no active bins of 51")

	// Disabled streams must not panic.
	SetLogWriters(nil, nil, nil)
	opsf("dropped %d", 1)
	tracef("dropped %d", 2)
}
