package l1spectra

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func argmax(v View, from int) int {
	best := from
	for i := from; i < v.Len(); i++ {
		if v.Power(i) > v.Power(best) {
			best = i
		}
	}
	return best
}

func TestSlidingWindowFFT_ToneLandsInBin(t *testing.T) {
	t.Parallel()

	// 1024 Hz sample rate, 256-sample slices: 4 Hz bins.
	h, err := NewHeader(1024, 256, 128, 1)
	require.NoError(t, err)

	syn := NewSynthesizer(h.SampleRate, 1, 0, 1)
	syn.AddChirp(0, Chirp{Start: 0, Duration: 10, StartFrequency: 102, Amplitude: 1})

	fft, err := NewSlidingWindowFFT(h)
	require.NoError(t, err)

	var slices []Slice
	err = fft.Push(syn.Next(1024), func(s Slice) error {
		slices = append(slices, s)
		return nil
	})
	require.NoError(t, err)

	// (1024-256)/128 + 1 complete slices.
	require.Len(t, slices, 7)
	for i, s := range slices {
		assert.Equal(t, int64(i), s.Index)
		assert.InDelta(t, float64(i)*0.125, s.Timestamp, 1e-12)
		require.Len(t, s.Spectra, 1)
		assert.Equal(t, h.NBins, s.Spectra[0].Len())
		// 102 Hz / 4 Hz = bin 25.5; the Hann window splits it between 25 and 26.
		peak := argmax(s.Spectra[0], 1)
		assert.Contains(t, []int{25, 26}, peak, "slice %d", i)
	}
	assert.Equal(t, 128, fft.Buffered())
}

func TestSlidingWindowFFT_ChirpDrifts(t *testing.T) {
	t.Parallel()

	h, err := NewHeader(1024, 256, 256, 1)
	require.NoError(t, err)

	syn := NewSynthesizer(h.SampleRate, 1, 0, 7)
	// 4 Hz bins, 0.25 s slices: 16 Hz/s moves one bin per slice.
	syn.AddChirp(0, Chirp{Start: 0, Duration: 4, StartFrequency: 200, Slope: 16, Amplitude: 1})

	fft, err := NewSlidingWindowFFT(h)
	require.NoError(t, err)

	var peaks []int
	require.NoError(t, fft.Push(syn.Next(4096), func(s Slice) error {
		peaks = append(peaks, argmax(s.Spectra[0], 1))
		return nil
	}))
	require.Len(t, peaks, 16)
	assert.Greater(t, peaks[len(peaks)-1], peaks[0])
}

func TestSlidingWindowFFT_Components(t *testing.T) {
	t.Parallel()

	h, err := NewHeader(512, 64, 64, 2)
	require.NoError(t, err)
	fft, err := NewSlidingWindowFFT(h)
	require.NoError(t, err)

	err = fft.Push(make([]float64, 3), func(Slice) error { return nil })
	assert.Error(t, err, "odd sample count for two components")

	var got []Slice
	require.NoError(t, fft.Push(make([]float64, 2*64), func(s Slice) error {
		got = append(got, s)
		return nil
	}))
	require.Len(t, got, 1)
	assert.Len(t, got[0].Spectra, 2)
}

func TestSlidingWindowFFT_EmitErrorStops(t *testing.T) {
	t.Parallel()

	h, err := NewHeader(512, 64, 32, 1)
	require.NoError(t, err)
	fft, err := NewSlidingWindowFFT(h)
	require.NoError(t, err)

	boom := errors.New("boom")
	calls := 0
	err = fft.Push(make([]float64, 256), func(Slice) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestNewSlidingWindowFFT_InvalidHeader(t *testing.T) {
	t.Parallel()

	_, err := NewSlidingWindowFFT(Header{})
	assert.Error(t, err)
}

func TestSlidingWindowFFT_StepLongerThanSlice(t *testing.T) {
	t.Parallel()

	h, err := NewHeader(1000, 64, 100, 1)
	require.NoError(t, err)
	fft, err := NewSlidingWindowFFT(h)
	require.NoError(t, err)

	var got []Slice
	collect := func(s Slice) error {
		got = append(got, s)
		return nil
	}

	require.NotPanics(t, func() {
		require.NoError(t, fft.Push(make([]float64, 80), collect))
	})
	assert.Empty(t, got, "a slice waits for a full step")
	assert.Equal(t, 80, fft.Buffered())

	// Samples 100..163 carry energy; the gap before them is skipped.
	samples := make([]float64, 170)
	for i := 20; i < 84; i++ {
		samples[i] = 1
	}
	require.NoError(t, fft.Push(samples, collect))
	require.Len(t, got, 2)
	assert.Equal(t, int64(0), got[0].Index)
	assert.Equal(t, int64(1), got[1].Index)
	assert.InDelta(t, 0.1, got[1].Timestamp, 1e-12)
	assert.Zero(t, got[0].Spectra[0].Power(0))
	assert.Greater(t, got[1].Spectra[0].Power(0), 0.0)
	assert.Equal(t, 50, fft.Buffered())
}
