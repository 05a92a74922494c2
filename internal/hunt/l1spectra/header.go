package l1spectra

import (
	"errors"
	"fmt"
)

// Header describes an acquisition and the slicing applied to it. A new
// header resets every stateful layer above L1.
type Header struct {
	SampleRate   float64 // Hz
	SliceSize    int     // samples per FFT slice
	StepSize     int     // samples between successive slice starts
	NBins        int     // bins per spectrum
	BinWidth     float64 // Hz per bin
	MinFrequency float64 // lower edge of bin 0, Hz
	NSlices      int64   // expected slice count; 0 when streaming without bound
	Components   int     // independent spectra per slice
}

// NewHeader derives the bin layout of a real-input FFT of sliceSize samples
// taken every stepSize samples.
func NewHeader(sampleRate float64, sliceSize, stepSize, components int) (Header, error) {
	h := Header{
		SampleRate: sampleRate,
		SliceSize:  sliceSize,
		StepSize:   stepSize,
		Components: components,
	}
	if sliceSize > 0 {
		h.NBins = sliceSize/2 + 1
		h.BinWidth = sampleRate / float64(sliceSize)
		// Bin k of a real FFT is centred on k*BinWidth.
		h.MinFrequency = -h.BinWidth / 2
	}
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// Validate checks the header for internal consistency.
func (h Header) Validate() error {
	if h.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %f", h.SampleRate)
	}
	if h.SliceSize <= 0 {
		return fmt.Errorf("slice size must be positive, got %d", h.SliceSize)
	}
	if h.StepSize <= 0 {
		return fmt.Errorf("step size must be positive, got %d", h.StepSize)
	}
	if h.NBins <= 0 {
		return fmt.Errorf("bin count must be positive, got %d", h.NBins)
	}
	if h.BinWidth <= 0 {
		return fmt.Errorf("bin width must be positive, got %f", h.BinWidth)
	}
	if h.Components <= 0 {
		return fmt.Errorf("component count must be positive, got %d", h.Components)
	}
	return nil
}

// TimeStep returns the time between successive slices in seconds.
func (h Header) TimeStep() float64 {
	return float64(h.StepSize) / h.SampleRate
}

// SliceLength returns the duration covered by one slice in seconds.
func (h Header) SliceLength() float64 {
	return float64(h.SliceSize) / h.SampleRate
}

// MaxFrequency returns the upper edge of the last bin.
func (h Header) MaxFrequency() float64 {
	return h.MinFrequency + h.BinWidth*float64(h.NBins)
}

// Timestamp returns the start time of slice index.
func (h Header) Timestamp(index int64) float64 {
	return float64(index) * h.TimeStep()
}

// FindBin returns the bin containing freq, clamped to [0, NBins).
func (h Header) FindBin(freq float64) int {
	return findBin(freq, h.MinFrequency, h.BinWidth, h.NBins)
}

// FrequencyRange is a closed interval in Hz.
type FrequencyRange struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// ErrInvertedRange is returned for a frequency range whose low bound exceeds
// its high bound.
var ErrInvertedRange = errors.New("l1spectra: inverted frequency range")

// Validate rejects inverted ranges.
func (r FrequencyRange) Validate() error {
	if r.Low > r.High {
		return fmt.Errorf("%w: [%g, %g]", ErrInvertedRange, r.Low, r.High)
	}
	return nil
}

// NewMaskFromHeader builds the bin-exclusion mask for h. Every cut range
// removes bins FindBin(Low) through FindBin(High) inclusive, and bins below
// firstBinToUse are always inactive. Cuts lying wholly outside the band
// remove nothing.
func NewMaskFromHeader(h Header, cuts []FrequencyRange, firstBinToUse int) (Mask, error) {
	if err := h.Validate(); err != nil {
		return Mask{}, err
	}
	m := FullMask(h.NBins).CutBelow(firstBinToUse)
	for _, c := range cuts {
		if err := c.Validate(); err != nil {
			return Mask{}, err
		}
		if c.High < h.MinFrequency || c.Low >= h.MaxFrequency() {
			diagf("cut range [%g, %g] Hz is outside the band, ignored", c.Low, c.High)
			continue
		}
		lo := h.FindBin(c.Low)
		hi := h.FindBin(c.High)
		m = m.Cut(lo, hi-lo+1)
	}
	if m.Size() == 0 {
		opsf("mask leaves no active bins of %d, no peaks will be found", m.ArraySize())
	}
	diagf("mask built: %d of %d bins active, %d cut ranges, first bin %d",
		m.Size(), m.ArraySize(), len(cuts), firstBinToUse)
	return m, nil
}
