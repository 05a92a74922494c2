package l1spectra

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// SlidingWindowFFT turns a stream of interleaved time-domain samples into
// power spectrum slices. Each component is transformed independently with a
// Hann window; slice i starts at sample i*StepSize of the stream.
type SlidingWindowFFT struct {
	header Header
	fft    *fourier.FFT

	// pending holds de-interleaved samples not yet consumed, per component.
	pending [][]float64
	frame   []float64
	coeffs  []complex128
	scale   float64
	next    int64
}

// NewSlidingWindowFFT prepares an FFT front end for h.
func NewSlidingWindowFFT(h Header) (*SlidingWindowFFT, error) {
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}
	ones := make([]float64, h.SliceSize)
	for i := range ones {
		ones[i] = 1
	}
	window.Hann(ones)
	var wsum float64
	for _, w := range ones {
		wsum += w * w
	}
	return &SlidingWindowFFT{
		header:  h,
		fft:     fourier.NewFFT(h.SliceSize),
		pending: make([][]float64, h.Components),
		frame:   make([]float64, h.SliceSize),
		coeffs:  make([]complex128, h.NBins),
		scale:   1 / (wsum * h.SampleRate),
	}, nil
}

// Header returns the header the transform was built for.
func (s *SlidingWindowFFT) Header() Header { return s.header }

// Push appends interleaved samples (component-major within each frame) and
// calls emit for every complete slice. Emission stops at the first error.
func (s *SlidingWindowFFT) Push(samples []float64, emit func(Slice) error) error {
	nc := s.header.Components
	if len(samples)%nc != 0 {
		return fmt.Errorf("sample count %d is not a multiple of %d components", len(samples), nc)
	}
	for i := 0; i < len(samples); i += nc {
		for c := 0; c < nc; c++ {
			s.pending[c] = append(s.pending[c], samples[i+c])
		}
	}

	// A step longer than the slice skips the gap between slices.
	need := max(s.header.SliceSize, s.header.StepSize)
	for len(s.pending[0]) >= need {
		slice := Slice{
			Index:     s.next,
			Timestamp: s.header.Timestamp(s.next),
			Spectra:   make([]View, nc),
		}
		for c := 0; c < nc; c++ {
			slice.Spectra[c] = s.transform(s.pending[c][:s.header.SliceSize])
			s.pending[c] = s.pending[c][s.header.StepSize:]
		}
		tracef("slice %d at t=%.6fs", slice.Index, slice.Timestamp)
		s.next++
		if err := emit(slice); err != nil {
			return err
		}
	}
	return nil
}

// transform computes the one-sided power spectral density of seq.
func (s *SlidingWindowFFT) transform(seq []float64) *PowerSpectrum {
	copy(s.frame, seq)
	window.Hann(s.frame)
	s.coeffs = s.fft.Coefficients(s.coeffs, s.frame)

	power := make([]float64, s.header.NBins)
	last := len(power) - 1
	for i, c := range s.coeffs {
		re, im := real(c), imag(c)
		p := (re*re + im*im) * s.scale
		if i != 0 && !(i == last && s.header.SliceSize%2 == 0) {
			p *= 2
		}
		power[i] = p
	}
	return NewPowerSpectrum(power, s.header.BinWidth, s.header.MinFrequency)
}

// Buffered returns how many samples per component are waiting for the next
// slice.
func (s *SlidingWindowFFT) Buffered() int {
	return len(s.pending[0])
}
