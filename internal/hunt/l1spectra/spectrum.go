package l1spectra

import (
	"errors"
	"math"
	"math/cmplx"
)

// ErrEmptySpectrum is returned when a slice carries a spectrum with no bins.
var ErrEmptySpectrum = errors.New("l1spectra: empty spectrum")

// ErrBinCountMismatch is returned when a spectrum does not have the bin count
// announced by the current header.
var ErrBinCountMismatch = errors.New("l1spectra: bin count mismatch")

// View is the read-only interface every spectrum representation exposes to
// the layers above. Views are shared between consumers without copying and
// must not be mutated once published.
type View interface {
	// Len returns the number of frequency bins.
	Len() int
	// Power returns the real power value of bin i.
	Power(i int) float64
	// Amplitude returns the magnitude of bin i (sqrt of power).
	Amplitude(i int) float64
	// BinWidth returns the width of one bin in Hz.
	BinWidth() float64
	// MinFrequency returns the lower edge of bin 0 in Hz.
	MinFrequency() float64
}

// MaxFrequency returns the upper edge of the last bin of v.
func MaxFrequency(v View) float64 {
	return v.MinFrequency() + v.BinWidth()*float64(v.Len())
}

// BinCenter returns the centre frequency of bin in v.
func BinCenter(v View, bin int) float64 {
	return v.MinFrequency() + v.BinWidth()*(float64(bin)+0.5)
}

// FindBin returns the bin of v containing freq, clamped to [0, Len).
func FindBin(v View, freq float64) int {
	return findBin(freq, v.MinFrequency(), v.BinWidth(), v.Len())
}

func findBin(freq, minFreq, binWidth float64, n int) int {
	if n <= 0 || binWidth <= 0 {
		return 0
	}
	x := math.Floor((freq - minFreq) / binWidth)
	switch {
	case x >= float64(n):
		return n - 1
	case x > 0:
		return int(x)
	default:
		return 0
	}
}

// PowerValues copies every power value of v into dst, growing it as needed.
func PowerValues(dst []float64, v View) []float64 {
	n := v.Len()
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	if ps, ok := v.(*PowerSpectrum); ok {
		copy(dst, ps.values)
		return dst
	}
	for i := range dst {
		dst[i] = v.Power(i)
	}
	return dst
}

// PowerSpectrum holds real power values, one per bin.
type PowerSpectrum struct {
	values   []float64
	binWidth float64
	minFreq  float64
}

// NewPowerSpectrum wraps values without copying. The caller hands over
// ownership of the slice.
func NewPowerSpectrum(values []float64, binWidth, minFreq float64) *PowerSpectrum {
	return &PowerSpectrum{values: values, binWidth: binWidth, minFreq: minFreq}
}

func (p *PowerSpectrum) Len() int                { return len(p.values) }
func (p *PowerSpectrum) Power(i int) float64     { return p.values[i] }
func (p *PowerSpectrum) Amplitude(i int) float64 { return math.Sqrt(p.values[i]) }
func (p *PowerSpectrum) BinWidth() float64       { return p.binWidth }
func (p *PowerSpectrum) MinFrequency() float64   { return p.minFreq }

// Values exposes the backing slice. Callers must treat it as read-only.
func (p *PowerSpectrum) Values() []float64 { return p.values }

// PolarSpectrum holds magnitude and phase per bin.
type PolarSpectrum struct {
	amplitudes []float64
	phases     []float64
	binWidth   float64
	minFreq    float64
}

// NewPolarSpectrum wraps amplitudes and phases without copying. phases may be
// nil when only magnitudes are known.
func NewPolarSpectrum(amplitudes, phases []float64, binWidth, minFreq float64) *PolarSpectrum {
	return &PolarSpectrum{amplitudes: amplitudes, phases: phases, binWidth: binWidth, minFreq: minFreq}
}

func (p *PolarSpectrum) Len() int                { return len(p.amplitudes) }
func (p *PolarSpectrum) Power(i int) float64     { return p.amplitudes[i] * p.amplitudes[i] }
func (p *PolarSpectrum) Amplitude(i int) float64 { return p.amplitudes[i] }
func (p *PolarSpectrum) BinWidth() float64       { return p.binWidth }
func (p *PolarSpectrum) MinFrequency() float64   { return p.minFreq }

// Phase returns the phase of bin i in radians, or 0 if phases were not kept.
func (p *PolarSpectrum) Phase(i int) float64 {
	if p.phases == nil {
		return 0
	}
	return p.phases[i]
}

// ComplexSpectrum holds rectangular FFT coefficients.
type ComplexSpectrum struct {
	coeffs   []complex128
	binWidth float64
	minFreq  float64
}

// NewComplexSpectrum wraps coeffs without copying.
func NewComplexSpectrum(coeffs []complex128, binWidth, minFreq float64) *ComplexSpectrum {
	return &ComplexSpectrum{coeffs: coeffs, binWidth: binWidth, minFreq: minFreq}
}

func (c *ComplexSpectrum) Len() int { return len(c.coeffs) }

func (c *ComplexSpectrum) Power(i int) float64 {
	re, im := real(c.coeffs[i]), imag(c.coeffs[i])
	return re*re + im*im
}

func (c *ComplexSpectrum) Amplitude(i int) float64 { return cmplx.Abs(c.coeffs[i]) }
func (c *ComplexSpectrum) BinWidth() float64       { return c.binWidth }
func (c *ComplexSpectrum) MinFrequency() float64   { return c.minFreq }

// Coefficient returns the raw coefficient of bin i.
func (c *ComplexSpectrum) Coefficient(i int) complex128 { return c.coeffs[i] }

// Polar converts the spectrum to magnitude/phase form.
func (c *ComplexSpectrum) Polar() *PolarSpectrum {
	amps := make([]float64, len(c.coeffs))
	phases := make([]float64, len(c.coeffs))
	for i, v := range c.coeffs {
		amps[i], phases[i] = cmplx.Polar(v)
	}
	return NewPolarSpectrum(amps, phases, c.binWidth, c.minFreq)
}

// CopyBins returns a power spectrum holding bins [first, last] of v. The
// frequency axis is shifted so bin 0 of the copy sits at bin first of v.
// Out-of-range bounds are clamped.
func CopyBins(v View, first, last int) *PowerSpectrum {
	n := v.Len()
	if first < 0 {
		first = 0
	}
	if last >= n {
		last = n - 1
	}
	if last < first {
		return NewPowerSpectrum(nil, v.BinWidth(), v.MinFrequency())
	}
	out := make([]float64, last-first+1)
	for i := range out {
		out[i] = v.Power(first + i)
	}
	return NewPowerSpectrum(out, v.BinWidth(), v.MinFrequency()+float64(first)*v.BinWidth())
}
