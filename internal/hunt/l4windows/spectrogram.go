package l4windows

import (
	"sort"

	"github.com/banshee-data/cyclotron.report/internal/hunt/l1spectra"
)

// Spectrogram is a finalised collection window: the spectra buffered around
// one track, restricted to a fixed bin range and ordered by timestamp.
type Spectrogram struct {
	ID        string
	TrackID   string
	Component int

	TrackStart  float64 // s
	TrackEnd    float64 // s
	WindowStart float64 // TrackStart - lead time
	WindowEnd   float64 // TrackEnd + trail time
	DeltaT      float64 // s between slices

	FirstBin     int     // source bin of column 0
	BinWidth     float64 // Hz
	MinFrequency float64 // Hz, lower edge of column 0

	Times []float64   // ascending
	Power [][]float64 // Power[i] was recorded at Times[i]
}

// Len returns the number of buffered spectra.
func (s *Spectrogram) Len() int { return len(s.Times) }

// NBins returns the width of each buffered spectrum.
func (s *Spectrogram) NBins() int {
	if len(s.Power) == 0 {
		return 0
	}
	return len(s.Power[0])
}

// MaxFrequency returns the upper edge of the last column.
func (s *Spectrogram) MaxFrequency() float64 {
	return s.MinFrequency + s.BinWidth*float64(s.NBins())
}

// At returns the spectrum recorded at timestamp ts.
func (s *Spectrogram) At(ts float64) ([]float64, bool) {
	i := sort.SearchFloat64s(s.Times, ts)
	if i < len(s.Times) && s.Times[i] == ts {
		return s.Power[i], true
	}
	return nil, false
}

// Spectrum returns row i as a spectrum view.
func (s *Spectrogram) Spectrum(i int) *l1spectra.PowerSpectrum {
	return l1spectra.NewPowerSpectrum(s.Power[i], s.BinWidth, s.MinFrequency)
}
