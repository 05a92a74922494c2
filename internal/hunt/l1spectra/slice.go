package l1spectra

import "fmt"

// Slice is one time step of the spectrogram stream: a spectrum per component
// sharing a slice index and timestamp.
type Slice struct {
	Index     int64
	Timestamp float64
	Spectra   []View
}

// Validate checks that every component carries a non-empty spectrum of
// nBins bins. nBins <= 0 skips the bin count check.
func (s Slice) Validate(nBins int) error {
	if len(s.Spectra) == 0 {
		return fmt.Errorf("slice %d: %w", s.Index, ErrEmptySpectrum)
	}
	for c, v := range s.Spectra {
		if v == nil || v.Len() == 0 {
			return fmt.Errorf("slice %d component %d: %w", s.Index, c, ErrEmptySpectrum)
		}
		if nBins > 0 && v.Len() != nBins {
			return fmt.Errorf("slice %d component %d: %w: got %d bins, header has %d",
				s.Index, c, ErrBinCountMismatch, v.Len(), nBins)
		}
	}
	return nil
}

// Component returns the spectrum of component c, or nil if absent.
func (s Slice) Component(c int) View {
	if c < 0 || c >= len(s.Spectra) {
		return nil
	}
	return s.Spectra[c]
}
