package l4windows

import (
	"fmt"
	"math"

	"github.com/banshee-data/cyclotron.report/internal/config"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l1spectra"
)

// Config holds the collection window parameters.
type Config struct {
	// LeadTime and TrailTime extend each window before the track start and
	// after the track end, in seconds.
	LeadTime  float64
	TrailTime float64

	// FrequencyRange restricts buffered spectra to a band. When nil, MinBin
	// and MaxBin apply instead (MaxBin < 0 means the last bin).
	FrequencyRange *l1spectra.FrequencyRange
	MinBin         int
	MaxBin         int

	// UseTrackFreqs gives each window its own band around the track:
	// [MinFrequency-LeadFreq, MaxFrequency+TrailFreq], clipped to
	// FrequencyRange when one is set.
	UseTrackFreqs bool
	LeadFreq      float64
	TrailFreq     float64
}

// DefaultConfig returns a Config loaded from the canonical tuning defaults
// file. Panics if the file cannot be found.
func DefaultConfig() Config {
	cfg, err := ConfigFromTuning(config.MustLoadDefaultConfig())
	if err != nil {
		panic(err)
	}
	return cfg
}

// ConfigFromTuning builds a Config from a loaded TuningConfig. A frequency
// range takes precedence over a bin range.
func ConfigFromTuning(cfg *config.TuningConfig) (Config, error) {
	c := Config{
		LeadTime:      cfg.GetLeadTime(),
		TrailTime:     cfg.GetTrailTime(),
		MinBin:        0,
		MaxBin:        -1,
		UseTrackFreqs: cfg.GetUseTrackFreqs(),
		LeadFreq:      cfg.GetLeadFreq(),
		TrailFreq:     cfg.GetTrailFreq(),
	}
	if lo, hi, ok := cfg.GetFrequencyRange(); ok {
		if hi < 0 {
			hi = math.Inf(1)
		}
		c.FrequencyRange = &l1spectra.FrequencyRange{Low: lo, High: hi}
	} else if lo, hi, ok := cfg.GetBinRange(); ok {
		c.MinBin, c.MaxBin = lo, hi
	}
	return c, c.Validate()
}

// Validate rejects negative extensions and degenerate ranges.
func (c Config) Validate() error {
	if c.LeadTime < 0 || c.TrailTime < 0 {
		return fmt.Errorf("lead and trail time must be non-negative, got %g and %g", c.LeadTime, c.TrailTime)
	}
	if c.LeadFreq < 0 || c.TrailFreq < 0 {
		return fmt.Errorf("lead and trail frequency must be non-negative, got %g and %g", c.LeadFreq, c.TrailFreq)
	}
	if c.FrequencyRange != nil {
		return c.FrequencyRange.Validate()
	}
	if c.MinBin < 0 {
		return fmt.Errorf("min bin must be non-negative, got %d", c.MinBin)
	}
	if c.MaxBin >= 0 && c.MaxBin < c.MinBin {
		return fmt.Errorf("max bin %d is below min bin %d", c.MaxBin, c.MinBin)
	}
	return nil
}

// binRange resolves the configured band against v. The result is clamped
// to v's bins.
func (c Config) binRange(v l1spectra.View) (first, last int) {
	if c.FrequencyRange != nil {
		return l1spectra.FindBin(v, c.FrequencyRange.Low), l1spectra.FindBin(v, c.FrequencyRange.High)
	}
	first, last = c.MinBin, c.MaxBin
	if last < 0 || last >= v.Len() {
		last = v.Len() - 1
	}
	return min(first, v.Len()-1), last
}
