package l3groups

import (
	"fmt"

	"github.com/banshee-data/cyclotron.report/internal/config"
)

// Config holds the grouping parameters.
type Config struct {
	// MinimumGroupSize: a candidate with this many points or fewer is
	// discarded once it can no longer be extended.
	MinimumGroupSize int
	// MarginLow and MarginHigh widen the previous slice's bin range
	// [min-MarginLow, max+MarginHigh] when matching a new slice.
	MarginLow  int
	MarginHigh int
	// MarginSameSlice widens the range symmetrically within one slice.
	MarginSameSlice int
	// MinimumSpan is the smallest MaxSlice-MinSlice a drained candidate
	// needs to become a track.
	MinimumSpan int64
	// Control swaps MarginLow and MarginHigh, for downward-drifting
	// control samples.
	Control bool
}

// DefaultConfig returns a Config loaded from the canonical tuning defaults
// file. Panics if the file cannot be found.
func DefaultConfig() Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MinimumGroupSize: cfg.GetMinimumGroupSize(),
		MarginLow:        cfg.GetGroupBinsMarginLow(),
		MarginHigh:       cfg.GetGroupBinsMarginHigh(),
		MarginSameSlice:  cfg.GetGroupBinsMarginSameTime(),
		MinimumSpan:      int64(cfg.GetMinimumTrackSpan()),
		Control:          cfg.GetControlMode(),
	}
}

// Validate rejects negative sizes and margins.
func (c Config) Validate() error {
	if c.MinimumGroupSize < 0 {
		return fmt.Errorf("minimum group size must be non-negative, got %d", c.MinimumGroupSize)
	}
	if c.MarginLow < 0 || c.MarginHigh < 0 || c.MarginSameSlice < 0 {
		return fmt.Errorf("bin margins must be non-negative, got low=%d high=%d same=%d",
			c.MarginLow, c.MarginHigh, c.MarginSameSlice)
	}
	if c.MinimumSpan < 0 {
		return fmt.Errorf("minimum span must be non-negative, got %d", c.MinimumSpan)
	}
	return nil
}

// margins returns the effective (low, high) previous-slice margins.
func (c Config) margins() (low, high int) {
	if c.Control {
		return c.MarginHigh, c.MarginLow
	}
	return c.MarginLow, c.MarginHigh
}
