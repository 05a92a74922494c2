package pipeline

import (
	"fmt"

	"github.com/banshee-data/cyclotron.report/internal/config"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l1spectra"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l2peaks"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l3groups"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l4windows"
	"github.com/banshee-data/cyclotron.report/internal/monitoring"
)

// Config holds the layer parameters and the optional collaborators of a
// Pipeline.
type Config struct {
	Peaks    l2peaks.Config
	Baseline l2peaks.BaselineConfig
	Groups   l3groups.Config
	Windows  l4windows.Config

	// CutRanges are interference bands removed from the mask of every
	// acquisition.
	CutRanges []l1spectra.FrequencyRange

	// HistoryDepth is the number of recent slices replayed into a new
	// window. Zero disables replay.
	HistoryDepth int

	TrackSinks       []TrackSink
	SpectrogramSinks []SpectrogramSink
	Metrics          *monitoring.Metrics // Optional
}

// DefaultConfig returns a Config loaded from the canonical tuning defaults
// file, with no sinks. Panics if the file cannot be found.
func DefaultConfig() Config {
	cfg, err := ConfigFromTuning(config.MustLoadDefaultConfig())
	if err != nil {
		panic(err)
	}
	return cfg
}

// ConfigFromTuning builds the layer parameters from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) (Config, error) {
	peaks, err := l2peaks.ConfigFromTuning(cfg)
	if err != nil {
		return Config{}, fmt.Errorf("peaks: %w", err)
	}
	windows, err := l4windows.ConfigFromTuning(cfg)
	if err != nil {
		return Config{}, fmt.Errorf("windows: %w", err)
	}
	c := Config{
		Peaks:        peaks,
		Baseline:     l2peaks.BaselineConfigFromTuning(cfg),
		Groups:       l3groups.ConfigFromTuning(cfg),
		Windows:      windows,
		HistoryDepth: cfg.GetHistoryDepth(),
	}
	for _, r := range cfg.GetCutRanges() {
		c.CutRanges = append(c.CutRanges, l1spectra.FrequencyRange{Low: r.Low, High: r.High})
	}
	return c, c.Validate()
}

// Validate checks every layer configuration.
func (c Config) Validate() error {
	if err := c.Peaks.Validate(); err != nil {
		return fmt.Errorf("peaks: %w", err)
	}
	if err := c.Groups.Validate(); err != nil {
		return fmt.Errorf("groups: %w", err)
	}
	if err := c.Windows.Validate(); err != nil {
		return fmt.Errorf("windows: %w", err)
	}
	for i, r := range c.CutRanges {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("cut range %d: %w", i, err)
		}
	}
	if c.HistoryDepth < 0 {
		return fmt.Errorf("history depth must be non-negative, got %d", c.HistoryDepth)
	}
	if c.Baseline.Learned && (c.Baseline.UpdateFraction <= 0 || c.Baseline.UpdateFraction > 1) {
		return fmt.Errorf("baseline update fraction must be in (0, 1], got %g", c.Baseline.UpdateFraction)
	}
	return nil
}
