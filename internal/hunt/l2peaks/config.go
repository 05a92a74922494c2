package l2peaks

import (
	"fmt"
	"math"

	"github.com/banshee-data/cyclotron.report/internal/config"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l1spectra"
)

// Policy selects how the per-bin threshold is derived from the baseline.
type Policy int

const (
	// PolicySNRPower: threshold = multiplier * baseline, in power.
	PolicySNRPower Policy = iota
	// PolicySNRAmplitude: threshold = sqrt(multiplier) * baseline amplitude.
	PolicySNRAmplitude
	// PolicySigma: threshold = sigmaThreshold * sigma + baseline.
	PolicySigma
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case PolicySNRPower:
		return config.PolicySNRPower
	case PolicySNRAmplitude:
		return config.PolicySNRAmplitude
	case PolicySigma:
		return config.PolicySigma
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a configuration name to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case config.PolicySNRPower:
		return PolicySNRPower, nil
	case config.PolicySNRAmplitude:
		return PolicySNRAmplitude, nil
	case config.PolicySigma:
		return PolicySigma, nil
	default:
		return 0, fmt.Errorf("unknown threshold policy %q", name)
	}
}

// Config holds the discriminator parameters.
type Config struct {
	Policy              Policy
	ThresholdMultiplier float64 // SNR policies
	SigmaThreshold      float64 // sigma policy
	FirstBinToUse       int     // bins below are never peaks

	// SearchRange optionally limits the search to a frequency band. It is
	// resolved against each spectrum's own axis and wins over SearchBins.
	SearchRange *l1spectra.FrequencyRange
	// SearchBins optionally limits the search to a bin range.
	SearchBins *BinRange
}

// BinRange is an inclusive bin range. A negative Last means the last bin.
type BinRange struct {
	First int
	Last  int
}

// Validate rejects negative or inverted ranges.
func (r BinRange) Validate() error {
	if r.First < 0 {
		return fmt.Errorf("search min bin must be non-negative, got %d", r.First)
	}
	if r.Last >= 0 && r.Last < r.First {
		return fmt.Errorf("search max bin %d is below min bin %d", r.Last, r.First)
	}
	return nil
}

// BaselineConfig holds the learned-baseline parameters.
type BaselineConfig struct {
	Learned        bool    // false: mean power over active bins
	UpdateFraction float64 // EMA alpha once settled
	WarmupSlices   int     // slices averaged before the baseline is trusted
	ExcludePeaks   bool    // skip peak bins when updating a settled baseline
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

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) (Config, error) {
	policy, err := ParsePolicy(cfg.GetThresholdPolicy())
	if err != nil {
		return Config{}, err
	}
	c := Config{
		Policy:              policy,
		ThresholdMultiplier: cfg.GetThresholdMultiplier(),
		SigmaThreshold:      cfg.GetSigmaThreshold(),
		FirstBinToUse:       cfg.GetFirstBinToUse(),
	}
	if lo, hi, ok := cfg.GetPeakFrequencyRange(); ok {
		if hi < 0 {
			hi = math.Inf(1)
		}
		c.SearchRange = &l1spectra.FrequencyRange{Low: lo, High: hi}
	} else if lo, hi, ok := cfg.GetPeakBinRange(); ok {
		c.SearchBins = &BinRange{First: lo, Last: hi}
	}
	return c, c.Validate()
}

// BaselineConfigFromTuning builds a BaselineConfig from a loaded TuningConfig.
func BaselineConfigFromTuning(cfg *config.TuningConfig) BaselineConfig {
	return BaselineConfig{
		Learned:        cfg.GetBaselineMode() == config.BaselineLearned,
		UpdateFraction: cfg.GetBaselineUpdateFraction(),
		WarmupSlices:   cfg.GetBaselineWarmupSlices(),
		ExcludePeaks:   cfg.GetBaselineExcludePeaks(),
	}
}

// Validate checks the parameters for the selected policy.
func (c Config) Validate() error {
	switch c.Policy {
	case PolicySNRPower, PolicySNRAmplitude:
		if c.ThresholdMultiplier <= 0 {
			return fmt.Errorf("threshold multiplier must be positive, got %f", c.ThresholdMultiplier)
		}
	case PolicySigma:
		if c.SigmaThreshold < 0 {
			return fmt.Errorf("sigma threshold must be non-negative, got %f", c.SigmaThreshold)
		}
	default:
		return fmt.Errorf("unknown threshold policy %v", c.Policy)
	}
	if c.FirstBinToUse < 0 {
		return fmt.Errorf("first bin to use must be non-negative, got %d", c.FirstBinToUse)
	}
	if c.SearchRange != nil {
		if err := c.SearchRange.Validate(); err != nil {
			return err
		}
	}
	if c.SearchBins != nil {
		if err := c.SearchBins.Validate(); err != nil {
			return err
		}
	}
	return nil
}
