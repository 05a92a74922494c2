package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Threshold policy names accepted by threshold_policy.
const (
	PolicySNRPower     = "snr-power"
	PolicySNRAmplitude = "snr-amplitude"
	PolicySigma        = "sigma"
)

// Baseline modes accepted by baseline_mode.
const (
	BaselineMean    = "mean"
	BaselineLearned = "learned"
)

// CutRange is a frequency band in Hz excluded from peak search.
type CutRange struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// TuningConfig represents the root configuration for tuning parameters.
// The same file drives the CLI and the tests; command-line flags override
// individual fields after loading.
type TuningConfig struct {
	// Acquisition / FFT front end
	SampleRate *float64 `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	SliceSize  *int     `json:"slice_size,omitempty" yaml:"slice_size,omitempty"`
	StepSize   *int     `json:"step_size,omitempty" yaml:"step_size,omitempty"`
	Components *int     `json:"components,omitempty" yaml:"components,omitempty"`

	// Peak discriminator
	ThresholdPolicy     *string    `json:"threshold_policy,omitempty" yaml:"threshold_policy,omitempty"`
	ThresholdMultiplier *float64   `json:"threshold_multiplier,omitempty" yaml:"threshold_multiplier,omitempty"`
	SigmaThreshold      *float64   `json:"sigma_threshold,omitempty" yaml:"sigma_threshold,omitempty"`
	FirstBinToUse       *int       `json:"first_bin_to_use,omitempty" yaml:"first_bin_to_use,omitempty"`
	CutRanges           []CutRange `json:"cut_ranges,omitempty" yaml:"cut_ranges,omitempty"`
	PeakMinFrequency    *float64   `json:"peak_min_frequency,omitempty" yaml:"peak_min_frequency,omitempty"`
	PeakMaxFrequency    *float64   `json:"peak_max_frequency,omitempty" yaml:"peak_max_frequency,omitempty"`
	PeakMinBin          *int       `json:"peak_min_bin,omitempty" yaml:"peak_min_bin,omitempty"`
	PeakMaxBin          *int       `json:"peak_max_bin,omitempty" yaml:"peak_max_bin,omitempty"`

	// Baseline
	BaselineMode           *string  `json:"baseline_mode,omitempty" yaml:"baseline_mode,omitempty"`
	BaselineUpdateFraction *float64 `json:"baseline_update_fraction,omitempty" yaml:"baseline_update_fraction,omitempty"`
	BaselineWarmupSlices   *int     `json:"baseline_warmup_slices,omitempty" yaml:"baseline_warmup_slices,omitempty"`
	BaselineExcludePeaks   *bool    `json:"baseline_exclude_peaks,omitempty" yaml:"baseline_exclude_peaks,omitempty"`

	// Track grouper
	MinimumGroupSize        *int  `json:"minimum_group_size,omitempty" yaml:"minimum_group_size,omitempty"`
	GroupBinsMarginLow      *int  `json:"group_bins_margin_low,omitempty" yaml:"group_bins_margin_low,omitempty"`
	GroupBinsMarginHigh     *int  `json:"group_bins_margin_high,omitempty" yaml:"group_bins_margin_high,omitempty"`
	GroupBinsMarginSameTime *int  `json:"group_bins_margin_same_time,omitempty" yaml:"group_bins_margin_same_time,omitempty"`
	MinimumTrackSpan        *int  `json:"minimum_track_span,omitempty" yaml:"minimum_track_span,omitempty"`
	ControlMode             *bool `json:"control_mode,omitempty" yaml:"control_mode,omitempty"`

	// Spectrogram collector
	LeadTime      *float64 `json:"lead_time,omitempty" yaml:"lead_time,omitempty"`
	TrailTime     *float64 `json:"trail_time,omitempty" yaml:"trail_time,omitempty"`
	MinFrequency  *float64 `json:"min_frequency,omitempty" yaml:"min_frequency,omitempty"`
	MaxFrequency  *float64 `json:"max_frequency,omitempty" yaml:"max_frequency,omitempty"`
	MinBin        *int     `json:"min_bin,omitempty" yaml:"min_bin,omitempty"`
	MaxBin        *int     `json:"max_bin,omitempty" yaml:"max_bin,omitempty"`
	UseTrackFreqs *bool    `json:"use_track_freqs,omitempty" yaml:"use_track_freqs,omitempty"`
	LeadFreq      *float64 `json:"lead_freq,omitempty" yaml:"lead_freq,omitempty"`
	TrailFreq     *float64 `json:"trail_freq,omitempty" yaml:"trail_freq,omitempty"`
	HistoryDepth  *int     `json:"history_depth,omitempty" yaml:"history_depth,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// PtrFloat64 returns a pointer to v, for flag overrides.
func PtrFloat64(v float64) *float64 { return ptrFloat64(v) }

// PtrInt returns a pointer to v, for flag overrides.
func PtrInt(v int) *int { return ptrInt(v) }

// PtrBool returns a pointer to v, for flag overrides.
func PtrBool(v bool) *bool { return ptrBool(v) }

// PtrString returns a pointer to v, for flag overrides.
func PtrString(v string) *string { return ptrString(v) }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file.
// The file must have a .json, .yaml or .yml extension and be under the max
// file size. Fields omitted from the file fall back to the Get* defaults,
// so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/hunt/l2peaks/
		"../../../../" + DefaultConfigPath,    // from internal/hunt/storage/sqlite/
		"../../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Merge copies every non-nil field of o over c.
func (c *TuningConfig) Merge(o *TuningConfig) {
	if o == nil {
		return
	}
	// Nil fields are omitted from the encoding and leave c untouched.
	data, err := json.Marshal(o)
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, c)
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.SampleRate != nil && *c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %f", *c.SampleRate)
	}
	if c.SliceSize != nil && *c.SliceSize < 2 {
		return fmt.Errorf("slice_size must be at least 2, got %d", *c.SliceSize)
	}
	if c.StepSize != nil && *c.StepSize < 0 {
		return fmt.Errorf("step_size must be non-negative, got %d", *c.StepSize)
	}
	if c.Components != nil && *c.Components < 1 {
		return fmt.Errorf("components must be at least 1, got %d", *c.Components)
	}

	if c.ThresholdPolicy != nil {
		switch *c.ThresholdPolicy {
		case PolicySNRPower, PolicySNRAmplitude, PolicySigma:
		default:
			return fmt.Errorf("invalid threshold_policy %q (want %s, %s or %s)",
				*c.ThresholdPolicy, PolicySNRPower, PolicySNRAmplitude, PolicySigma)
		}
	}
	if c.ThresholdMultiplier != nil && *c.ThresholdMultiplier <= 0 {
		return fmt.Errorf("threshold_multiplier must be positive, got %f", *c.ThresholdMultiplier)
	}
	if c.SigmaThreshold != nil && *c.SigmaThreshold < 0 {
		return fmt.Errorf("sigma_threshold must be non-negative, got %f", *c.SigmaThreshold)
	}
	if c.FirstBinToUse != nil && *c.FirstBinToUse < 0 {
		return fmt.Errorf("first_bin_to_use must be non-negative, got %d", *c.FirstBinToUse)
	}
	for i, r := range c.CutRanges {
		if r.Low > r.High {
			return fmt.Errorf("cut_ranges[%d] is inverted: [%g, %g]", i, r.Low, r.High)
		}
	}

	if c.BaselineMode != nil {
		switch *c.BaselineMode {
		case BaselineMean, BaselineLearned:
		default:
			return fmt.Errorf("invalid baseline_mode %q (want %s or %s)", *c.BaselineMode, BaselineMean, BaselineLearned)
		}
	}
	if c.BaselineUpdateFraction != nil {
		if *c.BaselineUpdateFraction <= 0 || *c.BaselineUpdateFraction > 1 {
			return fmt.Errorf("baseline_update_fraction must be in (0, 1], got %f", *c.BaselineUpdateFraction)
		}
	}
	if c.BaselineWarmupSlices != nil && *c.BaselineWarmupSlices < 0 {
		return fmt.Errorf("baseline_warmup_slices must be non-negative, got %d", *c.BaselineWarmupSlices)
	}

	if c.MinimumGroupSize != nil && *c.MinimumGroupSize < 0 {
		return fmt.Errorf("minimum_group_size must be non-negative, got %d", *c.MinimumGroupSize)
	}
	for name, v := range map[string]*int{
		"group_bins_margin_low":       c.GroupBinsMarginLow,
		"group_bins_margin_high":      c.GroupBinsMarginHigh,
		"group_bins_margin_same_time": c.GroupBinsMarginSameTime,
		"minimum_track_span":          c.MinimumTrackSpan,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, *v)
		}
	}

	if c.LeadTime != nil && *c.LeadTime < 0 {
		return fmt.Errorf("lead_time must be non-negative, got %f", *c.LeadTime)
	}
	if c.TrailTime != nil && *c.TrailTime < 0 {
		return fmt.Errorf("trail_time must be non-negative, got %f", *c.TrailTime)
	}
	if c.MinFrequency != nil && c.MaxFrequency != nil && *c.MinFrequency > *c.MaxFrequency {
		return fmt.Errorf("min_frequency (%g) must not exceed max_frequency (%g)", *c.MinFrequency, *c.MaxFrequency)
	}
	if c.MinBin != nil && *c.MinBin < 0 {
		return fmt.Errorf("min_bin must be non-negative, got %d", *c.MinBin)
	}
	if c.MinBin != nil && c.MaxBin != nil && *c.MinBin > *c.MaxBin {
		return fmt.Errorf("min_bin (%d) must not exceed max_bin (%d)", *c.MinBin, *c.MaxBin)
	}
	if c.PeakMinFrequency != nil && c.PeakMaxFrequency != nil && *c.PeakMinFrequency > *c.PeakMaxFrequency {
		return fmt.Errorf("peak_min_frequency (%g) must not exceed peak_max_frequency (%g)", *c.PeakMinFrequency, *c.PeakMaxFrequency)
	}
	if c.PeakMinBin != nil && *c.PeakMinBin < 0 {
		return fmt.Errorf("peak_min_bin must be non-negative, got %d", *c.PeakMinBin)
	}
	if c.PeakMinBin != nil && c.PeakMaxBin != nil && *c.PeakMaxBin >= 0 && *c.PeakMinBin > *c.PeakMaxBin {
		return fmt.Errorf("peak_min_bin (%d) must not exceed peak_max_bin (%d)", *c.PeakMinBin, *c.PeakMaxBin)
	}
	if c.LeadFreq != nil && *c.LeadFreq < 0 {
		return fmt.Errorf("lead_freq must be non-negative, got %f", *c.LeadFreq)
	}
	if c.TrailFreq != nil && *c.TrailFreq < 0 {
		return fmt.Errorf("trail_freq must be non-negative, got %f", *c.TrailFreq)
	}
	if c.HistoryDepth != nil && *c.HistoryDepth < 0 {
		return fmt.Errorf("history_depth must be non-negative, got %d", *c.HistoryDepth)
	}

	return nil
}

// GetSampleRate returns the sample_rate value or the default.
func (c *TuningConfig) GetSampleRate() float64 {
	if c.SampleRate == nil {
		return 8192 // default
	}
	return *c.SampleRate
}

// GetSliceSize returns the slice_size value or the default.
func (c *TuningConfig) GetSliceSize() int {
	if c.SliceSize == nil {
		return 1024 // default
	}
	return *c.SliceSize
}

// GetStepSize returns the step_size value, defaulting to the slice size
// (non-overlapping slices) when unset or zero.
func (c *TuningConfig) GetStepSize() int {
	if c.StepSize == nil || *c.StepSize == 0 {
		return c.GetSliceSize()
	}
	return *c.StepSize
}

// GetComponents returns the components value or the default.
func (c *TuningConfig) GetComponents() int {
	if c.Components == nil {
		return 1 // default
	}
	return *c.Components
}

// GetThresholdPolicy returns the threshold_policy value or the default.
func (c *TuningConfig) GetThresholdPolicy() string {
	if c.ThresholdPolicy == nil {
		return PolicySNRPower // default
	}
	return *c.ThresholdPolicy
}

// GetThresholdMultiplier returns the threshold_multiplier value or the default.
func (c *TuningConfig) GetThresholdMultiplier() float64 {
	if c.ThresholdMultiplier == nil {
		return 10.0 // default
	}
	return *c.ThresholdMultiplier
}

// GetSigmaThreshold returns the sigma_threshold value or the default.
func (c *TuningConfig) GetSigmaThreshold() float64 {
	if c.SigmaThreshold == nil {
		return 5.0 // default
	}
	return *c.SigmaThreshold
}

// GetFirstBinToUse returns the first_bin_to_use value or the default.
func (c *TuningConfig) GetFirstBinToUse() int {
	if c.FirstBinToUse == nil {
		return 1 // default
	}
	return *c.FirstBinToUse
}

// GetCutRanges returns a copy of the configured cut ranges.
func (c *TuningConfig) GetCutRanges() []CutRange {
	out := make([]CutRange, len(c.CutRanges))
	copy(out, c.CutRanges)
	return out
}

// GetBaselineMode returns the baseline_mode value or the default.
func (c *TuningConfig) GetBaselineMode() string {
	if c.BaselineMode == nil {
		return BaselineMean // default
	}
	return *c.BaselineMode
}

// GetBaselineUpdateFraction returns the baseline_update_fraction value or the default.
func (c *TuningConfig) GetBaselineUpdateFraction() float64 {
	if c.BaselineUpdateFraction == nil {
		return 0.05 // default
	}
	return *c.BaselineUpdateFraction
}

// GetBaselineWarmupSlices returns the baseline_warmup_slices value or the default.
func (c *TuningConfig) GetBaselineWarmupSlices() int {
	if c.BaselineWarmupSlices == nil {
		return 20 // default
	}
	return *c.BaselineWarmupSlices
}

// GetBaselineExcludePeaks returns the baseline_exclude_peaks value or the default.
func (c *TuningConfig) GetBaselineExcludePeaks() bool {
	if c.BaselineExcludePeaks == nil {
		return true // default
	}
	return *c.BaselineExcludePeaks
}

// GetMinimumGroupSize returns the minimum_group_size value or the default.
func (c *TuningConfig) GetMinimumGroupSize() int {
	if c.MinimumGroupSize == nil {
		return 2 // default
	}
	return *c.MinimumGroupSize
}

// GetGroupBinsMarginLow returns the group_bins_margin_low value or the default.
func (c *TuningConfig) GetGroupBinsMarginLow() int {
	if c.GroupBinsMarginLow == nil {
		return 3 // default
	}
	return *c.GroupBinsMarginLow
}

// GetGroupBinsMarginHigh returns the group_bins_margin_high value or the default.
func (c *TuningConfig) GetGroupBinsMarginHigh() int {
	if c.GroupBinsMarginHigh == nil {
		return 1 // default
	}
	return *c.GroupBinsMarginHigh
}

// GetGroupBinsMarginSameTime returns the group_bins_margin_same_time value or the default.
func (c *TuningConfig) GetGroupBinsMarginSameTime() int {
	if c.GroupBinsMarginSameTime == nil {
		return 1 // default
	}
	return *c.GroupBinsMarginSameTime
}

// GetMinimumTrackSpan returns the minimum_track_span value or the default.
func (c *TuningConfig) GetMinimumTrackSpan() int {
	if c.MinimumTrackSpan == nil {
		return 2 // default
	}
	return *c.MinimumTrackSpan
}

// GetControlMode returns the control_mode value or the default.
func (c *TuningConfig) GetControlMode() bool {
	if c.ControlMode == nil {
		return false // default
	}
	return *c.ControlMode
}

// GetLeadTime returns the lead_time value in seconds or the default.
func (c *TuningConfig) GetLeadTime() float64 {
	if c.LeadTime == nil {
		return 0 // default
	}
	return *c.LeadTime
}

// GetTrailTime returns the trail_time value in seconds or the default.
func (c *TuningConfig) GetTrailTime() float64 {
	if c.TrailTime == nil {
		return 0 // default
	}
	return *c.TrailTime
}

// GetFrequencyRange returns the collector frequency bounds. ok is false when
// neither bound is configured.
func (c *TuningConfig) GetFrequencyRange() (lo, hi float64, ok bool) {
	if c.MinFrequency == nil && c.MaxFrequency == nil {
		return 0, 0, false
	}
	lo, hi = 0, -1
	if c.MinFrequency != nil {
		lo = *c.MinFrequency
	}
	if c.MaxFrequency != nil {
		hi = *c.MaxFrequency
	}
	return lo, hi, true
}

// GetBinRange returns the collector bin bounds. A negative hi means the last
// bin. ok is false when neither bound is configured.
func (c *TuningConfig) GetBinRange() (lo, hi int, ok bool) {
	if c.MinBin == nil && c.MaxBin == nil {
		return 0, -1, false
	}
	lo, hi = 0, -1
	if c.MinBin != nil {
		lo = *c.MinBin
	}
	if c.MaxBin != nil {
		hi = *c.MaxBin
	}
	return lo, hi, true
}

// GetPeakFrequencyRange returns the discriminator search band. ok is false
// when neither bound is configured; a missing upper bound is returned as -1.
func (c *TuningConfig) GetPeakFrequencyRange() (lo, hi float64, ok bool) {
	if c.PeakMinFrequency == nil && c.PeakMaxFrequency == nil {
		return 0, 0, false
	}
	lo, hi = 0, -1
	if c.PeakMinFrequency != nil {
		lo = *c.PeakMinFrequency
	}
	if c.PeakMaxFrequency != nil {
		hi = *c.PeakMaxFrequency
	}
	return lo, hi, true
}

// GetPeakBinRange returns the discriminator search bins. A negative hi means
// the last bin. ok is false when neither bound is configured.
func (c *TuningConfig) GetPeakBinRange() (lo, hi int, ok bool) {
	if c.PeakMinBin == nil && c.PeakMaxBin == nil {
		return 0, -1, false
	}
	lo, hi = 0, -1
	if c.PeakMinBin != nil {
		lo = *c.PeakMinBin
	}
	if c.PeakMaxBin != nil {
		hi = *c.PeakMaxBin
	}
	return lo, hi, true
}

// GetUseTrackFreqs returns the use_track_freqs value or the default.
func (c *TuningConfig) GetUseTrackFreqs() bool {
	if c.UseTrackFreqs == nil {
		return false // default
	}
	return *c.UseTrackFreqs
}

// GetLeadFreq returns the lead_freq value in Hz or the default.
func (c *TuningConfig) GetLeadFreq() float64 {
	if c.LeadFreq == nil {
		return 0 // default
	}
	return *c.LeadFreq
}

// GetTrailFreq returns the trail_freq value in Hz or the default.
func (c *TuningConfig) GetTrailFreq() float64 {
	if c.TrailFreq == nil {
		return 0 // default
	}
	return *c.TrailFreq
}

// GetHistoryDepth returns the history_depth value or the default.
func (c *TuningConfig) GetHistoryDepth() int {
	if c.HistoryDepth == nil {
		return 64 // default
	}
	return *c.HistoryDepth
}
