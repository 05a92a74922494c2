package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/banshee-data/cyclotron.report/internal/config"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l1spectra"
	"github.com/banshee-data/cyclotron.report/internal/units"
)

// options holds everything parsed from the command line. Tuning overrides
// are applied only for flags the user actually set.
type options struct {
	configFile string
	input      string
	synthetic  bool
	synthSecs  float64
	synthNoise float64
	synthSeed  uint64
	chirps     []string

	dbFile     string
	plotDir    string
	listen     string
	jsonTracks bool
	logLevel   string
	version    bool

	fs *pflag.FlagSet

	sampleRate   float64
	sliceSize    int
	stepSize     int
	components   int
	policy       string
	multiplier   float64
	sigma        float64
	firstBin     int
	cutRanges    []string
	peakMinFreq  string
	peakMaxFreq  string
	peakMinBin   int
	peakMaxBin   int
	baselineMode string
	groupSize    int
	marginLow    int
	marginHigh   int
	marginSame   int
	minSpan      int
	controlMode  bool
	leadTime     float64
	trailTime    float64
	minFreq      string
	maxFreq      string
	minBin       int
	maxBin       int
	trackFreqs   bool
	leadFreq     string
	trailFreq    string
	historyDepth int
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := pflag.NewFlagSet("trackhunt", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	o.fs = fs

	fs.StringVarP(&o.configFile, "config", "c", "", "Tuning config file (.json, .yaml or .yml)")
	fs.StringVarP(&o.input, "input", "i", "-", "Raw little-endian float32 samples, interleaved by component ('-' for stdin)")
	fs.BoolVar(&o.synthetic, "synthetic", false, "Generate a synthetic acquisition instead of reading input")
	fs.Float64Var(&o.synthSecs, "synthetic-duration", 10, "Synthetic acquisition length in seconds")
	fs.Float64Var(&o.synthNoise, "synthetic-noise", 0.05, "Synthetic noise standard deviation")
	fs.Uint64Var(&o.synthSeed, "synthetic-seed", 1, "Synthetic noise seed")
	fs.StringArrayVar(&o.chirps, "chirp", nil, "Synthetic chirp component:start:duration:frequency:slope:amplitude (repeatable)")

	fs.StringVar(&o.dbFile, "db", "", "SQLite database for tracks and spectrograms (disabled when empty)")
	fs.StringVar(&o.plotDir, "plot-dir", "", "Write a waterfall PNG per spectrogram under this directory")
	fs.StringVar(&o.listen, "listen", "", "Serve status, metrics and results on this address and keep serving after input ends")
	fs.BoolVar(&o.jsonTracks, "json", false, "Print each track as a JSON line on stdout")
	fs.StringVar(&o.logLevel, "log-level", "ops", "Layer logging: ops, diag or trace")
	fs.BoolVarP(&o.version, "version", "v", false, "Print version and exit")

	fs.Float64Var(&o.sampleRate, "sample-rate", 0, "Sample rate in Hz")
	fs.IntVar(&o.sliceSize, "slice-size", 0, "Samples per FFT slice")
	fs.IntVar(&o.stepSize, "step-size", 0, "Samples between slice starts (0 = slice size)")
	fs.IntVar(&o.components, "components", 0, "Interleaved components in the input")
	fs.StringVar(&o.policy, "threshold-policy", "", "Peak threshold policy: snr-power, snr-amplitude or sigma")
	fs.Float64Var(&o.multiplier, "threshold-multiplier", 0, "Peak threshold multiplier for the SNR policies")
	fs.Float64Var(&o.sigma, "sigma-threshold", 0, "Peak threshold in standard deviations for the sigma policy")
	fs.IntVar(&o.firstBin, "first-bin-to-use", 0, "Lowest bin considered for peaks")
	fs.StringArrayVar(&o.cutRanges, "cut-range", nil, "Frequency band lo:hi excluded from peak search, e.g. 49Hz:51Hz (repeatable)")
	fs.StringVar(&o.peakMinFreq, "peak-min-frequency", "", "Lowest frequency searched for peaks, e.g. 100Hz")
	fs.StringVar(&o.peakMaxFreq, "peak-max-frequency", "", "Highest frequency searched for peaks")
	fs.IntVar(&o.peakMinBin, "peak-min-bin", 0, "Lowest bin searched for peaks (ignored with a peak frequency band)")
	fs.IntVar(&o.peakMaxBin, "peak-max-bin", -1, "Highest bin searched for peaks (-1 = last)")
	fs.StringVar(&o.baselineMode, "baseline-mode", "", "Noise baseline: mean or learned")
	fs.IntVar(&o.groupSize, "minimum-group-size", 0, "Minimum points in a track")
	fs.IntVar(&o.marginLow, "group-bins-margin-low", 0, "Bins below the last peak a candidate may extend to")
	fs.IntVar(&o.marginHigh, "group-bins-margin-high", 0, "Bins above the last peak a candidate may extend to")
	fs.IntVar(&o.marginSame, "group-bins-margin-same-time", 0, "Bins a candidate may extend to within one slice")
	fs.IntVar(&o.minSpan, "minimum-track-span", 0, "Minimum slice span of a track")
	fs.BoolVar(&o.controlMode, "control-mode", false, "Swap the low and high margins")
	fs.Float64Var(&o.leadTime, "lead-time", 0, "Seconds collected before each track")
	fs.Float64Var(&o.trailTime, "trail-time", 0, "Seconds collected after each track")
	fs.StringVar(&o.minFreq, "min-frequency", "", "Lowest collected frequency, e.g. 1.5kHz")
	fs.StringVar(&o.maxFreq, "max-frequency", "", "Highest collected frequency")
	fs.IntVar(&o.minBin, "min-bin", 0, "Lowest collected bin")
	fs.IntVar(&o.maxBin, "max-bin", -1, "Highest collected bin (-1 = last)")
	fs.BoolVar(&o.trackFreqs, "use-track-freqs", false, "Collect only the band around each track")
	fs.StringVar(&o.leadFreq, "lead-freq", "", "Band below the track collected with --use-track-freqs")
	fs.StringVar(&o.trailFreq, "trail-freq", "", "Band above the track collected with --use-track-freqs")
	fs.IntVar(&o.historyDepth, "history-depth", 0, "Recent slices replayed into new windows")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

// tuning loads the config file, if any, and applies the flags that were set.
func (o *options) tuning() (*config.TuningConfig, error) {
	cfg := config.EmptyTuningConfig()
	if o.configFile != "" {
		loaded, err := config.LoadTuningConfig(o.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	set := o.fs.Changed
	if set("sample-rate") {
		cfg.SampleRate = config.PtrFloat64(o.sampleRate)
	}
	if set("slice-size") {
		cfg.SliceSize = config.PtrInt(o.sliceSize)
	}
	if set("step-size") {
		cfg.StepSize = config.PtrInt(o.stepSize)
	}
	if set("components") {
		cfg.Components = config.PtrInt(o.components)
	}
	if set("threshold-policy") {
		cfg.ThresholdPolicy = config.PtrString(o.policy)
	}
	if set("threshold-multiplier") {
		cfg.ThresholdMultiplier = config.PtrFloat64(o.multiplier)
	}
	if set("sigma-threshold") {
		cfg.SigmaThreshold = config.PtrFloat64(o.sigma)
	}
	if set("first-bin-to-use") {
		cfg.FirstBinToUse = config.PtrInt(o.firstBin)
	}
	if set("cut-range") {
		cfg.CutRanges = nil
		for _, s := range o.cutRanges {
			lo, hi, err := units.ParseFrequencyRange(s)
			if err != nil {
				return nil, fmt.Errorf("--cut-range: %w", err)
			}
			cfg.CutRanges = append(cfg.CutRanges, config.CutRange{Low: lo, High: hi})
		}
	}
	if set("baseline-mode") {
		cfg.BaselineMode = config.PtrString(o.baselineMode)
	}
	if set("minimum-group-size") {
		cfg.MinimumGroupSize = config.PtrInt(o.groupSize)
	}
	if set("group-bins-margin-low") {
		cfg.GroupBinsMarginLow = config.PtrInt(o.marginLow)
	}
	if set("group-bins-margin-high") {
		cfg.GroupBinsMarginHigh = config.PtrInt(o.marginHigh)
	}
	if set("group-bins-margin-same-time") {
		cfg.GroupBinsMarginSameTime = config.PtrInt(o.marginSame)
	}
	if set("minimum-track-span") {
		cfg.MinimumTrackSpan = config.PtrInt(o.minSpan)
	}
	if set("control-mode") {
		cfg.ControlMode = config.PtrBool(o.controlMode)
	}
	if set("lead-time") {
		cfg.LeadTime = config.PtrFloat64(o.leadTime)
	}
	if set("trail-time") {
		cfg.TrailTime = config.PtrFloat64(o.trailTime)
	}
	for _, f := range []struct {
		name string
		val  string
		dst  **float64
	}{
		{"peak-min-frequency", o.peakMinFreq, &cfg.PeakMinFrequency},
		{"peak-max-frequency", o.peakMaxFreq, &cfg.PeakMaxFrequency},
		{"min-frequency", o.minFreq, &cfg.MinFrequency},
		{"max-frequency", o.maxFreq, &cfg.MaxFrequency},
		{"lead-freq", o.leadFreq, &cfg.LeadFreq},
		{"trail-freq", o.trailFreq, &cfg.TrailFreq},
	} {
		if !set(f.name) {
			continue
		}
		hz, err := units.ParseFrequency(f.val)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", f.name, err)
		}
		*f.dst = config.PtrFloat64(hz)
	}
	if set("peak-min-bin") {
		cfg.PeakMinBin = config.PtrInt(o.peakMinBin)
	}
	if set("peak-max-bin") {
		cfg.PeakMaxBin = config.PtrInt(o.peakMaxBin)
	}
	if set("min-bin") {
		cfg.MinBin = config.PtrInt(o.minBin)
	}
	if set("max-bin") {
		cfg.MaxBin = config.PtrInt(o.maxBin)
	}
	if set("use-track-freqs") {
		cfg.UseTrackFreqs = config.PtrBool(o.trackFreqs)
	}
	if set("history-depth") {
		cfg.HistoryDepth = config.PtrInt(o.historyDepth)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// parseChirp parses component:start:duration:frequency:slope:amplitude.
// The frequency accepts units; slope is in Hz/s.
func parseChirp(s string) (int, l1spectra.Chirp, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return 0, l1spectra.Chirp{}, fmt.Errorf("invalid chirp %q: want component:start:duration:frequency:slope:amplitude", s)
	}
	component, err := strconv.Atoi(parts[0])
	if err != nil || component < 0 {
		return 0, l1spectra.Chirp{}, fmt.Errorf("invalid chirp component %q", parts[0])
	}
	freq, err := units.ParseFrequency(parts[3])
	if err != nil {
		return 0, l1spectra.Chirp{}, err
	}
	var nums [4]float64
	for i, p := range []string{parts[1], parts[2], parts[4], parts[5]} {
		if nums[i], err = strconv.ParseFloat(p, 64); err != nil {
			return 0, l1spectra.Chirp{}, fmt.Errorf("invalid chirp %q: %w", s, err)
		}
	}
	c := l1spectra.Chirp{Start: nums[0], Duration: nums[1], StartFrequency: freq, Slope: nums[2], Amplitude: nums[3]}
	if c.Duration <= 0 {
		return 0, l1spectra.Chirp{}, fmt.Errorf("invalid chirp %q: duration must be positive", s)
	}
	return component, c, nil
}
