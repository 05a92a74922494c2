package l2peaks

import (
	"math"
	"sync/atomic"

	"github.com/banshee-data/cyclotron.report/internal/hunt/l1spectra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Peak is one bin at or above threshold.
type Peak struct {
	Bin       int
	Frequency float64 // bin centre, Hz
	Value     float64 // power, or amplitude under PolicySNRAmplitude
	Threshold float64 // in the same unit as Value
}

// PeakSet is a list of peaks in strictly ascending bin order.
type PeakSet []Peak

// Bins returns the bin indices of the set.
func (ps PeakSet) Bins() []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.Bin
	}
	return out
}

// Discriminator finds the bins of a spectrum that rise above a noise
// threshold. It holds no per-spectrum state and is safe for concurrent use.
type Discriminator struct {
	cfg            Config
	maskMismatches atomic.Int64
}

// NewDiscriminator validates cfg and returns a discriminator.
func NewDiscriminator(cfg Config) (*Discriminator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Discriminator{cfg: cfg}, nil
}

// Config returns the discriminator configuration.
func (d *Discriminator) Config() Config { return d.cfg }

// MaskMismatches returns how many calls substituted a full mask because the
// supplied mask did not match the spectrum size.
func (d *Discriminator) MaskMismatches() int64 { return d.maskMismatches.Load() }

// Discriminate returns the ascending set of active bins of v whose value is
// at or above threshold. baseline may be nil, in which case the mean over
// active bins is used. A mask whose array size differs from v is replaced
// by a full mask for this call only.
func (d *Discriminator) Discriminate(v l1spectra.View, mask l1spectra.Mask, baseline Baseline) PeakSet {
	n := v.Len()
	if n == 0 {
		return nil
	}
	if mask.ArraySize() != n {
		opsf("mask size %d does not match spectrum size %d, using a full mask", mask.ArraySize(), n)
		d.maskMismatches.Add(1)
		mask = l1spectra.FullMask(n)
	}
	mask = mask.CutBelow(d.cfg.FirstBinToUse)
	if r := d.cfg.SearchRange; r != nil {
		mask = mask.Restrict(l1spectra.FindBin(v, r.Low), l1spectra.FindBin(v, r.High))
	} else if r := d.cfg.SearchBins; r != nil {
		last := r.Last
		if last < 0 || last >= n {
			last = n - 1
		}
		mask = mask.Restrict(r.First, last)
	}

	bins := mask.ActiveBins()
	if len(bins) == 0 {
		return nil
	}
	if baseline != nil && baseline.Len() != n {
		opsf("baseline covers %d bins, spectrum has %d; using mean baseline", baseline.Len(), n)
		baseline = nil
	}

	var peaks PeakSet
	switch d.cfg.Policy {
	case PolicySNRAmplitude:
		peaks = d.snrAmplitude(v, bins, baseline)
	case PolicySigma:
		peaks = d.sigma(v, bins, baseline)
	default:
		peaks = d.snrPower(v, bins, baseline)
	}
	tracef("%d of %d active bins above threshold (%s)", len(peaks), len(bins), d.cfg.Policy)
	return peaks
}

func activePowers(v l1spectra.View, bins []int) []float64 {
	out := make([]float64, len(bins))
	for i, b := range bins {
		out[i] = v.Power(b)
	}
	return out
}

func (d *Discriminator) snrPower(v l1spectra.View, bins []int, baseline Baseline) PeakSet {
	mean := 0.0
	if baseline == nil {
		mean = stat.Mean(activePowers(v, bins), nil)
	}
	var peaks PeakSet
	for _, b := range bins {
		level := mean
		if baseline != nil {
			level = baseline.Level(b)
		}
		threshold := d.cfg.ThresholdMultiplier * level
		if p := v.Power(b); p >= threshold {
			peaks = append(peaks, Peak{Bin: b, Frequency: l1spectra.BinCenter(v, b), Value: p, Threshold: threshold})
		}
	}
	return peaks
}

func (d *Discriminator) snrAmplitude(v l1spectra.View, bins []int, baseline Baseline) PeakSet {
	mean := 0.0
	if baseline == nil {
		amps := make([]float64, len(bins))
		for i, b := range bins {
			amps[i] = v.Amplitude(b)
		}
		mean = stat.Mean(amps, nil)
	}
	mult := math.Sqrt(d.cfg.ThresholdMultiplier)
	var peaks PeakSet
	for _, b := range bins {
		level := mean
		if baseline != nil {
			level = math.Sqrt(baseline.Level(b))
		}
		threshold := mult * level
		if a := v.Amplitude(b); a >= threshold {
			peaks = append(peaks, Peak{Bin: b, Frequency: l1spectra.BinCenter(v, b), Value: a, Threshold: threshold})
		}
	}
	return peaks
}

func (d *Discriminator) sigma(v l1spectra.View, bins []int, baseline Baseline) PeakSet {
	powers := activePowers(v, bins)
	var mean, sigma float64
	if baseline == nil {
		mean, sigma = stat.PopMeanStdDev(powers, nil)
	} else {
		residuals := make([]float64, len(bins))
		for i, b := range bins {
			residuals[i] = powers[i] - baseline.Level(b)
		}
		sigma = math.Sqrt(floats.Dot(residuals, residuals) / float64(len(residuals)))
	}

	var peaks PeakSet
	for i, b := range bins {
		level := mean
		if baseline != nil {
			level = baseline.Level(b)
		}
		threshold := d.cfg.SigmaThreshold*sigma + level
		if powers[i] >= threshold {
			peaks = append(peaks, Peak{Bin: b, Frequency: l1spectra.BinCenter(v, b), Value: powers[i], Threshold: threshold})
		}
	}
	return peaks
}
