package l2peaks

import (
	"math"

	"github.com/banshee-data/cyclotron.report/internal/hunt/l1spectra"
)

// Baseline is a per-bin noise floor in power units.
type Baseline interface {
	// Len returns the number of bins covered.
	Len() int
	// Level returns the noise floor of bin.
	Level(bin int) float64
}

// FixedBaseline is an externally supplied noise curve, one value per bin.
type FixedBaseline []float64

func (b FixedBaseline) Len() int              { return len(b) }
func (b FixedBaseline) Level(bin int) float64 { return b[bin] }

// BackgroundBaseline learns the noise floor of one component from the
// slices it sees. Each bin keeps an exponential moving average of power and
// of its absolute deviation. Until WarmupSlices slices have been absorbed
// every bin uses a running mean; afterwards the configured update fraction
// applies and, with ExcludePeaks, bins found as peaks are left untouched so
// a long-lived track does not raise its own floor.
//
// A BackgroundBaseline is owned by exactly one component and is not safe for
// concurrent use.
type BackgroundBaseline struct {
	cfg    BaselineConfig
	levels []float64
	spread []float64
	seen   int
}

// NewBackgroundBaseline returns an empty learned baseline.
func NewBackgroundBaseline(cfg BaselineConfig) *BackgroundBaseline {
	return &BackgroundBaseline{cfg: cfg}
}

func (b *BackgroundBaseline) Len() int              { return len(b.levels) }
func (b *BackgroundBaseline) Level(bin int) float64 { return b.levels[bin] }

// Spread returns the mean absolute deviation learned for bin.
func (b *BackgroundBaseline) Spread(bin int) float64 { return b.spread[bin] }

// Seen returns how many slices have been absorbed.
func (b *BackgroundBaseline) Seen() int { return b.seen }

// Settled reports whether the warm-up is complete.
func (b *BackgroundBaseline) Settled() bool {
	return b.seen > 0 && b.seen >= b.cfg.WarmupSlices
}

// Current returns the baseline to discriminate against: the learned curve
// once settled, nil (mean power) before.
func (b *BackgroundBaseline) Current() Baseline {
	if b == nil || !b.Settled() {
		return nil
	}
	return b
}

// Reset forgets everything learned.
func (b *BackgroundBaseline) Reset() {
	b.levels, b.spread, b.seen = nil, nil, 0
}

// Update absorbs v. peaks are the bins found in v and are skipped once the
// baseline has settled if ExcludePeaks is set. A change of bin count
// restarts learning from v.
func (b *BackgroundBaseline) Update(v l1spectra.View, peaks PeakSet) {
	n := v.Len()
	if len(b.levels) != n {
		if b.levels != nil {
			diagf("baseline bin count changed %d -> %d, relearning", len(b.levels), n)
		}
		// Seed from the first observation.
		b.levels = l1spectra.PowerValues(make([]float64, n), v)
		b.spread = make([]float64, n)
		b.seen = 1
		return
	}

	settled := b.Settled()
	alpha := b.cfg.UpdateFraction
	if !settled {
		alpha = math.Max(alpha, 1/float64(b.seen+1))
	}

	skip := 0
	for bin := 0; bin < n; bin++ {
		for skip < len(peaks) && peaks[skip].Bin < bin {
			skip++
		}
		if settled && b.cfg.ExcludePeaks && skip < len(peaks) && peaks[skip].Bin == bin {
			continue
		}
		p := v.Power(bin)
		old := b.levels[bin]
		b.levels[bin] = (1-alpha)*old + alpha*p
		b.spread[bin] = (1-alpha)*b.spread[bin] + alpha*math.Abs(p-old)
	}
	b.seen++
	if b.seen == b.cfg.WarmupSlices {
		diagf("baseline settled after %d slices over %d bins", b.seen, n)
	}
}
