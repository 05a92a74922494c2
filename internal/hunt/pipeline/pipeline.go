package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/cyclotron.report/internal/hunt/l1spectra"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l2peaks"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l3groups"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l4windows"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoHeader is returned when a slice arrives before any header.
	ErrNoHeader = errors.New("pipeline: slice before header")
	// ErrBinCountChanged is returned when a slice's bin count differs from
	// the current header without a new header in between.
	ErrBinCountChanged = errors.New("pipeline: bin count changed without a new header")
	// ErrComponentCount is returned when a slice carries the wrong number of
	// component spectra.
	ErrComponentCount = errors.New("pipeline: component count mismatch")
)

// Summary counts what a pipeline has processed since it was created.
type Summary struct {
	Slices          int
	Peaks           int
	Tracks          int
	Spectrograms    int
	Pruned          int
	RejectedWindows int
	DroppedWindows  int
	SinkErrors      int
}

// lane holds the per-component state. Components share nothing.
type lane struct {
	component int
	baseline  *l2peaks.BackgroundBaseline // nil unless learned
	grouper   *l3groups.Grouper
	collector *l4windows.Collector

	pruned   int
	rejected int
	dropped  int
}

func (ln *lane) currentBaseline() l2peaks.Baseline {
	if ln.baseline == nil {
		return nil
	}
	return ln.baseline.Current()
}

// Pipeline drives slices through discrimination, grouping and window
// collection, delivering tracks and spectrograms to the configured sinks.
// Methods are safe for concurrent use but slices must be offered in order.
type Pipeline struct {
	mu sync.Mutex

	cfg          Config
	disc         *l2peaks.Discriminator
	trackSinks   []TrackSink
	spectroSinks []SpectrogramSink

	header    l1spectra.Header
	hasHeader bool
	mask      l1spectra.Mask
	lanes     []*lane
	history   *l1spectra.History
	lastMask  int64

	summary Summary
	failed  error
}

// New returns a pipeline. OnHeader must be called before the first slice.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	disc, err := l2peaks.NewDiscriminator(cfg.Peaks)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg, disc: disc, history: l1spectra.NewHistory(cfg.HistoryDepth)}
	for _, s := range cfg.TrackSinks {
		if !isNilInterface(s) {
			p.trackSinks = append(p.trackSinks, s)
		}
	}
	for _, s := range cfg.SpectrogramSinks {
		if !isNilInterface(s) {
			p.spectroSinks = append(p.spectroSinks, s)
		}
	}
	return p, nil
}

// OnHeader starts a new acquisition. Anything still open from the previous
// acquisition is drained and delivered first, then every layer is reset for
// the new axis and the mask is rebuilt from the configured cut ranges.
func (p *Pipeline) OnHeader(ctx context.Context, h l1spectra.Header) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	mask, err := l1spectra.NewMaskFromHeader(h, p.cfg.CutRanges, p.cfg.Peaks.FirstBinToUse)
	if err != nil {
		return err
	}
	if p.hasHeader && p.failed == nil {
		p.drainLocked(ctx)
	}

	axis := l3groups.AxisFromHeader(h)
	lanes := make([]*lane, h.Components)
	for c := range lanes {
		g, err := l3groups.NewGrouper(p.cfg.Groups, c, axis)
		if err != nil {
			return err
		}
		col, err := l4windows.NewCollector(p.cfg.Windows, c, h.TimeStep())
		if err != nil {
			return err
		}
		ln := &lane{component: c, grouper: g, collector: col}
		if p.cfg.Baseline.Learned {
			ln.baseline = l2peaks.NewBackgroundBaseline(p.cfg.Baseline)
		}
		lanes[c] = ln
	}

	p.header = h
	p.hasHeader = true
	p.mask = mask
	p.lanes = lanes
	p.history.Reset()
	p.failed = nil
	p.cfg.Metrics.IncHeader()
	diagf("header: %g Hz, slice %d, step %d, %d bins of %g Hz, %d components, %d active bins",
		h.SampleRate, h.SliceSize, h.StepSize, h.NBins, h.BinWidth, h.Components, mask.Size())
	return nil
}

// ProcessSlice runs one slice through every layer. A contract violation
// (no header, wrong component count, changed bin count, out-of-order index)
// stops the pipeline: the error is returned now and on every later call,
// and nothing further is delivered. Sink failures are logged and counted
// but do not stop processing.
func (p *Pipeline) ProcessSlice(ctx context.Context, s l1spectra.Slice) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failed != nil {
		return p.failed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.hasHeader {
		return p.fail(ErrNoHeader)
	}
	if len(s.Spectra) != len(p.lanes) {
		return p.fail(fmt.Errorf("%w: slice %d has %d spectra, header has %d components",
			ErrComponentCount, s.Index, len(s.Spectra), len(p.lanes)))
	}
	if err := s.Validate(p.header.NBins); err != nil {
		if errors.Is(err, l1spectra.ErrBinCountMismatch) {
			err = fmt.Errorf("%w: %w", ErrBinCountChanged, err)
		}
		return p.fail(err)
	}
	start := time.Now()
	ts := s.Timestamp
	if ts == 0 {
		ts = p.header.Timestamp(s.Index)
	}

	// Discrimination is independent per component.
	peaks := make([]l2peaks.PeakSet, len(p.lanes))
	eg, _ := errgroup.WithContext(ctx)
	for c, ln := range p.lanes {
		eg.Go(func() error {
			peaks[c] = p.disc.Discriminate(s.Spectra[c], p.mask, ln.currentBaseline())
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if n := p.disc.MaskMismatches(); n > p.lastMask {
		for ; p.lastMask < n; p.lastMask++ {
			p.cfg.Metrics.IncMaskMismatch()
		}
	}

	// Grouping must stay in slice order, so each component's layers run
	// serially.
	var history []l1spectra.Slice
	for c, ln := range p.lanes {
		if err := ln.grouper.Add(s.Index, peaks[c]); err != nil {
			return p.fail(err)
		}
		if ln.baseline != nil {
			ln.baseline.Update(s.Spectra[c], peaks[c])
		}
		p.summary.Peaks += len(peaks[c])
		p.cfg.Metrics.AddPeaks(c, len(peaks[c]))

		tracks := ln.grouper.DrainClosed()
		if len(tracks) > 0 && history == nil {
			history = p.history.Slices()
		}
		p.startWindows(ctx, ln, tracks, history)
		p.deliverSpectrograms(ctx, ln, ln.collector.OnSpectrum(s.Spectra[c], ts))
		p.syncCounters(ln)
	}
	p.history.Push(l1spectra.Slice{Index: s.Index, Timestamp: ts, Spectra: s.Spectra})
	p.summary.Slices++

	elapsed := time.Since(start)
	p.cfg.Metrics.ObserveSlice(elapsed.Seconds())
	tracef("slice %d t=%.6f: %d peaks over %d components in %s", s.Index, ts, countPeaks(peaks), len(p.lanes), elapsed)
	return nil
}

// Finish treats the end of the stream as passing every bound: open
// candidates are drained, their windows primed from history, and every
// filling window is flushed. It returns the summary and the error that
// stopped the pipeline, if any. After a contract violation nothing more is
// drained, so only output finalised before the violation is ever delivered.
func (p *Pipeline) Finish(ctx context.Context) (Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failed != nil {
		return p.summary, p.failed
	}
	if p.hasHeader {
		p.drainLocked(ctx)
	}
	diagf("finished: %+v", p.summary)
	return p.summary, nil
}

// Summary returns the counts so far.
func (p *Pipeline) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summary
}

// Err returns the contract violation that stopped the pipeline, or nil.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// Header returns the current acquisition header.
func (p *Pipeline) Header() (l1spectra.Header, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.header, p.hasHeader
}

func (p *Pipeline) fail(err error) error {
	p.failed = err
	opsf("stopping: %v", err)
	return err
}

// drainLocked ends the current acquisition.
func (p *Pipeline) drainLocked(ctx context.Context) {
	var history []l1spectra.Slice
	for _, ln := range p.lanes {
		tracks := ln.grouper.Drain()
		if len(tracks) > 0 && history == nil {
			history = p.history.Slices()
		}
		p.startWindows(ctx, ln, tracks, history)
		p.deliverSpectrograms(ctx, ln, ln.collector.Flush())
		p.syncCounters(ln)
	}
}

// startWindows delivers tracks and opens their collection windows.
func (p *Pipeline) startWindows(ctx context.Context, ln *lane, tracks []l3groups.Track, history []l1spectra.Slice) {
	for _, t := range tracks {
		for _, sink := range p.trackSinks {
			if err := sink.WriteTrack(ctx, t); err != nil {
				opsf("component %d: track %s: sink: %v", ln.component, t.ID, err)
				p.summary.SinkErrors++
			}
		}
		ln.collector.OnTrackStart(t, history...)
	}
	if len(tracks) > 0 {
		diagf("component %d: %d tracks delivered", ln.component, len(tracks))
	}
	p.summary.Tracks += len(tracks)
	p.cfg.Metrics.AddTracks(ln.component, len(tracks))
}

func (p *Pipeline) deliverSpectrograms(ctx context.Context, ln *lane, sgs []*l4windows.Spectrogram) {
	for _, sg := range sgs {
		for _, sink := range p.spectroSinks {
			if err := sink.WriteSpectrogram(ctx, sg); err != nil {
				opsf("component %d: spectrogram %s: sink: %v", ln.component, sg.ID, err)
				p.summary.SinkErrors++
			}
		}
	}
	p.summary.Spectrograms += len(sgs)
	p.cfg.Metrics.AddSpectrograms(ln.component, len(sgs))
}

// syncCounters folds the layer counters into the summary and metrics.
func (p *Pipeline) syncCounters(ln *lane) {
	if n := ln.grouper.Pruned(); n != ln.pruned {
		p.summary.Pruned += n - ln.pruned
		p.cfg.Metrics.AddPruned(ln.component, n-ln.pruned)
		ln.pruned = n
	}
	if n := ln.collector.Rejected(); n != ln.rejected {
		p.summary.RejectedWindows += n - ln.rejected
		p.cfg.Metrics.AddRejectedWindows(ln.component, n-ln.rejected)
		ln.rejected = n
	}
	if n := ln.collector.Dropped(); n != ln.dropped {
		p.summary.DroppedWindows += n - ln.dropped
		ln.dropped = n
	}
	p.cfg.Metrics.SetOpen(ln.component, ln.grouper.Open(), ln.collector.Active())
}

func countPeaks(peaks []l2peaks.PeakSet) int {
	n := 0
	for _, ps := range peaks {
		n += len(ps)
	}
	return n
}
