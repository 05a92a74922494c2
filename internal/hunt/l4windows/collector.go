package l4windows

import (
	"math"
	"sort"
	"sync"

	"github.com/banshee-data/cyclotron.report/internal/hunt/l1spectra"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l3groups"
	"github.com/google/uuid"
)

// window is an active collection window.
type window struct {
	trackID    string
	trackStart float64
	trackEnd   float64
	start      float64 // trackStart - lead
	end        float64 // trackEnd + trail

	band     *l1spectra.FrequencyRange // per-window band, UseTrackFreqs only
	first    int
	last     int
	resolved bool

	filling bool
	deltaT  float64
	spectra map[float64]*l1spectra.PowerSpectrum
}

func (w *window) contains(ts float64) bool {
	return ts >= w.start && ts <= w.end
}

// Collector buffers the spectra of one component into the windows of its
// finished tracks. Windows are kept ordered by start time and evaluated
// independently against every spectrum, so overlapping windows each get
// their own copy.
type Collector struct {
	mu sync.Mutex

	cfg       Config
	component int
	timeStep  float64

	windows []*window

	// Collector-wide bin range, resolved against the first spectrum seen.
	first    int
	last     int
	resolved bool

	rejected  int
	dropped   int
	truncated int
}

// NewCollector returns a collector for component. timeStep is the slice
// spacing recorded on each spectrogram; pass 0 to infer it from the
// buffered timestamps.
func NewCollector(cfg Config, component int, timeStep float64) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Collector{cfg: cfg, component: component, timeStep: timeStep}, nil
}

// Component returns the component the collector serves.
func (c *Collector) Component() int { return c.component }

// OnTrackStart opens a window for t and primes it with the history slices
// whose timestamps fall inside it. It reports false when the window was
// rejected: a track of another component, or an empty per-track band.
func (c *Collector) OnTrackStart(t l3groups.Track, history ...l1spectra.Slice) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.Component != c.component {
		opsf("component %d: ignoring track %s of component %d", c.component, t.ID, t.Component)
		c.rejected++
		return false
	}

	w := &window{
		trackID:    t.ID,
		trackStart: t.StartTime,
		trackEnd:   t.EndTime,
		start:      t.StartTime - c.cfg.LeadTime,
		end:        t.EndTime + c.cfg.TrailTime,
		spectra:    make(map[float64]*l1spectra.PowerSpectrum),
	}
	if c.cfg.UseTrackFreqs {
		lo, hi := math.Inf(-1), math.Inf(1)
		if r := c.cfg.FrequencyRange; r != nil {
			lo, hi = r.Low, r.High
		}
		band := l1spectra.FrequencyRange{
			Low:  max(t.MinFrequency-c.cfg.LeadFreq, lo),
			High: min(t.MaxFrequency+c.cfg.TrailFreq, hi),
		}
		if err := band.Validate(); err != nil {
			opsf("component %d track %s: window rejected: %v", c.component, t.ID, err)
			c.rejected++
			return false
		}
		w.band = &band
	}

	// Insert after every window with the same start, keeping arrival order.
	i := sort.Search(len(c.windows), func(i int) bool { return c.windows[i].start > w.start })
	c.windows = append(c.windows, nil)
	copy(c.windows[i+1:], c.windows[i:])
	c.windows[i] = w

	replayed := 0
	for _, s := range history {
		v := s.Component(c.component)
		if v == nil || !w.contains(s.Timestamp) {
			continue
		}
		c.add(w, v, s.Timestamp)
		replayed++
	}
	if len(history) > 0 && history[0].Timestamp > w.start {
		diagf("component %d track %s: history starts at %.6f, lead from %.6f is lost",
			c.component, t.ID, history[0].Timestamp, w.start)
		c.truncated++
	}
	diagf("component %d track %s: window [%.6f, %.6f] opened, %d history spectra, %d active",
		c.component, t.ID, w.start, w.end, replayed, len(c.windows))
	return true
}

// OnSpectrum offers one spectrum to every active window and returns the
// windows it finalised, in start order. A window is finalised by the first
// spectrum past its bounds once it has started filling; a window passed
// without ever filling is dropped.
func (c *Collector) OnSpectrum(v l1spectra.View, timestamp float64) []*Spectrogram {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*Spectrogram
	kept := c.windows[:0]
	for _, w := range c.windows {
		switch {
		case w.contains(timestamp):
			c.add(w, v, timestamp)
		case w.filling:
			out = append(out, c.finalise(w))
			continue
		case timestamp > w.end:
			diagf("component %d track %s: window passed without spectra, dropped", c.component, w.trackID)
			c.dropped++
			continue
		}
		kept = append(kept, w)
	}
	clear(c.windows[len(kept):])
	c.windows = kept
	tracef("component %d t=%.6f: %d active windows, %d finalised", c.component, timestamp, len(c.windows), len(out))
	return out
}

// Flush finalises every filling window and drops the rest. Call it at the
// end of the stream.
func (c *Collector) Flush() []*Spectrogram {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*Spectrogram
	for _, w := range c.windows {
		if w.filling {
			out = append(out, c.finalise(w))
		} else {
			c.dropped++
		}
	}
	clear(c.windows)
	c.windows = c.windows[:0]
	return out
}

// add buffers the bin-range-restricted copy of v into w.
func (c *Collector) add(w *window, v l1spectra.View, ts float64) {
	if !w.resolved {
		if w.band != nil {
			w.first, w.last = l1spectra.FindBin(v, w.band.Low), l1spectra.FindBin(v, w.band.High)
		} else {
			if !c.resolved {
				c.first, c.last = c.cfg.binRange(v)
				c.resolved = true
				diagf("component %d: buffering bins %d-%d", c.component, c.first, c.last)
			}
			w.first, w.last = c.first, c.last
		}
		w.resolved = true
	}
	w.spectra[ts] = l1spectra.CopyBins(v, w.first, w.last)
	if w.deltaT == 0 {
		w.deltaT = c.timeStep
	}
	w.filling = true
}

// finalise converts w to a Spectrogram.
func (c *Collector) finalise(w *window) *Spectrogram {
	w.filling = false
	sg := &Spectrogram{
		ID:          uuid.NewString(),
		TrackID:     w.trackID,
		Component:   c.component,
		TrackStart:  w.trackStart,
		TrackEnd:    w.trackEnd,
		WindowStart: w.start,
		WindowEnd:   w.end,
		DeltaT:      w.deltaT,
		FirstBin:    w.first,
		Times:       make([]float64, 0, len(w.spectra)),
		Power:       make([][]float64, 0, len(w.spectra)),
	}
	for ts := range w.spectra {
		sg.Times = append(sg.Times, ts)
	}
	sort.Float64s(sg.Times)
	for i, ts := range sg.Times {
		p := w.spectra[ts]
		if i == 0 {
			sg.BinWidth = p.BinWidth()
			sg.MinFrequency = p.MinFrequency()
		}
		sg.Power = append(sg.Power, p.Values())
	}
	if sg.DeltaT == 0 && len(sg.Times) > 1 {
		sg.DeltaT = sg.Times[1] - sg.Times[0]
	}
	w.spectra = nil
	diagf("component %d track %s: spectrogram %s emitted, %d spectra, bins %d-%d",
		c.component, w.trackID, sg.ID, sg.Len(), w.first, w.last)
	return sg
}

// Active returns the number of open windows.
func (c *Collector) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}

// Rejected returns how many tracks were refused a window.
func (c *Collector) Rejected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rejected
}

// Dropped returns how many windows were discarded without ever filling.
func (c *Collector) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Truncated returns how many windows opened with lead spectra older than
// the supplied history.
func (c *Collector) Truncated() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.truncated
}

// Reset discards every window and the resolved bin range, for a new
// acquisition with the given slice spacing.
func (c *Collector) Reset(timeStep float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.windows)
	c.windows = c.windows[:0]
	c.resolved = false
	c.first, c.last = 0, 0
	c.rejected, c.dropped, c.truncated = 0, 0, 0
	c.timeStep = timeStep
}
