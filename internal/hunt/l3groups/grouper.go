package l3groups

import (
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/cyclotron.report/internal/hunt/l2peaks"
	"github.com/google/uuid"
)

var (
	// ErrOutOfOrderSlice is returned when a slice index does not strictly
	// exceed the previous one.
	ErrOutOfOrderSlice = errors.New("l3groups: slice out of order")
	// ErrUnsortedBins is returned when a peak set is not strictly ascending.
	ErrUnsortedBins = errors.New("l3groups: peak bins not strictly ascending")
)

// candidate is an open track: append-only points plus the bin range seen at
// its most recent slice.
type candidate struct {
	points  []Point
	last    int64
	minLast int
	maxLast int
}

// Grouper clusters the peaks of successive slices of one component into
// tracks. Candidates are matched in creation order and the first match wins;
// they are never merged or split.
type Grouper struct {
	mu sync.Mutex

	cfg       Config
	component int
	axis      Axis

	open    []*candidate
	current int64
	started bool
	pruned  int
}

// NewGrouper returns a grouper for component.
func NewGrouper(cfg Config, component int, axis Axis) (*Grouper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Grouper{cfg: cfg, component: component, axis: axis}, nil
}

// Component returns the component the grouper serves.
func (g *Grouper) Component() int { return g.component }

// Add groups the peaks found in slice.
func (g *Grouper) Add(slice int64, peaks l2peaks.PeakSet) error {
	return g.AddBins(slice, peaks.Bins())
}

// AddBins groups the ascending peak bins found in slice. Slices must be
// strictly increasing; a violation leaves the grouper unchanged.
func (g *Grouper) AddBins(slice int64, bins []int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started && slice <= g.current {
		opsf("component %d: rejected slice %d after %d", g.component, slice, g.current)
		return fmt.Errorf("%w: slice %d after %d (component %d)", ErrOutOfOrderSlice, slice, g.current, g.component)
	}
	for i := 1; i < len(bins); i++ {
		if bins[i] <= bins[i-1] {
			return fmt.Errorf("%w: bin %d follows %d at slice %d", ErrUnsortedBins, bins[i], bins[i-1], slice)
		}
	}
	g.started = true
	g.current = slice

	g.pruneStale(slice)

	low, high := g.cfg.margins()
	same := g.cfg.MarginSameSlice
	for _, b := range bins {
		matched := false
		for _, c := range g.open {
			if c.last == slice {
				if b >= c.minLast-same && b <= c.maxLast+same {
					c.points = append(c.points, Point{Slice: slice, Bin: b})
					c.minLast = min(c.minLast, b)
					c.maxLast = max(c.maxLast, b)
					matched = true
					break
				}
			} else if c.last == slice-1 {
				if b >= c.minLast-low && b <= c.maxLast+high {
					c.points = append(c.points, Point{Slice: slice, Bin: b})
					c.last = slice
					c.minLast, c.maxLast = b, b
					matched = true
					break
				}
			}
		}
		if !matched {
			g.open = append(g.open, &candidate{
				points:  []Point{{Slice: slice, Bin: b}},
				last:    slice,
				minLast: b,
				maxLast: b,
			})
		}
	}
	tracef("component %d slice %d: %d bins, %d open candidates", g.component, slice, len(bins), len(g.open))
	return nil
}

// pruneStale discards small candidates that missed the previous slice.
func (g *Grouper) pruneStale(slice int64) {
	kept := g.open[:0]
	for _, c := range g.open {
		if c.last < slice-1 && len(c.points) <= g.cfg.MinimumGroupSize {
			g.pruned++
			continue
		}
		kept = append(kept, c)
	}
	clear(g.open[len(kept):])
	g.open = kept
}

// DrainClosed returns the tracks that can no longer be extended after the
// most recent slice, in creation order. Candidates small enough to be
// pruned are left for the next slice to discard, so the union of
// DrainClosed results and a final Drain equals what a single Drain at the
// end of the stream would return.
func (g *Grouper) DrainClosed() []Track {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.started {
		return nil
	}
	var tracks []Track
	kept := g.open[:0]
	for _, c := range g.open {
		if c.last < g.current && len(c.points) > g.cfg.MinimumGroupSize {
			if t, ok := g.finish(c); ok {
				tracks = append(tracks, t)
			}
			continue
		}
		kept = append(kept, c)
	}
	clear(g.open[len(kept):])
	g.open = kept
	return tracks
}

// Drain returns every open candidate that spans enough slices as a track
// and empties the grouper. Call it at the end of the stream.
func (g *Grouper) Drain() []Track {
	g.mu.Lock()
	defer g.mu.Unlock()

	var tracks []Track
	for _, c := range g.open {
		if t, ok := g.finish(c); ok {
			tracks = append(tracks, t)
		}
	}
	clear(g.open)
	g.open = g.open[:0]
	return tracks
}

// finish converts c to a track, or counts it as pruned if its span is too
// short. Ownership of c.points passes to the track.
func (g *Grouper) finish(c *candidate) (Track, bool) {
	t := newTrack(uuid.NewString(), g.component, c.points, g.axis)
	c.points = nil
	if t.MaxSlice-t.MinSlice < g.cfg.MinimumSpan {
		g.pruned++
		return Track{}, false
	}
	diagf("component %d track %s: slices %d-%d bins %d-%d, %d points",
		g.component, t.ID, t.MinSlice, t.MaxSlice, t.MinBin, t.MaxBin, len(t.Points))
	return t, true
}

// Open returns the number of open candidates.
func (g *Grouper) Open() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.open)
}

// Pruned returns how many candidates have been discarded since the last
// Reset.
func (g *Grouper) Pruned() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pruned
}

// CandidateSnapshot describes one open candidate.
type CandidateSnapshot struct {
	Size    int
	Last    int64
	MinLast int
	MaxLast int
}

// Snapshot returns the state of every open candidate in creation order.
func (g *Grouper) Snapshot() []CandidateSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]CandidateSnapshot, len(g.open))
	for i, c := range g.open {
		out[i] = CandidateSnapshot{Size: len(c.points), Last: c.last, MinLast: c.minLast, MaxLast: c.maxLast}
	}
	return out
}

// Reset discards every candidate and forgets the slice order, for a new
// acquisition.
func (g *Grouper) Reset(axis Axis) {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.open)
	g.open = g.open[:0]
	g.started = false
	g.current = 0
	g.pruned = 0
	g.axis = axis
}
