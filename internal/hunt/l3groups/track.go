package l3groups

import (
	"github.com/banshee-data/cyclotron.report/internal/hunt/l1spectra"
)

// Point is one peak assigned to a track: a bin at a slice.
type Point struct {
	Slice int64
	Bin   int
}

// Axis converts slice and bin indices to seconds and Hz.
type Axis struct {
	TimeStep     float64 // seconds between slices
	BinWidth     float64 // Hz per bin
	MinFrequency float64 // lower edge of bin 0
}

// AxisFromHeader returns the axis of an acquisition.
func AxisFromHeader(h l1spectra.Header) Axis {
	return Axis{TimeStep: h.TimeStep(), BinWidth: h.BinWidth, MinFrequency: h.MinFrequency}
}

// Time returns the start time of slice.
func (a Axis) Time(slice int64) float64 {
	return float64(slice) * a.TimeStep
}

// BinCenter returns the centre frequency of bin.
func (a Axis) BinCenter(bin int) float64 {
	return a.MinFrequency + a.BinWidth*(float64(bin)+0.5)
}

// BinLow returns the lower edge of bin.
func (a Axis) BinLow(bin int) float64 {
	return a.MinFrequency + a.BinWidth*float64(bin)
}

// Track is a finished candidate: its points plus their bounding box in
// index space and in real units.
type Track struct {
	ID        string
	Component int
	Points    []Point

	MinSlice int64
	MaxSlice int64
	MinBin   int
	MaxBin   int

	StartTime      float64 // s, start of the first slice
	EndTime        float64 // s, start of the last slice
	StartFrequency float64 // Hz, mean bin centre at the first slice
	EndFrequency   float64 // Hz, mean bin centre at the last slice
	MinFrequency   float64 // Hz, lower edge of MinBin
	MaxFrequency   float64 // Hz, upper edge of MaxBin
}

// Len returns the number of points.
func (t Track) Len() int { return len(t.Points) }

// Duration returns EndTime - StartTime.
func (t Track) Duration() float64 { return t.EndTime - t.StartTime }

// Slope returns the frequency drift in Hz/s, or 0 for a single-slice track.
func (t Track) Slope() float64 {
	if d := t.Duration(); d > 0 {
		return (t.EndFrequency - t.StartFrequency) / d
	}
	return 0
}

// newTrack computes the bounding box of points and takes ownership of them.
func newTrack(id string, component int, points []Point, axis Axis) Track {
	t := Track{ID: id, Component: component, Points: points}
	if len(points) == 0 {
		return t
	}
	t.MinSlice, t.MaxSlice = points[0].Slice, points[0].Slice
	t.MinBin, t.MaxBin = points[0].Bin, points[0].Bin
	for _, p := range points[1:] {
		t.MinSlice = min(t.MinSlice, p.Slice)
		t.MaxSlice = max(t.MaxSlice, p.Slice)
		t.MinBin = min(t.MinBin, p.Bin)
		t.MaxBin = max(t.MaxBin, p.Bin)
	}

	var startSum, endSum float64
	var startN, endN int
	for _, p := range points {
		if p.Slice == t.MinSlice {
			startSum += axis.BinCenter(p.Bin)
			startN++
		}
		if p.Slice == t.MaxSlice {
			endSum += axis.BinCenter(p.Bin)
			endN++
		}
	}
	t.StartTime = axis.Time(t.MinSlice)
	t.EndTime = axis.Time(t.MaxSlice)
	t.StartFrequency = startSum / float64(startN)
	t.EndFrequency = endSum / float64(endN)
	t.MinFrequency = axis.BinLow(t.MinBin)
	t.MaxFrequency = axis.BinLow(t.MaxBin + 1)
	return t
}
