package monitor

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/cyclotron.report/internal/hunt/l4windows"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// powerFloorDB is the level drawn for bins with no power.
const powerFloorDB = -120.0

// WaterfallPlotter writes one PNG heat map per spectrogram it receives.
// It implements the pipeline's SpectrogramSink; while stopped it discards
// everything it is given.
type WaterfallPlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string
	colours   int
	width     vg.Length
	height    vg.Length
	plots     int
}

// NewWaterfallPlotter returns a stopped plotter.
func NewWaterfallPlotter() *WaterfallPlotter {
	return &WaterfallPlotter{colours: 255, width: 10 * vg.Inch, height: 6 * vg.Inch}
}

// Start enables plotting into outputDir, creating it if needed.
func (wp *WaterfallPlotter) Start(outputDir string) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	wp.outputDir = outputDir
	wp.enabled = true
	wp.plots = 0
	return nil
}

// Stop disables plotting.
func (wp *WaterfallPlotter) Stop() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.enabled = false
}

// IsEnabled returns true if the plotter is currently writing plots.
func (wp *WaterfallPlotter) IsEnabled() bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.enabled
}

// GetOutputDir returns the current output directory for plots.
func (wp *WaterfallPlotter) GetOutputDir() string {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.outputDir
}

// GetPlotCount returns the number of plots written since Start.
func (wp *WaterfallPlotter) GetPlotCount() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.plots
}

// WriteSpectrogram renders sg to <outputDir>/c<component>_<id>.png.
func (wp *WaterfallPlotter) WriteSpectrogram(_ context.Context, sg *l4windows.Spectrogram) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.enabled || sg == nil {
		return nil
	}
	if sg.Len() == 0 || sg.NBins() == 0 {
		return fmt.Errorf("spectrogram %s is empty", sg.ID)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Component %d, track %s", sg.Component, shortID(sg.TrackID))
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Frequency (Hz)"

	grid := newWaterfallGrid(sg)
	hm := plotter.NewHeatMap(grid, moreland.ExtendedBlackBody().Palette(wp.colours))
	if hm.Min == hm.Max {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)

	file := filepath.Join(wp.outputDir, fmt.Sprintf("c%d_%s.png", sg.Component, fileSafe(sg.ID)))
	if err := p.Save(wp.width, wp.height, file); err != nil {
		return fmt.Errorf("save waterfall: %w", err)
	}
	wp.plots++
	diagf("wrote %s (%d spectra x %d bins)", file, sg.Len(), sg.NBins())
	return nil
}

// waterfallGrid adapts a spectrogram to plotter.GridXYZ: columns are
// spectra in time order, rows are bins, Z is power in dB.
type waterfallGrid struct {
	sg *l4windows.Spectrogram
	db [][]float64
}

func newWaterfallGrid(sg *l4windows.Spectrogram) *waterfallGrid {
	g := &waterfallGrid{sg: sg, db: make([][]float64, sg.Len())}
	for c, row := range sg.Power {
		g.db[c] = make([]float64, len(row))
		for r, v := range row {
			g.db[c][r] = powerDB(v)
		}
	}
	return g
}

func (g *waterfallGrid) Dims() (c, r int)   { return g.sg.Len(), g.sg.NBins() }
func (g *waterfallGrid) Z(c, r int) float64 { return g.db[c][r] }
func (g *waterfallGrid) X(c int) float64    { return g.sg.Times[c] }

// Y returns the centre frequency of row r.
func (g *waterfallGrid) Y(r int) float64 {
	return g.sg.MinFrequency + g.sg.BinWidth*(float64(r)+0.5)
}

func powerDB(v float64) float64 {
	if v <= 0 || math.IsNaN(v) {
		return powerFloorDB
	}
	return math.Max(10*math.Log10(v), powerFloorDB)
}

// fileSafe maps anything outside [A-Za-z0-9_-] to '_' so an ID can never
// escape the output directory.
func fileSafe(id string) string {
	const maxLen = 64
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	if out == "" {
		return "unknown"
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakePlotOutputDir returns a timestamped output directory for plots.
// For recorded input: <baseDir>/<input_basename>/<timestamp>
// For live or synthetic input: <baseDir>/live_<timestamp>
func MakePlotOutputDir(baseDir, inputFile string) string {
	ts := FormatTimestamp(time.Now())
	if inputFile != "" && inputFile != "-" {
		base := filepath.Base(inputFile)
		name := base[:len(base)-len(filepath.Ext(base))]
		return filepath.Join(baseDir, name, ts)
	}
	return filepath.Join(baseDir, "live_"+ts)
}
