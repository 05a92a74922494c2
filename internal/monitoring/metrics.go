package monitoring

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the counters and gauges reported by the pipeline. Every
// series is labelled by component index. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SlicesProcessed      prometheus.Counter
	PeaksFound           *prometheus.CounterVec
	CandidatesPruned     *prometheus.CounterVec
	TracksEmitted        *prometheus.CounterVec
	SpectrogramsEmitted  *prometheus.CounterVec
	WindowsRejected      *prometheus.CounterVec
	MaskMismatches       prometheus.Counter
	HeadersApplied       prometheus.Counter
	OpenCandidates       *prometheus.GaugeVec
	ActiveWindows        *prometheus.GaugeVec
	SliceDurationSeconds prometheus.Histogram
}

// NewMetrics registers the track finder metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	labels := []string{"component"}

	return &Metrics{
		registry: reg,
		SlicesProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "trackhunt_slices_processed_total",
			Help: "Spectrum slices processed by the pipeline",
		}),
		PeaksFound: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trackhunt_peaks_found_total",
			Help: "Bins above the discriminator threshold",
		}, labels),
		CandidatesPruned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trackhunt_candidates_pruned_total",
			Help: "Track candidates discarded as noise or too short",
		}, labels),
		TracksEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trackhunt_tracks_emitted_total",
			Help: "Finished tracks drained from the grouper",
		}, labels),
		SpectrogramsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trackhunt_spectrograms_emitted_total",
			Help: "Collection windows finalised with at least one spectrum",
		}, labels),
		WindowsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trackhunt_windows_rejected_total",
			Help: "Collection windows rejected for inverted frequency bounds",
		}, labels),
		MaskMismatches: f.NewCounter(prometheus.CounterOpts{
			Name: "trackhunt_mask_mismatches_total",
			Help: "Discriminations run with a full mask because the mask size did not match",
		}),
		HeadersApplied: f.NewCounter(prometheus.CounterOpts{
			Name: "trackhunt_headers_applied_total",
			Help: "Acquisition headers applied to the pipeline",
		}),
		OpenCandidates: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trackhunt_open_candidates",
			Help: "Track candidates currently open",
		}, labels),
		ActiveWindows: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trackhunt_active_windows",
			Help: "Spectrogram collection windows currently active",
		}, labels),
		SliceDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trackhunt_slice_duration_seconds",
			Help:    "Wall time spent processing one slice",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler exposing the metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ComponentLabel formats a component index as a label value.
func ComponentLabel(component int) string {
	return strconv.Itoa(component)
}

// ObserveSlice records one processed slice and its duration.
func (m *Metrics) ObserveSlice(seconds float64) {
	if m == nil {
		return
	}
	m.SlicesProcessed.Inc()
	m.SliceDurationSeconds.Observe(seconds)
}

// AddPeaks records n peaks found on component.
func (m *Metrics) AddPeaks(component, n int) {
	if m == nil || n == 0 {
		return
	}
	m.PeaksFound.WithLabelValues(ComponentLabel(component)).Add(float64(n))
}

// AddPruned records n candidates pruned on component.
func (m *Metrics) AddPruned(component, n int) {
	if m == nil || n == 0 {
		return
	}
	m.CandidatesPruned.WithLabelValues(ComponentLabel(component)).Add(float64(n))
}

// AddTracks records n tracks emitted on component.
func (m *Metrics) AddTracks(component, n int) {
	if m == nil || n == 0 {
		return
	}
	m.TracksEmitted.WithLabelValues(ComponentLabel(component)).Add(float64(n))
}

// AddSpectrograms records n spectrograms emitted on component.
func (m *Metrics) AddSpectrograms(component, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SpectrogramsEmitted.WithLabelValues(ComponentLabel(component)).Add(float64(n))
}

// AddRejectedWindows records n windows rejected on component.
func (m *Metrics) AddRejectedWindows(component, n int) {
	if m == nil || n == 0 {
		return
	}
	m.WindowsRejected.WithLabelValues(ComponentLabel(component)).Add(float64(n))
}

// IncMaskMismatch records one discrimination run with a substitute mask.
func (m *Metrics) IncMaskMismatch() {
	if m == nil {
		return
	}
	m.MaskMismatches.Inc()
}

// IncHeader records one applied header.
func (m *Metrics) IncHeader() {
	if m == nil {
		return
	}
	m.HeadersApplied.Inc()
}

// SetOpen records the open candidate and active window counts of component.
func (m *Metrics) SetOpen(component, candidates, windows int) {
	if m == nil {
		return
	}
	label := ComponentLabel(component)
	m.OpenCandidates.WithLabelValues(label).Set(float64(candidates))
	m.ActiveWindows.WithLabelValues(label).Set(float64(windows))
}
