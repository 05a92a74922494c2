package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveSlice(0.001)
	m.ObserveSlice(0.002)
	m.AddPeaks(0, 3)
	m.AddPeaks(1, 2)
	m.AddPeaks(1, 0)
	m.AddPruned(0, 1)
	m.AddTracks(1, 4)
	m.AddSpectrograms(1, 2)
	m.AddRejectedWindows(0, 1)
	m.IncMaskMismatch()
	m.IncHeader()
	m.SetOpen(0, 7, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SlicesProcessed))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PeaksFound.WithLabelValues("0")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PeaksFound.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CandidatesPruned.WithLabelValues("0")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.TracksEmitted.WithLabelValues("1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SpectrogramsEmitted.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WindowsRejected.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MaskMismatches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HeadersApplied))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.OpenCandidates.WithLabelValues("0")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActiveWindows.WithLabelValues("0")))
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.AddTracks(0, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `trackhunt_tracks_emitted_total{component="0"} 1`))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveSlice(1)
	m.AddPeaks(0, 1)
	m.AddPruned(0, 1)
	m.AddTracks(0, 1)
	m.AddSpectrograms(0, 1)
	m.AddRejectedWindows(0, 1)
	m.IncMaskMismatch()
	m.IncHeader()
	m.SetOpen(0, 1, 1)
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
