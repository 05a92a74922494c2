package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/cyclotron.report/internal/hunt/l3groups"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l4windows"
	"github.com/banshee-data/cyclotron.report/internal/hunt/pipeline"
)

// SummarySource reports what a pipeline has processed so far.
type SummarySource interface {
	Summary() pipeline.Summary
}

// TrackLister lists stored tracks.
type TrackLister interface {
	ListTracks(ctx context.Context, component, limit int) ([]l3groups.Track, error)
}

// SpectrogramLister lists the stored spectrograms of one track.
type SpectrogramLister interface {
	ListSpectrogramsForTrack(ctx context.Context, trackID string) ([]*l4windows.Spectrogram, error)
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address      string
	Summary      SummarySource     // Optional
	Tracks       TrackLister       // Optional
	Spectrograms SpectrogramLister // Optional
	Metrics      http.Handler      // Optional, served at /metrics
}

// WebServer serves health, summary, metrics and stored results.
type WebServer struct {
	address      string
	summary      SummarySource
	tracks       TrackLister
	spectrograms SpectrogramLister
	metrics      http.Handler
	server       *http.Server
	started      time.Time
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:      config.Address,
		summary:      config.Summary,
		tracks:       config.Tracks,
		spectrograms: config.Spectrograms,
		metrics:      config.Metrics,
		started:      time.Now(),
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.setupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Start serves until ctx is cancelled, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server routine stopped")
	return nil
}

// Close shuts down the web server.
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/summary", ws.handleSummary)
	mux.HandleFunc("/api/tracks", ws.handleTracks)
	mux.HandleFunc("/api/spectrograms", ws.handleSpectrograms)
	if ws.metrics != nil {
		mux.Handle("/metrics", ws.metrics)
	}
	return mux
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		opsf("encode response: %v", err)
	}
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, map[string]string{
		"status":    "ok",
		"service":   "trackhunt",
		"uptime":    time.Since(ws.started).Truncate(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (ws *WebServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.summary == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no pipeline configured")
		return
	}
	ws.writeJSON(w, ws.summary.Summary())
}

// trackJSON is the wire form of a stored track, without its points.
type trackJSON struct {
	ID             string  `json:"id"`
	Component      int     `json:"component"`
	Points         int     `json:"n_points"`
	MinSlice       int64   `json:"min_slice"`
	MaxSlice       int64   `json:"max_slice"`
	MinBin         int     `json:"min_bin"`
	MaxBin         int     `json:"max_bin"`
	StartTime      float64 `json:"start_time"`
	EndTime        float64 `json:"end_time"`
	StartFrequency float64 `json:"start_frequency"`
	EndFrequency   float64 `json:"end_frequency"`
	MinFrequency   float64 `json:"min_frequency"`
	MaxFrequency   float64 `json:"max_frequency"`
}

// handleTracks lists stored tracks.
// Query params:
//
//	component (optional, default all)
//	limit (optional, default 100)
func (ws *WebServer) handleTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.tracks == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no track store configured")
		return
	}
	component, err := intParam(r, "component", -1)
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := intParam(r, "limit", 100)
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	tracks, err := ws.tracks.ListTracks(r.Context(), component, limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list tracks: %v", err))
		return
	}
	out := make([]trackJSON, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, trackJSON{
			ID:             t.ID,
			Component:      t.Component,
			Points:         len(t.Points),
			MinSlice:       t.MinSlice,
			MaxSlice:       t.MaxSlice,
			MinBin:         t.MinBin,
			MaxBin:         t.MaxBin,
			StartTime:      t.StartTime,
			EndTime:        t.EndTime,
			StartFrequency: t.StartFrequency,
			EndFrequency:   t.EndFrequency,
			MinFrequency:   t.MinFrequency,
			MaxFrequency:   t.MaxFrequency,
		})
	}
	tracef("GET %s: %d tracks", r.URL.RequestURI(), len(out))
	ws.writeJSON(w, out)
}

// spectrogramJSON describes a stored spectrogram. Power is included only
// when requested.
type spectrogramJSON struct {
	ID           string      `json:"id"`
	TrackID      string      `json:"track_id"`
	Component    int         `json:"component"`
	WindowStart  float64     `json:"window_start"`
	WindowEnd    float64     `json:"window_end"`
	DeltaT       float64     `json:"delta_t"`
	FirstBin     int         `json:"first_bin"`
	BinWidth     float64     `json:"bin_width"`
	MinFrequency float64     `json:"min_frequency"`
	Spectra      int         `json:"n_spectra"`
	Bins         int         `json:"n_bins"`
	Times        []float64   `json:"times,omitempty"`
	Power        [][]float64 `json:"power,omitempty"`
}

// handleSpectrograms lists the spectrograms of one track.
// Query params:
//
//	track_id (required)
//	power (optional, include the power matrix when "true")
func (ws *WebServer) handleSpectrograms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.spectrograms == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no spectrogram store configured")
		return
	}
	trackID := r.URL.Query().Get("track_id")
	if trackID == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "missing 'track_id' parameter")
		return
	}
	withPower := r.URL.Query().Get("power") == "true"

	sgs, err := ws.spectrograms.ListSpectrogramsForTrack(r.Context(), trackID)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list spectrograms: %v", err))
		return
	}
	out := make([]spectrogramJSON, 0, len(sgs))
	for _, sg := range sgs {
		j := spectrogramJSON{
			ID:           sg.ID,
			TrackID:      sg.TrackID,
			Component:    sg.Component,
			WindowStart:  sg.WindowStart,
			WindowEnd:    sg.WindowEnd,
			DeltaT:       sg.DeltaT,
			FirstBin:     sg.FirstBin,
			BinWidth:     sg.BinWidth,
			MinFrequency: sg.MinFrequency,
			Spectra:      sg.Len(),
			Bins:         sg.NBins(),
		}
		if withPower {
			j.Times, j.Power = sg.Times, sg.Power
		}
		out = append(out, j)
	}
	ws.writeJSON(w, out)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid '%s' parameter: %q", name, s)
	}
	return v, nil
}
