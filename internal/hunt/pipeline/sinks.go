package pipeline

import (
	"context"
	"reflect"
	"sync"

	"github.com/banshee-data/cyclotron.report/internal/hunt/l3groups"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l4windows"
)

// TrackSink receives every finished track.
type TrackSink interface {
	WriteTrack(ctx context.Context, t l3groups.Track) error
}

// SpectrogramSink receives every finalised spectrogram window.
type SpectrogramSink interface {
	WriteSpectrogram(ctx context.Context, sg *l4windows.Spectrogram) error
}

// isNilInterface checks if an interface value is nil or contains a nil pointer.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Recorder is an in-memory sink for both tracks and spectrograms.
type Recorder struct {
	mu           sync.Mutex
	tracks       []l3groups.Track
	spectrograms []*l4windows.Spectrogram
}

// WriteTrack implements TrackSink.
func (r *Recorder) WriteTrack(_ context.Context, t l3groups.Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracks = append(r.tracks, t)
	return nil
}

// WriteSpectrogram implements SpectrogramSink.
func (r *Recorder) WriteSpectrogram(_ context.Context, sg *l4windows.Spectrogram) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spectrograms = append(r.spectrograms, sg)
	return nil
}

// Tracks returns a copy of the recorded tracks in delivery order.
func (r *Recorder) Tracks() []l3groups.Track {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]l3groups.Track(nil), r.tracks...)
}

// Spectrograms returns a copy of the recorded spectrograms in delivery order.
func (r *Recorder) Spectrograms() []*l4windows.Spectrogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*l4windows.Spectrogram(nil), r.spectrograms...)
}
