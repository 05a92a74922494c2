// Package testutil provides shared spectra fixtures for tests that drive
// the hunt pipeline end to end.
package testutil

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/cyclotron.report/internal/hunt/l1spectra"
)

// Fixture levels: a flat noise floor and a peak far above any threshold
// the default tuning uses.
const (
	FloorPower = 1.0
	PeakPower  = 1000.0
)

// FlatPower returns n bins at level.
func FlatPower(n int, level float64) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = level
	}
	return v
}

// PeakSlice returns slice index of h with every component flat at
// FloorPower and the given bins of component 0 raised to PeakPower.
// Negative or out-of-range bins are ignored.
func PeakSlice(h l1spectra.Header, index int64, bins ...int) l1spectra.Slice {
	s := l1spectra.Slice{Index: index, Timestamp: h.Timestamp(index)}
	for c := 0; c < h.Components; c++ {
		v := FlatPower(h.NBins, FloorPower)
		if c == 0 {
			for _, b := range bins {
				if b >= 0 && b < len(v) {
					v[b] = PeakPower
				}
			}
		}
		s.Spectra = append(s.Spectra, l1spectra.NewPowerSpectrum(v, h.BinWidth, h.MinFrequency))
	}
	return s
}

// ChirpSlices returns n consecutive slices starting at first, with a
// component 0 peak at startBin that moves by slope bins per slice, then
// quiet slices with no peak.
func ChirpSlices(h l1spectra.Header, first int64, n, startBin, slope, quiet int) []l1spectra.Slice {
	out := make([]l1spectra.Slice, 0, n+quiet)
	for i := 0; i < n; i++ {
		out = append(out, PeakSlice(h, first+int64(i), startBin+slope*i))
	}
	for i := 0; i < quiet; i++ {
		out = append(out, PeakSlice(h, first+int64(n+i)))
	}
	return out
}

// Float32Samples encodes samples as little-endian float32, the raw input
// format of the trackhunt command.
func Float32Samples(samples []float64) []byte {
	var buf bytes.Buffer
	for _, s := range samples {
		binary.Write(&buf, binary.LittleEndian, float32(s))
	}
	return buf.Bytes()
}

// WriteTempFile writes data to name inside a per-test temporary directory
// and returns the full path.
func WriteTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
