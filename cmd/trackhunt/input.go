package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/banshee-data/cyclotron.report/internal/hunt/l1spectra"
	"github.com/banshee-data/cyclotron.report/internal/monitoring"
)

// sampleSource yields interleaved samples in whole frames. Next returns
// io.EOF once the source is exhausted.
type sampleSource interface {
	Next() ([]float64, error)
}

// rawSource reads little-endian float32 samples interleaved by component.
type rawSource struct {
	r          *bufio.Reader
	components int
	buf        []byte
	out        []float64
}

func newRawSource(r io.Reader, components, frames int) *rawSource {
	return &rawSource{
		r:          bufio.NewReaderSize(r, 1<<16),
		components: components,
		buf:        make([]byte, 4*components*frames),
		out:        make([]float64, components*frames),
	}
}

func (s *rawSource) Next() ([]float64, error) {
	n, err := io.ReadFull(s.r, s.buf)
	switch {
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		frame := 4 * s.components
		if rem := n % frame; rem != 0 {
			monitoring.Logf("input ends with a partial frame: dropping %d bytes", rem)
			n -= rem
		}
		if n == 0 {
			return nil, io.EOF
		}
	case err != nil:
		return nil, fmt.Errorf("read input: %w", err)
	}
	out := s.out[:n/4]
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(s.buf[4*i:])))
	}
	return out, nil
}

// syntheticSource draws a fixed number of frames from a Synthesizer.
type syntheticSource struct {
	synth     *l1spectra.Synthesizer
	remaining int64
	chunk     int
}

func (s *syntheticSource) Next() ([]float64, error) {
	if s.remaining <= 0 {
		return nil, io.EOF
	}
	n := int64(s.chunk)
	if n > s.remaining {
		n = s.remaining
	}
	s.remaining -= n
	return s.synth.Next(int(n)), nil
}

// source opens the configured input. The returned close function is never
// nil.
func (o *options) source(h l1spectra.Header, stdin io.Reader) (sampleSource, func() error, error) {
	noop := func() error { return nil }
	if o.synthetic {
		if o.synthSecs <= 0 {
			return nil, noop, fmt.Errorf("--synthetic-duration must be positive, got %g", o.synthSecs)
		}
		synth := l1spectra.NewSynthesizer(h.SampleRate, h.Components, o.synthNoise, o.synthSeed)
		for _, s := range o.chirps {
			component, c, err := parseChirp(s)
			if err != nil {
				return nil, noop, fmt.Errorf("--chirp: %w", err)
			}
			if component >= h.Components {
				return nil, noop, fmt.Errorf("--chirp: component %d out of range (%d components)", component, h.Components)
			}
			synth.AddChirp(component, c)
		}
		return &syntheticSource{
			synth:     synth,
			remaining: int64(math.Round(o.synthSecs * h.SampleRate)),
			chunk:     h.StepSize,
		}, noop, nil
	}

	if o.input == "" || o.input == "-" {
		return newRawSource(stdin, h.Components, h.StepSize), noop, nil
	}
	f, err := os.Open(o.input)
	if err != nil {
		return nil, noop, fmt.Errorf("open input: %w", err)
	}
	return newRawSource(f, h.Components, h.StepSize), f.Close, nil
}
