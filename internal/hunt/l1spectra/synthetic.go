package l1spectra

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Chirp is a linearly drifting tone present in [Start, Start+Duration).
type Chirp struct {
	Start          float64 `json:"start" yaml:"start"`                     // s
	Duration       float64 `json:"duration" yaml:"duration"`               // s
	StartFrequency float64 `json:"start_frequency" yaml:"start_frequency"` // Hz
	Slope          float64 `json:"slope" yaml:"slope"`                     // Hz/s
	Amplitude      float64 `json:"amplitude" yaml:"amplitude"`
}

// Active reports whether the chirp is on at time t.
func (c Chirp) Active(t float64) bool {
	return t >= c.Start && t < c.Start+c.Duration
}

// Frequency returns the instantaneous frequency at time t.
func (c Chirp) Frequency(t float64) float64 {
	return c.StartFrequency + c.Slope*(t-c.Start)
}

// Synthesizer generates a noisy multi-component acquisition containing a
// set of chirps. Every component receives independent noise; chirps with a
// Component outside the range are ignored.
type Synthesizer struct {
	SampleRate float64
	Components int
	NoiseSigma float64
	Chirps     map[int][]Chirp

	noise  distuv.Normal
	sample int64
}

// NewSynthesizer returns a deterministic synthesizer seeded with seed.
func NewSynthesizer(sampleRate float64, components int, noiseSigma float64, seed uint64) *Synthesizer {
	return &Synthesizer{
		SampleRate: sampleRate,
		Components: components,
		NoiseSigma: noiseSigma,
		Chirps:     make(map[int][]Chirp),
		noise: distuv.Normal{
			Mu:    0,
			Sigma: noiseSigma,
			Src:   rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
		},
	}
}

// AddChirp places c on component.
func (s *Synthesizer) AddChirp(component int, c Chirp) {
	s.Chirps[component] = append(s.Chirps[component], c)
}

// Next returns the next n frames as interleaved samples.
func (s *Synthesizer) Next(n int) []float64 {
	out := make([]float64, n*s.Components)
	for i := 0; i < n; i++ {
		t := float64(s.sample) / s.SampleRate
		for c := 0; c < s.Components; c++ {
			v := 0.0
			if s.NoiseSigma > 0 {
				v = s.noise.Rand()
			}
			for _, ch := range s.Chirps[c] {
				if !ch.Active(t) {
					continue
				}
				// Phase of a linear chirp: 2*pi*(f0*tau + slope*tau^2/2).
				tau := t - ch.Start
				v += ch.Amplitude * math.Sin(2*math.Pi*(ch.StartFrequency*tau+0.5*ch.Slope*tau*tau))
			}
			out[i*s.Components+c] = v
		}
		s.sample++
	}
	return out
}
