package feather

import (
	"math"
	"math/rand/v2"
	"sync"
)

// Triangular draws from a triangular distribution over [min,max] peaked at the midpoint
func Triangular(r *rand.Rand, min, max float64) float64 {
	return TriangularMode(r, min, max, min+(max-min)/2)
}

// TriangularMode draws from a triangular distribution over [min,max] peaked at mode,
// using inverse-CDF sampling. A zero-width range returns min without drawing.
func TriangularMode(r *rand.Rand, min, max, mode float64) float64 {
	if max < min {
		min, max = max, min
	}
	width := max - min
	if width == 0 {
		return min
	}
	mode = math.Min(math.Max(mode, min), max)

	u := r.Float64()
	var v float64
	if u < (mode-min)/width {
		v = min + math.Sqrt(u*width*(mode-min))
	} else {
		v = max - math.Sqrt((1-u)*width*(max-mode))
	}
	return math.Min(math.Max(v, min), max)
}

// Sampler is a goroutine-safe random source for the feathering engine.
// Seeding it makes every draw reproducible.
type Sampler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSampler returns a sampler seeded with seed
func NewSampler(seed uint64) *Sampler {
	return &Sampler{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandomSampler returns a sampler with a random seed
func NewRandomSampler() *Sampler {
	return NewSampler(rand.Uint64())
}

func (s *Sampler) Triangular(min, max float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Triangular(s.rnd, min, max)
}

// Float64 is uniform in [0,1)
func (s *Sampler) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// IntN is uniform in [0,n); n must be > 0
func (s *Sampler) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.IntN(n)
}
