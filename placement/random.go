package placement

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// RandomSource is the uniform generator owned by a run.
// Only placement draws from it; it is recreated on every reset.
type RandomSource struct {
	seed uint64
	src  *rand.PCG
}

// NewRandomSource creates a source seeded deterministically from seed.
func NewRandomSource(seed uint64) *RandomSource {
	return &RandomSource{
		seed: seed,
		src:  rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
	}
}

// Seed returns the seed the source was created with.
func (r *RandomSource) Seed() uint64 {
	return r.seed
}

// Uniform draws a value from [min, max).
func (r *RandomSource) Uniform(min, max float64) float64 {
	if min == max {
		return min
	}
	return distuv.Uniform{Min: min, Max: max, Src: r.src}.Rand()
}
