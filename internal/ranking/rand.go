package ranking

import "math/rand/v2"

// RandSource supplies uniform random values in [0, 1). The scorers use
// it for the zero-score floor (posts) and the diversity jitter (users),
// so tests can substitute a deterministic source.
type RandSource interface {
	Float64() float64
}

// systemRand draws from the shared math/rand/v2 generator, which is
// safe for concurrent use.
type systemRand struct{}

func (systemRand) Float64() float64 {
	return rand.Float64()
}

// NewRandSource returns the default random source backed by math/rand/v2.
func NewRandSource() RandSource {
	return systemRand{}
}
