package scoring

import (
	"math/rand"
	"sync"
	"time"
)

// Jitter supplies the bounded random perturbation added to every score.
// Implementations must be safe for concurrent use.
type Jitter interface {
	Sample() float64
}

// UniformJitter samples independently on each call from [-Amplitude, +Amplitude].
type UniformJitter struct {
	amplitude float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewUniformJitter creates a seeded jitter source. A zero seed seeds from the clock.
func NewUniformJitter(amplitude float64, seed int64) *UniformJitter {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &UniformJitter{
		amplitude: amplitude,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Sample returns a value in [-amplitude, +amplitude].
func (u *UniformJitter) Sample() float64 {
	if u.amplitude == 0 {
		return 0
	}
	u.mu.Lock()
	f := u.rng.Float64()
	u.mu.Unlock()
	return (2*f - 1) * u.amplitude
}

// Amplitude returns the half-width of the sampling range.
func (u *UniformJitter) Amplitude() float64 {
	return u.amplitude
}

// FixedJitter always returns the same perturbation.
type FixedJitter float64

func (f FixedJitter) Sample() float64 {
	return float64(f)
}
