package workload

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pcs-sim/pcs-sim/sim"
)

// MinDuration is the floor applied to every sampled gap and service duration, so
// no two events of one call share a timestamp and no call is served in zero time.
const MinDuration = 1e-9

// Sampler draws positive durations with a fixed mean.
type Sampler interface {
	// Sample returns the next duration, always >= MinDuration.
	Sample() float64
	// Mean returns the configured mean.
	Mean() float64
}

// ExponentialSampler draws memoryless durations (CV=1).
type ExponentialSampler struct {
	dist distuv.Exponential
	mean float64
}

func (s *ExponentialSampler) Sample() float64 {
	return max(s.dist.Rand(), MinDuration)
}

func (s *ExponentialSampler) Mean() float64 { return s.mean }

// UniformSampler draws durations uniformly on [0, 2*mean].
type UniformSampler struct {
	dist distuv.Uniform
	mean float64
}

func (s *UniformSampler) Sample() float64 {
	return max(s.dist.Rand(), MinDuration)
}

func (s *UniformSampler) Mean() float64 { return s.mean }

// NewSampler creates a sampler by distribution name.
// Valid names are defined in sim.ValidDistributions.
func NewSampler(name string, mean float64, src rand.Source) (Sampler, error) {
	if !(mean > 0) {
		return nil, fmt.Errorf("sampler mean must be > 0, got %v", mean)
	}
	switch name {
	case sim.DistExponential:
		return &ExponentialSampler{dist: distuv.Exponential{Rate: 1 / mean, Src: src}, mean: mean}, nil
	case sim.DistUniform:
		return &UniformSampler{dist: distuv.Uniform{Min: 0, Max: 2 * mean, Src: src}, mean: mean}, nil
	default:
		return nil, fmt.Errorf("unknown distribution %q", name)
	}
}
