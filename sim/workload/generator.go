package workload

import (
	"fmt"
	"math/rand/v2"

	"github.com/pcs-sim/pcs-sim/sim"
)

// Generator is the traffic generator of one run: a lazy, unbounded sequence of
// call arrivals. Call IDs are sequential from 0 and never reused by a generator.
// A generator is restartable only by building a new one from a (new) seed.
type Generator struct {
	arrivals  *ArrivalProcess
	durations Sampler
	classes   int
	classRNG  *rand.Rand

	clock  float64
	nextID int64
}

// NewGenerator builds the generator for cfg. Gaps, durations and classes draw
// from separate subsystem streams of rng, so changing one distribution never
// perturbs the others.
func NewGenerator(cfg sim.RunConfig, rng *sim.PartitionedRNG) (*Generator, error) {
	gaps, err := NewSampler(cfg.ArrivalDist, cfg.TA, rng.ForSubsystem(sim.SubsystemArrivals))
	if err != nil {
		return nil, fmt.Errorf("arrival distribution: %w", err)
	}
	durations, err := NewSampler(cfg.ServiceDist, cfg.ServiceMean, rng.ForSubsystem(sim.SubsystemService))
	if err != nil {
		return nil, fmt.Errorf("service distribution: %w", err)
	}
	var profile RateProfile = ConstantProfile{}
	if cfg.VariableTA {
		profile = DiurnalProfile{}
	}
	return &Generator{
		arrivals:  NewArrivalProcess(gaps, profile),
		durations: durations,
		classes:   cfg.P,
		classRNG:  rng.ForSubsystem(sim.SubsystemClasses),
	}, nil
}

// Next advances the generator's clock by one gap and returns the arriving call.
func (g *Generator) Next() *sim.Call {
	g.clock += g.arrivals.NextGap(g.clock)
	class := 0
	if g.classes > 0 {
		class = g.classRNG.IntN(g.classes)
	}
	call := sim.NewCall(g.nextID, g.clock, g.durations.Sample(), class)
	g.nextID++
	return call
}

// Generated returns how many calls Next has produced.
func (g *Generator) Generated() int64 {
	return g.nextID
}
