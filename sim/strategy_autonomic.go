package sim

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// Autonomic places calls without any global state or recomputation pass.
//
// Each arrival samples k processors at random and the least loaded one with a
// free slot accepts (power-of-k choices; ties go to the first sampled). When
// every sampled processor refuses, the call walks the ring from its hashed home
// processor until one accepts locally. It is rejected only when every
// processor refused.
type Autonomic struct {
	probes    int
	probeCost float64
	rng       *rand.Rand
	stats     StrategyStats
}

func newAutonomic(probes int, probeCost float64, rng *rand.Rand) *Autonomic {
	return &Autonomic{probes: probes, probeCost: probeCost, rng: rng}
}

// Name implements AllocationStrategy.
func (a *Autonomic) Name() Mode { return ModeAutonomic }

// Stats implements AllocationStrategy.
func (a *Autonomic) Stats() StrategyStats { return a.stats }

// OnArrival implements AllocationStrategy.
func (a *Autonomic) OnArrival(call *Call, pool *ResourcePool) (Decision, error) {
	d, err := a.decide(call, pool)
	a.stats.record(&d, a.probeCost)
	return d, err
}

func (a *Autonomic) decide(call *Call, pool *ResourcePool) (Decision, error) {
	np := pool.Size()
	probes := 0
	best := Unassigned
	for i := 0; i < a.probes; i++ {
		pid := a.rng.IntN(np)
		probes++
		if pool.Free(pid) == 0 {
			continue
		}
		if best == Unassigned || pool.Load(pid) < pool.Load(best) {
			best = pid
		}
	}
	if best != Unassigned {
		return allocateOrReject(call, pool, best, probes, fmt.Sprintf("power-of-%d (load=%.3f)", a.probes, pool.Load(best)))
	}

	home := homeProcessor(call.ID, np)
	for i := 0; i < np; i++ {
		pid := (home + i) % np
		probes++
		if pool.Free(pid) > 0 {
			return allocateOrReject(call, pool, pid, probes, fmt.Sprintf("ring-walk from %d (hops=%d)", home, i))
		}
	}
	return rejected(probes, "every processor refused"), nil
}

// OnCompletion implements AllocationStrategy. Autonomic keeps no plan to repair.
func (a *Autonomic) OnCompletion(call *Call, pool *ResourcePool) error {
	return pool.Release(call)
}

// homeProcessor hashes a call ID onto a processor index.
func homeProcessor(callID int64, np int) int {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(callID))
	return int(xxhash.Sum64(buf[:]) % uint64(np))
}
