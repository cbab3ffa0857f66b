package sim

import (
	"container/heap"
	"fmt"
	"math/bits"
)

// Incremental keeps a running global plan: a min-heap of processors keyed by
// occupancy. Each arrival takes the top entry and each completion touches only
// the releasing processor's entry; both repair the heap locally with heap.Fix,
// so unaffected processors are never re-examined.
type Incremental struct {
	probeCost float64
	plan      *loadHeap
	byPID     []*loadItem
	stats     StrategyStats
}

func newIncremental(probeCost float64) *Incremental {
	return &Incremental{probeCost: probeCost}
}

// Name implements AllocationStrategy.
func (s *Incremental) Name() Mode { return ModeIncremental }

// Stats implements AllocationStrategy.
func (s *Incremental) Stats() StrategyStats { return s.stats }

// ensurePlan builds the plan from the pool the first time the strategy sees it.
func (s *Incremental) ensurePlan(pool *ResourcePool) {
	if s.plan == nil || len(s.byPID) != pool.Size() {
		s.plan, s.byPID = newLoadHeap(pool)
		s.stats.Recomputes++
	}
}

// repairCost is the number of heap entries a sift can touch: ⌈log2(np)⌉ + 1.
func repairCost(np int) int {
	return bits.Len(uint(np))
}

// OnArrival implements AllocationStrategy.
func (s *Incremental) OnArrival(call *Call, pool *ResourcePool) (Decision, error) {
	s.ensurePlan(pool)
	d, err := s.decide(call, pool)
	s.stats.record(&d, s.probeCost)
	return d, err
}

func (s *Incremental) decide(call *Call, pool *ResourcePool) (Decision, error) {
	top := (*s.plan)[0]
	load := top.load
	probes := 1
	if pool.Free(top.pid) == 0 {
		// Least-occupied entry is full and all processors share nprc: the pool is full.
		return rejected(probes, fmt.Sprintf("least-loaded processor %d is full", top.pid)), nil
	}
	d, err := allocateOrReject(call, pool, top.pid, probes, "")
	if err != nil || !d.Assigned {
		return d, err
	}
	d.Probes += s.repair(top.pid, pool)
	d.Reason = fmt.Sprintf("plan-top (load=%d)", load)
	return d, nil
}

// OnCompletion implements AllocationStrategy.
func (s *Incremental) OnCompletion(call *Call, pool *ResourcePool) error {
	pid := call.ProcessorID
	if err := pool.Release(call); err != nil {
		return err
	}
	s.ensurePlan(pool)
	s.repair(pid, pool)
	return nil
}

// repair re-reads one processor's occupancy and restores the heap order around it.
func (s *Incremental) repair(pid int, pool *ResourcePool) int {
	item := s.byPID[pid]
	item.load = pool.Processor(pid).Occupied
	heap.Fix(s.plan, item.index)
	s.stats.Repairs++
	return repairCost(pool.Size())
}
