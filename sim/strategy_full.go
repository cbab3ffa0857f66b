package sim

import (
	"container/heap"
	"fmt"
)

// Full rebuilds the whole allocation plan from scratch every recomputeEvery
// arrivals. The plan is computed by water-filling: starting from the current
// occupancy of all np processors it places the next recomputeEvery calls one at
// a time on the least-loaded processor, which minimizes both the maximum and the
// variance of per-processor utilization. Arrivals between rebuilds consume the
// plan in order; completions only release slots and leave the plan stale until
// the next rebuild.
//
// With recomputeEvery == 1 the plan holds a single entry, the (load, id)
// minimum, which is the processor Incremental picks from its heap top. The two
// strategies then place every call identically and differ only in cost: Full
// inspects all np processors per arrival where Incremental repairs one heap path.
type Full struct {
	recomputeEvery int
	probeCost      float64

	plan     []int
	next     int
	arrivals int
	stats    StrategyStats
}

func newFull(recomputeEvery int, probeCost float64) *Full {
	return &Full{recomputeEvery: recomputeEvery, probeCost: probeCost}
}

// Name implements AllocationStrategy.
func (f *Full) Name() Mode { return ModeFull }

// Stats implements AllocationStrategy.
func (f *Full) Stats() StrategyStats { return f.stats }

// OnArrival implements AllocationStrategy.
func (f *Full) OnArrival(call *Call, pool *ResourcePool) (Decision, error) {
	d, err := f.decide(call, pool)
	f.stats.record(&d, f.probeCost)
	return d, err
}

func (f *Full) decide(call *Call, pool *ResourcePool) (Decision, error) {
	probes := 0
	if f.arrivals%f.recomputeEvery == 0 || f.next >= len(f.plan) {
		probes += f.recompute(pool)
	}
	f.arrivals++

	for f.next < len(f.plan) {
		pid := f.plan[f.next]
		f.next++
		probes++
		if pool.Free(pid) > 0 {
			return allocateOrReject(call, pool, pid, probes, fmt.Sprintf("plan[%d] (recompute #%d)", f.next-1, f.stats.Recomputes))
		}
	}

	// The plan ran dry or was stale; one scan over the pool settles it.
	for pid := 0; pid < pool.Size(); pid++ {
		probes++
		if pool.Free(pid) > 0 {
			return allocateOrReject(call, pool, pid, probes, "plan exhausted, first free")
		}
	}
	return rejected(probes, "pool is full"), nil
}

// recompute rebuilds the plan from the whole pool and returns the number of
// processors inspected.
func (f *Full) recompute(pool *ResourcePool) int {
	h, _ := newLoadHeap(pool)
	capacity := pool.SlotsPerProcessor()
	f.plan = f.plan[:0]
	f.next = 0
	for len(f.plan) < f.recomputeEvery && h.Len() > 0 {
		top := (*h)[0]
		if top.load >= capacity {
			break
		}
		f.plan = append(f.plan, top.pid)
		top.load++
		heap.Fix(h, 0)
	}
	f.stats.Recomputes++
	return pool.Size()
}

// OnCompletion implements AllocationStrategy.
func (f *Full) OnCompletion(call *Call, pool *ResourcePool) error {
	return pool.Release(call)
}
