package sim

import (
	"container/heap"
	"errors"
	"fmt"
)

// Decision is the outcome of an allocation strategy for one arriving call.
type Decision struct {
	Assigned    bool
	ProcessorID int     // Unassigned when rejected
	Probes      int     // processors inspected to reach the decision
	Cost        float64 // simulated decision latency: Probes * ProbeCost
	Reason      string  // human-readable explanation
}

// Err returns nil for an assigned decision and an error wrapping ErrRejected
// otherwise.
func (d Decision) Err() error {
	if d.Assigned {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRejected, d.Reason)
}

// StrategyStats counts the work a strategy has done over a run.
type StrategyStats struct {
	Decisions  int   // OnArrival calls
	Rejections int   // decisions that rejected the call
	Probes     int64 // processors inspected across all decisions
	Recomputes int   // global plan rebuilds (Full)
	Repairs    int   // local plan repairs (Incremental)
}

// AllocationStrategy decides which processor serves a call.
//
// OnArrival either allocates the call on the pool and returns an Assigned
// decision, or returns a rejected decision leaving the pool untouched. The error
// result is reserved for internal invariant violations.
//
// OnCompletion releases the call's slot and updates any strategy state.
type AllocationStrategy interface {
	Name() Mode
	OnArrival(call *Call, pool *ResourcePool) (Decision, error)
	OnCompletion(call *Call, pool *ResourcePool) error
	Stats() StrategyStats
}

// NewAllocationStrategy creates the strategy selected by cfg.Mode.
// Randomized strategies draw from the SubsystemStrategy stream of rng.
func NewAllocationStrategy(cfg RunConfig, rng *PartitionedRNG) (AllocationStrategy, error) {
	if !ValidModes[cfg.Mode] {
		return nil, &ConfigurationError{Field: "mode", Reason: fmt.Sprintf("unknown strategy %q", cfg.Mode)}
	}
	switch cfg.Mode {
	case ModeAutonomic:
		return newAutonomic(cfg.AutonomicProbes, cfg.ProbeCost, rng.ForSubsystem(SubsystemStrategy)), nil
	case ModeIncremental:
		return newIncremental(cfg.ProbeCost), nil
	case ModeFull:
		return newFull(cfg.FullRecomputeEvery, cfg.ProbeCost), nil
	default:
		panic(fmt.Sprintf("unhandled strategy %q", cfg.Mode))
	}
}

// record updates stats from a decision and fills in its cost.
func (s *StrategyStats) record(d *Decision, probeCost float64) {
	d.Cost = float64(d.Probes) * probeCost
	s.Decisions++
	s.Probes += int64(d.Probes)
	if !d.Assigned {
		s.Rejections++
	}
}

func rejected(probes int, reason string) Decision {
	return Decision{ProcessorID: Unassigned, Probes: probes, Reason: reason}
}

// allocateOrReject turns a pool allocation into a decision. A NoCapacityError means
// the strategy's view was stale; any other error is an invariant violation.
func allocateOrReject(call *Call, pool *ResourcePool, pid, probes int, reason string) (Decision, error) {
	if err := pool.TryAllocate(call, pid); err != nil {
		var noCap *NoCapacityError
		if errors.As(err, &noCap) {
			return rejected(probes, "stale choice: "+err.Error()), nil
		}
		return rejected(probes, "allocation failed"), err
	}
	return Decision{Assigned: true, ProcessorID: pid, Probes: probes, Reason: reason}, nil
}

// === loadHeap ===

// loadItem is one processor's entry in a loadHeap.
type loadItem struct {
	pid   int
	load  int
	index int
}

// loadHeap is a min-heap of processors ordered by (load, pid).
// Ties go to the lowest processor ID, so placement is deterministic.
type loadHeap []*loadItem

func (h loadHeap) Len() int { return len(h) }

func (h loadHeap) Less(i, j int) bool {
	if h[i].load != h[j].load {
		return h[i].load < h[j].load
	}
	return h[i].pid < h[j].pid
}

func (h loadHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *loadHeap) Push(x any) {
	item := x.(*loadItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *loadHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// newLoadHeap builds a heap from the pool's current occupancy. Returns the heap
// and the items indexed by processor ID.
func newLoadHeap(pool *ResourcePool) (*loadHeap, []*loadItem) {
	n := pool.Size()
	h := make(loadHeap, n)
	byPID := make([]*loadItem, n)
	for pid := 0; pid < n; pid++ {
		item := &loadItem{pid: pid, load: pool.Processor(pid).Occupied, index: pid}
		h[pid] = item
		byPID[pid] = item
	}
	heap.Init(&h)
	return &h, byPID
}
