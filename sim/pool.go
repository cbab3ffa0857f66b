package sim

import "fmt"

// Processor is a resource unit with a fixed number of process slots.
type Processor struct {
	ID       int
	Capacity int
	Occupied int

	order []int64            // assigned call IDs in assignment order
	index map[int64]struct{} // membership for order
}

func newProcessor(id, capacity int) *Processor {
	return &Processor{
		ID:       id,
		Capacity: capacity,
		index:    make(map[int64]struct{}),
	}
}

// Free returns the number of unoccupied slots.
func (p *Processor) Free() int {
	return p.Capacity - p.Occupied
}

// Load returns the occupied fraction in [0,1].
func (p *Processor) Load() float64 {
	return float64(p.Occupied) / float64(p.Capacity)
}

// Calls returns a copy of the assigned call IDs in assignment order.
func (p *Processor) Calls() []int64 {
	out := make([]int64, len(p.order))
	copy(out, p.order)
	return out
}

// Holds reports whether the call is assigned here.
func (p *Processor) Holds(callID int64) bool {
	_, ok := p.index[callID]
	return ok
}

func (p *Processor) add(callID int64) {
	p.index[callID] = struct{}{}
	p.order = append(p.order, callID)
	p.Occupied++
}

func (p *Processor) remove(callID int64) {
	delete(p.index, callID)
	for i, id := range p.order {
		if id == callID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	p.Occupied--
}

// ResourcePool is the indexed set of processors and their slot accounting.
// It enforces capacity; it never decides which processor serves a call.
type ResourcePool struct {
	processors []*Processor
	slots      int // capacity per processor

	occupied int
	sumSq    int // Σ occupied_i², kept for O(1) variance
}

// NewResourcePool creates np processors with nprc slots each.
// Panics on non-positive sizes; RunConfig.Validate rejects those earlier.
func NewResourcePool(np, nprc int) *ResourcePool {
	if np <= 0 || nprc <= 0 {
		panic(fmt.Sprintf("NewResourcePool: np=%d nprc=%d must both be > 0", np, nprc))
	}
	procs := make([]*Processor, np)
	for i := range procs {
		procs[i] = newProcessor(i, nprc)
	}
	return &ResourcePool{processors: procs, slots: nprc}
}

// Size returns the number of processors.
func (rp *ResourcePool) Size() int {
	return len(rp.processors)
}

// SlotsPerProcessor returns nprc.
func (rp *ResourcePool) SlotsPerProcessor() int {
	return rp.slots
}

// Capacity returns the total slot count, np * nprc.
func (rp *ResourcePool) Capacity() int {
	return len(rp.processors) * rp.slots
}

// Occupied returns the number of occupied slots across the pool.
func (rp *ResourcePool) Occupied() int {
	return rp.occupied
}

// Processor returns the processor with the given ID, or nil when out of range.
func (rp *ResourcePool) Processor(pid int) *Processor {
	if pid < 0 || pid >= len(rp.processors) {
		return nil
	}
	return rp.processors[pid]
}

// Free returns the free slots on processor pid (0 for unknown IDs).
func (rp *ResourcePool) Free(pid int) int {
	p := rp.Processor(pid)
	if p == nil {
		return 0
	}
	return p.Free()
}

// Load returns the occupied fraction of processor pid.
func (rp *ResourcePool) Load(pid int) float64 {
	p := rp.Processor(pid)
	if p == nil {
		return 0
	}
	return p.Load()
}

// TryAllocate places call on processor pid. Fails with *NoCapacityError when the
// processor is full; the call is left untouched on any failure.
func (rp *ResourcePool) TryAllocate(call *Call, pid int) error {
	p := rp.Processor(pid)
	if p == nil {
		return fmt.Errorf("allocate call %d: unknown processor %d", call.ID, pid)
	}
	if call.Allocated() {
		return fmt.Errorf("allocate call %d: already holds a slot on processor %d", call.ID, call.ProcessorID)
	}
	if p.Free() == 0 {
		return &NoCapacityError{ProcessorID: pid, Capacity: p.Capacity}
	}
	rp.sumSq += 2*p.Occupied + 1
	p.add(call.ID)
	rp.occupied++
	call.ProcessorID = pid
	call.State = CallAssigned
	return nil
}

// Release frees the call's slot. Fails with *NotAllocatedError if the call was never
// assigned or its processor does not hold it.
func (rp *ResourcePool) Release(call *Call) error {
	p := rp.Processor(call.ProcessorID)
	if p == nil || !p.Holds(call.ID) {
		return &NotAllocatedError{CallID: call.ID}
	}
	p.remove(call.ID)
	rp.sumSq -= 2*p.Occupied + 1
	rp.occupied--
	call.ProcessorID = Unassigned
	return nil
}

// Utilization returns occupied/total across the pool. Pure read.
func (rp *ResourcePool) Utilization() float64 {
	return float64(rp.occupied) / float64(rp.Capacity())
}

// UtilizationVariance returns the population variance of per-processor
// utilization. Pure read, O(1).
func (rp *ResourcePool) UtilizationVariance() float64 {
	n := float64(len(rp.processors))
	mean := float64(rp.occupied) / n
	v := float64(rp.sumSq)/n - mean*mean
	if v < 0 {
		v = 0
	}
	return v / float64(rp.slots*rp.slots)
}

// ProcessorUtilizations returns each processor's utilization, indexed by ID.
func (rp *ResourcePool) ProcessorUtilizations() []float64 {
	out := make([]float64, len(rp.processors))
	for i, p := range rp.processors {
		out[i] = p.Load()
	}
	return out
}

// CheckInvariants verifies slot accounting: per-processor occupancy within
// capacity and the pool counter equal to the sum of processor counters.
func (rp *ResourcePool) CheckInvariants() error {
	total := 0
	for _, p := range rp.processors {
		if p.Occupied < 0 || p.Occupied > p.Capacity {
			return fmt.Errorf("processor %d occupancy %d outside [0,%d]", p.ID, p.Occupied, p.Capacity)
		}
		if len(p.order) != p.Occupied || len(p.index) != p.Occupied {
			return fmt.Errorf("processor %d tracks %d calls but counts %d occupied", p.ID, len(p.order), p.Occupied)
		}
		total += p.Occupied
	}
	if total != rp.occupied {
		return fmt.Errorf("pool occupancy %d does not match processor sum %d", rp.occupied, total)
	}
	if rp.occupied > rp.Capacity() {
		return fmt.Errorf("pool occupancy %d exceeds capacity %d", rp.occupied, rp.Capacity())
	}
	return nil
}
