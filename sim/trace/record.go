// Package trace provides decision-trace recording for allocation strategy analysis.
// This package has no dependencies on sim/: it stores pure data types.
package trace

// AllocationRecord captures a single allocation strategy decision.
type AllocationRecord struct {
	CallID    int64
	Clock     float64
	Assigned  bool
	Processor int // -1 when rejected
	Probes    int
	Cost      float64
	Reason    string
	PoolLoad  float64 // pool utilization after the decision
}

// ReleaseRecord captures a completed call leaving its processor.
type ReleaseRecord struct {
	CallID    int64
	Clock     float64
	Processor int
	Counted   bool // false for calls that completed while draining
}
