// Package sim provides the core discrete-event simulation engine for pcs-sim:
// call traffic flowing through a pool of processors under a pluggable
// allocation strategy.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - call.go: Call lifecycle (pending → assigned → completed, or blocked)
//   - event.go / clock.go: Arrival and Completion events and the EventClock,
//     a stable priority queue ordered by (timestamp, insertion sequence)
//   - simulator.go: the event loop and the Idle → Running → Draining → Finished
//     state machine
//
// # Architecture
//
// The sim package defines interfaces and the engine; implementations of the
// traffic source live in sub-packages:
//   - sim/workload/: traffic generator (arrival and service-time samplers)
//   - sim/trace/: allocation decision trace
//   - sim/sweep/: parallel execution of independent runs
//
// sim/workload registers its generator via an init() function that sets the
// package-level factory variable NewTrafficSourceFunc.
//
// # Key Interfaces
//
//   - AllocationStrategy: Autonomic (power-of-k sampling + hashed ring walk),
//     Incremental (heap with local repair), Full (periodic global water-filling)
//   - TrafficSource: yields call arrivals
//
// Nothing in this package performs file or directory I/O during a run; the
// RunConfig's OutputDir is carried opaquely for drivers.
package sim
