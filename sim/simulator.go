// sim/simulator.go
package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pcs-sim/pcs-sim/sim/trace"
)

// State is the lifecycle stage of a Simulator.
type State string

const (
	StateIdle     State = "idle"     // config loaded, nothing scheduled
	StateRunning  State = "running"  // generating arrivals, counting completions
	StateDraining State = "draining" // target reached, in-flight calls finishing
	StateFinished State = "finished" // metrics final
	StateFailed   State = "failed"   // aborted by a fatal error
)

// TrafficSource yields the run's call arrivals in non-decreasing arrival order.
// Next returns nil once the source is exhausted.
type TrafficSource interface {
	Next() *Call
}

// NewTrafficSourceFunc builds the default traffic source for a run.
// Registered by sim/workload's init(); nil until that package is imported.
var NewTrafficSourceFunc func(cfg RunConfig, rng *PartitionedRNG) (TrafficSource, error)

// EventHook observes the simulator after each event has been fully processed.
type EventHook func(sim *Simulator, ev Event)

// Simulator is the simulation engine of one run: it owns the event clock, the
// resource pool, the allocation strategy and the metrics. A Simulator runs once.
//
// Thread-safety: NOT thread-safe. Independent Simulators may run concurrently.
type Simulator struct {
	cfg      RunConfig
	rng      *PartitionedRNG
	clock    *EventClock
	pool     *ResourcePool
	strategy AllocationStrategy
	source   TrafficSource

	state     State
	inFlight  map[int64]*Call
	generated int
	metrics   *collector
	trace     *trace.SimulationTrace
	hook      EventHook
	result    *Metrics
}

// NewSimulator validates cfg and builds an Idle simulator fed by the registered
// traffic source (import sim/workload to register it).
func NewSimulator(cfg RunConfig) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if NewTrafficSourceFunc == nil {
		return nil, errors.New("no traffic source registered: import github.com/pcs-sim/pcs-sim/sim/workload")
	}
	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	src, err := NewTrafficSourceFunc(cfg, rng)
	if err != nil {
		return nil, fmt.Errorf("building traffic source: %w", err)
	}
	return newSimulator(cfg, rng, src)
}

// NewSimulatorWithSource builds an Idle simulator fed by src instead of the
// registered generator.
func NewSimulatorWithSource(cfg RunConfig, src TrafficSource) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errors.New("nil traffic source")
	}
	return newSimulator(cfg, NewPartitionedRNG(NewSimulationKey(cfg.Seed)), src)
}

func newSimulator(cfg RunConfig, rng *PartitionedRNG, src TrafficSource) (*Simulator, error) {
	strategy, err := NewAllocationStrategy(cfg, rng)
	if err != nil {
		return nil, err
	}
	s := &Simulator{
		cfg:      cfg,
		rng:      rng,
		clock:    NewEventClock(),
		pool:     NewResourcePool(cfg.NP, cfg.NPRC),
		strategy: strategy,
		source:   src,
		state:    StateIdle,
		inFlight: make(map[int64]*Call),
		metrics:  newCollector(cfg),
	}
	if level := trace.TraceLevel(cfg.TraceLevel); level.Enabled() {
		s.trace = trace.NewSimulationTrace(trace.TraceConfig{Level: level})
	}
	return s, nil
}

// SetEventHook installs fn to be called after every processed event.
func (s *Simulator) SetEventHook(fn EventHook) {
	s.hook = fn
}

// Config returns the run's configuration.
func (s *Simulator) Config() RunConfig { return s.cfg }

// State returns the current lifecycle stage.
func (s *Simulator) State() State { return s.state }

// Clock returns the current simulated time.
func (s *Simulator) Clock() float64 { return s.clock.Now() }

// Pool returns the resource pool. Callers must treat it as read-only.
func (s *Simulator) Pool() *ResourcePool { return s.pool }

// InFlight returns the number of allocated calls still in service.
func (s *Simulator) InFlight() int { return len(s.inFlight) }

// Trace returns the decision trace, or nil when tracing is off.
func (s *Simulator) Trace() *trace.SimulationTrace { return s.trace }

// Metrics returns the finalized metrics, or nil before the run finished.
func (s *Simulator) Metrics() *Metrics { return s.result }

// Run executes the simulation to Finished and returns its metrics.
//
// Cancellation of ctx and the MaxEvents budget are checked once per popped
// event. Any fatal condition leaves the simulator Failed and is returned as a
// *RunError carrying a StateDump. Run may only be called once.
func (s *Simulator) Run(ctx context.Context) (*Metrics, error) {
	if s.state != StateIdle {
		return nil, ErrAlreadyRun
	}
	s.state = StateRunning
	logrus.Infof("Starting %s run: ta=%v complete-calls=%d np=%d nprc=%d p=%d seed=%d",
		s.cfg.Mode, s.cfg.TA, s.cfg.CompleteCalls, s.cfg.NP, s.cfg.NPRC, s.cfg.P, s.cfg.Seed)

	if err := s.scheduleNextArrival(); err != nil {
		return nil, s.fail(err)
	}

	for s.clock.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, s.fail(err)
		}
		if s.cfg.MaxEvents > 0 && s.metrics.m.Events >= s.cfg.MaxEvents {
			return nil, s.fail(&BudgetExceededError{Events: s.cfg.MaxEvents})
		}

		ev, _ := s.clock.PopNext()
		s.metrics.advance(s.clock.Now(), s.pool, s.state == StateRunning)
		logrus.Tracef("[t=%.6f] Executing %s", s.clock.Now(), ev.Kind())

		if err := ev.Execute(s); err != nil {
			return nil, s.fail(err)
		}
		if err := s.pool.CheckInvariants(); err != nil {
			return nil, s.fail(fmt.Errorf("after %s event: %w", ev.Kind(), err))
		}
		if s.hook != nil {
			s.hook(s, ev)
		}
	}

	if s.state == StateRunning {
		return nil, s.fail(&StallError{Completed: s.metrics.m.Completed, Target: s.cfg.CompleteCalls, Clock: s.clock.Now()})
	}

	s.state = StateFinished
	s.result = s.metrics.finalize(s.clock.Now(), s.generated, s.strategy.Stats())
	logrus.Infof("[t=%.6f] Simulation finished: completed=%d blocked=%d drained=%d events=%d",
		s.clock.Now(), s.result.Completed, s.result.Blocked, s.result.Drained, s.result.Events)
	return s.result, nil
}

// scheduleNextArrival pulls one call from the source and schedules its arrival.
// No-op once the run is draining or the source is exhausted.
func (s *Simulator) scheduleNextArrival() error {
	if s.state != StateRunning {
		return nil
	}
	call := s.source.Next()
	if call == nil {
		logrus.Debugf("[t=%.6f] traffic source exhausted", s.clock.Now())
		return nil
	}
	s.generated++
	return s.clock.Schedule(NewArrivalEvent(call))
}

func (s *Simulator) handleArrival(e *ArrivalEvent) error {
	call := e.Call
	now := s.clock.Now()

	d, err := s.strategy.OnArrival(call, s.pool)
	if err != nil {
		return fmt.Errorf("%s strategy on arrival of call %d: %w", s.strategy.Name(), call.ID, err)
	}
	s.metrics.arrival(call, s.pool)
	if s.trace != nil {
		s.trace.RecordAllocation(trace.AllocationRecord{
			CallID:    call.ID,
			Clock:     now,
			Assigned:  d.Assigned,
			Processor: d.ProcessorID,
			Probes:    d.Probes,
			Cost:      d.Cost,
			Reason:    d.Reason,
			PoolLoad:  s.pool.Utilization(),
		})
	}

	if d.Assigned {
		call.StartTime = now + d.Cost
		s.inFlight[call.ID] = call
		if err := s.clock.Schedule(NewCompletionEvent(call.StartTime+call.ServiceDuration, call.ID)); err != nil {
			return err
		}
		logrus.Debugf("[t=%.6f] call %d → processor %d (%s)", now, call.ID, d.ProcessorID, d.Reason)
	} else {
		call.State = CallBlocked
		s.metrics.blocked(call)
		logrus.Debugf("[t=%.6f] call %d: %v", now, call.ID, d.Err())
	}

	return s.scheduleNextArrival()
}

func (s *Simulator) handleCompletion(e *CompletionEvent) error {
	call, ok := s.inFlight[e.CallID]
	if !ok {
		return &NotAllocatedError{CallID: e.CallID}
	}
	pid := call.ProcessorID
	if err := s.strategy.OnCompletion(call, s.pool); err != nil {
		return fmt.Errorf("%s strategy on completion of call %d: %w", s.strategy.Name(), call.ID, err)
	}
	delete(s.inFlight, call.ID)
	call.CompletionTime = s.clock.Now()
	call.State = CallCompleted

	counted := s.state == StateRunning
	if counted {
		s.metrics.completed(call)
	} else {
		s.metrics.drained()
	}
	if s.trace != nil {
		s.trace.RecordRelease(trace.ReleaseRecord{CallID: call.ID, Clock: call.CompletionTime, Processor: pid, Counted: counted})
	}

	if counted && s.metrics.m.Completed >= s.cfg.CompleteCalls {
		s.beginDrain()
	}
	return nil
}

// beginDrain stops arrival generation: pending arrivals are dropped and only
// in-flight completions remain.
func (s *Simulator) beginDrain() {
	s.state = StateDraining
	discarded := s.clock.DiscardKind(EventArrival)
	s.metrics.targetReached(s.clock.Now(), s.pool, discarded)
	logrus.Infof("[t=%.6f] Target of %d completed calls reached; draining %d in-flight calls (%d pending arrivals dropped)",
		s.clock.Now(), s.cfg.CompleteCalls, len(s.inFlight), discarded)
}

// Dump snapshots the engine state for diagnostics.
func (s *Simulator) Dump() StateDump {
	return StateDump{
		State:     s.state,
		Clock:     s.clock.Now(),
		Pending:   s.clock.Len(),
		InFlight:  len(s.inFlight),
		Completed: s.metrics.m.Completed,
		Blocked:   s.metrics.m.Blocked,
		Occupied:  s.pool.Occupied(),
		Capacity:  s.pool.Capacity(),
		Events:    s.metrics.m.Events,
	}
}

// fail moves the simulator to Failed and wraps err with a dump of the state it
// failed in.
func (s *Simulator) fail(err error) error {
	dump := s.Dump()
	s.state = StateFailed
	logrus.WithFields(logrus.Fields{
		"mode":      s.cfg.Mode,
		"clock":     dump.Clock,
		"completed": dump.Completed,
		"in_flight": dump.InFlight,
		"pending":   dump.Pending,
	}).Errorf("run aborted: %v", err)
	return &RunError{Dump: dump, Err: err}
}
