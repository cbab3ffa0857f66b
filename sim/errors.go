package sim

import (
	"errors"
	"fmt"
)

// ErrRejected is reported by Decision.Err when the active strategy could not place
// a call anywhere it is allowed to look. It is expected and non-fatal.
var ErrRejected = errors.New("call rejected: no free slot reachable")

// ErrAlreadyRun is returned when Run is invoked on a Simulator that has left Idle.
var ErrAlreadyRun = errors.New("simulator has already run")

// ConfigurationError reports missing or contradictory run parameters.
// Always detected before any event is processed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NoCapacityError is returned by ResourcePool.TryAllocate when the target processor is full.
type NoCapacityError struct {
	ProcessorID int
	Capacity    int
}

func (e *NoCapacityError) Error() string {
	return fmt.Sprintf("processor %d has no free slot (capacity %d)", e.ProcessorID, e.Capacity)
}

// InvalidScheduleError is returned when an event is scheduled before the current clock.
type InvalidScheduleError struct {
	At  float64
	Now float64
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("cannot schedule event at %.6f: clock is already at %.6f", e.At, e.Now)
}

// NotAllocatedError is returned when releasing a call that holds no slot.
type NotAllocatedError struct {
	CallID int64
}

func (e *NotAllocatedError) Error() string {
	return fmt.Sprintf("call %d is not allocated to any processor", e.CallID)
}

// StallError signals that the event clock emptied before the completed-call target
// was reached, with nothing left in flight.
type StallError struct {
	Completed int
	Target    int
	Clock     float64
}

func (e *StallError) Error() string {
	return fmt.Sprintf("simulation stalled at t=%.6f: %d of %d calls completed and no events pending",
		e.Clock, e.Completed, e.Target)
}

// BudgetExceededError is returned when a run pops more events than RunConfig.MaxEvents.
type BudgetExceededError struct {
	Events int64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("event budget of %d exhausted", e.Events)
}

// StateDump is a snapshot of engine state attached to fatal run errors.
type StateDump struct {
	State     State
	Clock     float64
	Pending   int
	InFlight  int
	Completed int
	Blocked   int
	Occupied  int
	Capacity  int
	Events    int64
}

func (d StateDump) String() string {
	return fmt.Sprintf("state=%s clock=%.6f pending=%d in-flight=%d completed=%d blocked=%d occupied=%d/%d events=%d",
		d.State, d.Clock, d.Pending, d.InFlight, d.Completed, d.Blocked, d.Occupied, d.Capacity, d.Events)
}

// RunError wraps a fatal error that aborted a run together with the engine state at the time.
type RunError struct {
	Dump StateDump
	Err  error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run aborted: %v [%s]", e.Err, e.Dump)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
