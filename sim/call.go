package sim

// CallState is the lifecycle stage of a Call.
type CallState string

const (
	CallPending   CallState = "pending"
	CallAssigned  CallState = "assigned"
	CallCompleted CallState = "completed"
	CallBlocked   CallState = "blocked"
)

// Unassigned is the ProcessorID of a call that holds no slot.
const Unassigned = -1

// Call is a unit of traffic needing one processor slot for ServiceDuration.
//
// Lifecycle: pending (created by the traffic generator) → assigned (a strategy
// placed it) → completed (its completion event fired). A call refused by the
// strategy goes pending → blocked and never holds a slot.
type Call struct {
	ID              int64
	ArrivalTime     float64
	ServiceDuration float64
	Class           int // priority class in [0, p); 0 when p == 0

	ProcessorID    int     // Unassigned until allocated
	StartTime      float64 // arrival + decision latency
	CompletionTime float64 // -1 until served
	State          CallState
}

// NewCall creates a pending call arriving at the given time.
func NewCall(id int64, arrival, duration float64, class int) *Call {
	return &Call{
		ID:              id,
		ArrivalTime:     arrival,
		ServiceDuration: duration,
		Class:           class,
		ProcessorID:     Unassigned,
		StartTime:       -1,
		CompletionTime:  -1,
		State:           CallPending,
	}
}

// Allocated reports whether the call currently occupies a slot.
func (c *Call) Allocated() bool {
	return c.ProcessorID != Unassigned
}

// WaitTime is the delay between arrival and the start of service.
// Zero for calls that never started.
func (c *Call) WaitTime() float64 {
	if c.StartTime < 0 {
		return 0
	}
	return c.StartTime - c.ArrivalTime
}
