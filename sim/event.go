package sim

import "github.com/sirupsen/logrus"

// EventKind tags the concrete event variant.
type EventKind string

const (
	EventArrival    EventKind = "arrival"
	EventCompletion EventKind = "completion"
)

// Event defines the interface for all simulation events.
// Each event has a Timestamp (simulated time), an insertion sequence number
// assigned by the EventClock, and an Execute method that advances simulation
// state when invoked.
type Event interface {
	Timestamp() float64
	Seq() uint64
	Kind() EventKind
	Execute(*Simulator) error

	stamp(seq uint64)
}

// baseEvent provides the fields shared by all events.
type baseEvent struct {
	time float64
	seq  uint64
}

func (e *baseEvent) Timestamp() float64 { return e.time }
func (e *baseEvent) Seq() uint64        { return e.seq }
func (e *baseEvent) stamp(seq uint64)   { e.seq = seq }

// ArrivalEvent represents a call reaching the pool.
type ArrivalEvent struct {
	baseEvent
	Call *Call
}

// NewArrivalEvent creates an arrival event at the call's arrival time.
func NewArrivalEvent(call *Call) *ArrivalEvent {
	return &ArrivalEvent{baseEvent: baseEvent{time: call.ArrivalTime}, Call: call}
}

func (e *ArrivalEvent) Kind() EventKind { return EventArrival }

// Execute hands the call to the allocation strategy.
func (e *ArrivalEvent) Execute(sim *Simulator) error {
	logrus.Tracef("<< Arrival: call %d at %.6f", e.Call.ID, e.time)
	return sim.handleArrival(e)
}

// CompletionEvent represents the end of service for an allocated call.
type CompletionEvent struct {
	baseEvent
	CallID int64
}

// NewCompletionEvent creates a completion event for callID at time t.
func NewCompletionEvent(t float64, callID int64) *CompletionEvent {
	return &CompletionEvent{baseEvent: baseEvent{time: t}, CallID: callID}
}

func (e *CompletionEvent) Kind() EventKind { return EventCompletion }

// Execute releases the call's slot and records it.
func (e *CompletionEvent) Execute(sim *Simulator) error {
	logrus.Tracef("<< Completion: call %d at %.6f", e.CallID, e.time)
	return sim.handleCompletion(e)
}
