package sim

import (
	"container/heap"
	"math"
)

// eventHeap implements heap.Interface with deterministic ordering.
// Order by: timestamp → insertion sequence.
type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	ei, ej := h[i], h[j]
	if ei.Timestamp() != ej.Timestamp() {
		return ei.Timestamp() < ej.Timestamp()
	}
	return ei.Seq() < ej.Seq()
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return item
}

// EventClock owns simulated time and the pending event set.
// Equal timestamps pop in insertion order. The sequence counter belongs to the
// clock instance, so independent runs never share ordering state.
//
// Thread-safety: NOT thread-safe. One clock per run, driven by one goroutine.
type EventClock struct {
	now    float64
	seq    uint64
	events eventHeap
}

// NewEventClock creates an empty clock at t=0.
func NewEventClock() *EventClock {
	c := &EventClock{events: make(eventHeap, 0)}
	heap.Init(&c.events)
	return c
}

// Now returns the current simulated time: the timestamp of the last popped event.
func (c *EventClock) Now() float64 {
	return c.now
}

// Len returns the number of pending events.
func (c *EventClock) Len() int {
	return c.events.Len()
}

// Schedule adds an event. Scheduling into the past (or at NaN) fails with
// *InvalidScheduleError and leaves the clock untouched.
func (c *EventClock) Schedule(ev Event) error {
	at := ev.Timestamp()
	if math.IsNaN(at) || at < c.now {
		return &InvalidScheduleError{At: at, Now: c.now}
	}
	c.seq++
	ev.stamp(c.seq)
	heap.Push(&c.events, ev)
	return nil
}

// PopNext removes and returns the earliest event and advances the clock to its
// timestamp. The second result is false when no events remain.
func (c *EventClock) PopNext() (Event, bool) {
	if c.events.Len() == 0 {
		return nil, false
	}
	ev := heap.Pop(&c.events).(Event)
	c.now = ev.Timestamp()
	return ev, true
}

// Peek returns the next event without removing it, or nil when empty.
func (c *EventClock) Peek() Event {
	if c.events.Len() == 0 {
		return nil
	}
	return c.events[0]
}

// DiscardKind drops every pending event of the given kind and returns how many
// were removed. Relative order of the remaining events is unchanged.
func (c *EventClock) DiscardKind(kind EventKind) int {
	kept := c.events[:0]
	dropped := 0
	for _, ev := range c.events {
		if ev.Kind() == kind {
			dropped++
			continue
		}
		kept = append(kept, ev)
	}
	for i := len(kept); i < len(c.events); i++ {
		c.events[i] = nil
	}
	c.events = kept
	heap.Init(&c.events)
	return dropped
}
