// Package reactor implements pion's event pipeline (spec §4.8): a
// directed acyclic multigraph of Reactors exchanging Events. No
// example repo in the retrieval pack implements anything like this
// graph; its locking shape (a single mutation lock, a readers-writer
// lock for delivery, per-node drain on removal) is built directly
// from the specification's concurrency model (spec §5), using the
// same short-critical-section mutex style the rest of pion favors
// (scheduler.Scheduler, tcp.Server's connection map).
package reactor

import "sync/atomic"

// Event is a schema-less ordered map of term_id -> typed value (spec
// §3), reference-counted so a reactor may retain it past the call
// that delivered it.
type Event struct {
	order  []int
	values map[int]interface{}
	refs   atomic.Int32
}

// NewEvent constructs an empty Event with one implicit reference held
// by its creator.
func NewEvent() *Event {
	ev := &Event{values: make(map[int]interface{})}
	ev.refs.Store(1)
	return ev
}

// Set assigns termID's value, recording insertion order on first write.
func (e *Event) Set(termID int, value interface{}) {
	if _, exists := e.values[termID]; !exists {
		e.order = append(e.order, termID)
	}
	e.values[termID] = value
}

// Get returns termID's value, if present.
func (e *Event) Get(termID int) (interface{}, bool) {
	v, ok := e.values[termID]
	return v, ok
}

// Fields returns term ids in the order they were first set.
func (e *Event) Fields() []int {
	return append([]int(nil), e.order...)
}

// Retain increments the reference count; a reactor holding an Event
// past the call that delivered it must Retain before returning and
// Release once truly done.
func (e *Event) Retain() { e.refs.Add(1) }

// Release decrements the reference count. It does not free anything
// itself (Go is garbage collected); it exists so reactors can be
// written against the same retain/release discipline the rest of the
// pipeline expects, and so leak-detecting tests can assert the count
// returns to zero.
func (e *Event) Release() int32 { return e.refs.Add(-1) }

// RefCount reports the current reference count, mostly for tests.
func (e *Event) RefCount() int32 { return e.refs.Load() }
