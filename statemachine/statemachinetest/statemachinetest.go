// Package statemachinetest provides instrumented guards and callbacks for tests of
// state machine wiring: they count invocations and record the order in which they ran.
package statemachinetest

import (
	"context"
	"slices"
	"sync"

	"github.com/amp-labs/amp-fsm/statemachine"
	"go.uber.org/atomic"
)

// Object is a minimal StateAware for tests.
type Object struct {
	statemachine.Stateful

	ID string
}

// NewObject creates an Object in the given state.
func NewObject(id, state string) *Object {
	obj := &Object{ID: id}
	obj.SetState(state)

	return obj
}

// Recorder collects an ordered log of events. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

// Record appends an event.
func (r *Recorder) Record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.events)
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}

// CountingGuard returns a fixed answer and counts how often it was asked.
type CountingGuard[T statemachine.StateAware] struct {
	name     string
	allow    bool
	recorder *Recorder
	calls    atomic.Int64
}

// NewCountingGuard creates a guard that always answers allow. If recorder is not nil,
// each call records "name" in it.
func NewCountingGuard[T statemachine.StateAware](name string, allow bool, recorder *Recorder) *CountingGuard[T] {
	return &CountingGuard[T]{
		name:     name,
		allow:    allow,
		recorder: recorder,
	}
}

func (g *CountingGuard[T]) Allow(_ context.Context, _ T) bool {
	g.calls.Inc()

	if g.recorder != nil {
		g.recorder.Record(g.name)
	}

	return g.allow
}

// Calls returns the number of times Allow ran.
func (g *CountingGuard[T]) Calls() int64 {
	return g.calls.Load()
}

// CountingCallback counts invocations, optionally records the object's state at the
// time of the call as "name@state", and returns a fixed error.
type CountingCallback[T statemachine.StateAware] struct {
	name     string
	err      error
	recorder *Recorder
	calls    atomic.Int64
}

// NewCountingCallback creates a callback that returns err (which may be nil).
func NewCountingCallback[T statemachine.StateAware](name string, err error, recorder *Recorder) *CountingCallback[T] {
	return &CountingCallback[T]{
		name:     name,
		err:      err,
		recorder: recorder,
	}
}

func (c *CountingCallback[T]) Run(_ context.Context, obj T) error {
	c.calls.Inc()

	if c.recorder != nil {
		c.recorder.Record(c.name + "@" + obj.GetState())
	}

	return c.err
}

// Calls returns the number of times Run ran.
func (c *CountingCallback[T]) Calls() int64 {
	return c.calls.Load()
}
