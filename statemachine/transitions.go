package statemachine

import "slices"

// Transition is an immutable rule permitting movement from any of its source
// states to a single destination state. Guards are evaluated in order before
// anything else runs; before callbacks run ahead of the state mutation and
// after callbacks run once it has happened.
type Transition[T StateAware] struct {
	from   []string
	to     string
	guards []Guard[T]
	before []Callback[T]
	after  []Callback[T]
}

// TransitionOption configures a Transition at construction time.
type TransitionOption[T StateAware] func(*Transition[T])

// NewTransition creates a transition from the given source states to the destination.
// The slices passed in (directly or through options) are copied, so the caller may
// reuse them afterward.
func NewTransition[T StateAware](from []string, to string, opts ...TransitionOption[T]) Transition[T] {
	t := Transition[T]{
		from: slices.Clone(from),
		to:   to,
	}

	for _, opt := range opts {
		opt(&t)
	}

	return t
}

// WithGuards appends guards, evaluated in the order given.
func WithGuards[T StateAware](guards ...Guard[T]) TransitionOption[T] {
	return func(t *Transition[T]) {
		t.guards = append(t.guards, guards...)
	}
}

// WithBefore appends callbacks run before the state mutation.
func WithBefore[T StateAware](callbacks ...Callback[T]) TransitionOption[T] {
	return func(t *Transition[T]) {
		t.before = append(t.before, callbacks...)
	}
}

// WithAfter appends callbacks run after the state mutation.
func WithAfter[T StateAware](callbacks ...Callback[T]) TransitionOption[T] {
	return func(t *Transition[T]) {
		t.after = append(t.after, callbacks...)
	}
}

func (t Transition[T]) FromStates() []string {
	return slices.Clone(t.from)
}

func (t Transition[T]) ToState() string {
	return t.to
}

func (t Transition[T]) Guards() []Guard[T] {
	return slices.Clone(t.guards)
}

func (t Transition[T]) Before() []Callback[T] {
	return slices.Clone(t.before)
}

func (t Transition[T]) After() []Callback[T] {
	return slices.Clone(t.after)
}

// Permits reports whether state is one of the transition's source states.
func (t Transition[T]) Permits(state string) bool {
	return slices.Contains(t.from, state)
}
