package statemachine

import "context"

// StateAware is anything that carries a mutable state label. The engine reads the
// label to validate a transition and writes it exactly once when the transition succeeds.
type StateAware interface {
	GetState() string
	SetState(state string)
}

// Guard vetoes a transition by returning false. It may block (e.g. perform I/O);
// the engine waits for it before moving on.
type Guard[T StateAware] interface {
	Allow(ctx context.Context, obj T) bool
}

// Callback is a side-effecting hook run before or after the state mutation.
// A non-nil error is returned to the caller of Engine.Transition unchanged.
type Callback[T StateAware] interface {
	Run(ctx context.Context, obj T) error
}

// GuardFunc adapts a plain function to the Guard interface.
type GuardFunc[T StateAware] func(ctx context.Context, obj T) bool

func (f GuardFunc[T]) Allow(ctx context.Context, obj T) bool {
	return f(ctx, obj)
}

// CallbackFunc adapts a plain function to the Callback interface.
type CallbackFunc[T StateAware] func(ctx context.Context, obj T) error

func (f CallbackFunc[T]) Run(ctx context.Context, obj T) error {
	return f(ctx, obj)
}

// Stateful is an embeddable StateAware implementation.
//
//	type Order struct {
//	    statemachine.Stateful
//	    ID string
//	}
type Stateful struct {
	State string `json:"state"`
}

func (s *Stateful) GetState() string {
	return s.State
}

func (s *Stateful) SetState(state string) {
	s.State = state
}
