package statemachine

import (
	"errors"
	"fmt"
)

// ErrStateMachine is the category every error raised by the engine belongs to.
var ErrStateMachine = errors.New("state machine error")

var (
	// ErrTransitionNotFound indicates that no transition is registered under the requested name.
	ErrTransitionNotFound = fmt.Errorf("%w: transition not found", ErrStateMachine)
	// ErrWrongState indicates that the transition exists but is not legal from the object's current state.
	ErrWrongState = fmt.Errorf("%w: wrong state", ErrStateMachine)
	// ErrGuardRejected indicates that a guard vetoed the transition.
	ErrGuardRejected = fmt.Errorf("%w: rejected by guard", ErrStateMachine)

	// ErrLockerShardsRequired indicates that a KeyedLocker was created with no shards.
	ErrLockerShardsRequired = errors.New("locker needs at least one shard")
)

// TransitionError carries the context of a failed transition attempt.
// Err is one of ErrTransitionNotFound, ErrWrongState or ErrGuardRejected.
type TransitionError struct {
	Transition string
	State      string
	// Guard is the index of the guard that rejected the transition, or -1.
	Guard int
	Err   error
}

func (e *TransitionError) Error() string {
	if e.Guard >= 0 {
		return fmt.Sprintf("transition %q from %q: %v (guard %d)", e.Transition, e.State, e.Err, e.Guard)
	}

	return fmt.Sprintf("transition %q from %q: %v", e.Transition, e.State, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

func newTransitionError(name, state string, err error) error {
	return &TransitionError{
		Transition: name,
		State:      state,
		Guard:      -1,
		Err:        err,
	}
}

func newGuardError(name, state string, guard int) error {
	return &TransitionError{
		Transition: name,
		State:      state,
		Guard:      guard,
		Err:        ErrGuardRejected,
	}
}
