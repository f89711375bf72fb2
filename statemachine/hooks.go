// Package statemachine performs single, validated state changes on objects that carry
// their own state. An Engine maps transition names to Transitions; each Transition
// lists the source states it accepts, the destination, and ordered guards and callbacks.
package statemachine

import (
	"context"

	"github.com/amp-labs/amp-fsm/logger"
)

// Not inverts a guard.
func Not[T StateAware](guard Guard[T]) Guard[T] {
	return GuardFunc[T](func(ctx context.Context, obj T) bool {
		return !guard.Allow(ctx, obj)
	})
}

// All allows when every guard allows. Evaluation stops at the first refusal.
func All[T StateAware](guards ...Guard[T]) Guard[T] {
	return GuardFunc[T](func(ctx context.Context, obj T) bool {
		for _, guard := range guards {
			if !guard.Allow(ctx, obj) {
				return false
			}
		}

		return true
	})
}

// Any allows when at least one guard allows. Evaluation stops at the first approval.
// With no guards it refuses.
func Any[T StateAware](guards ...Guard[T]) Guard[T] {
	return GuardFunc[T](func(ctx context.Context, obj T) bool {
		for _, guard := range guards {
			if guard.Allow(ctx, obj) {
				return true
			}
		}

		return false
	})
}

// Sequence runs callbacks in order and returns the first error.
func Sequence[T StateAware](callbacks ...Callback[T]) Callback[T] {
	return CallbackFunc[T](func(ctx context.Context, obj T) error {
		for _, callback := range callbacks {
			if err := callback.Run(ctx, obj); err != nil {
				return err
			}
		}

		return nil
	})
}

// LogState is a callback that logs the object's current state along with the attempt
// that invoked it. Used as an after callback it records the new state.
func LogState[T StateAware](msg string) Callback[T] {
	return CallbackFunc[T](func(ctx context.Context, obj T) error {
		fields := []any{"state", obj.GetState()}

		if attempt, ok := AttemptFromContext(ctx); ok {
			fields = append(fields,
				"machine", attempt.Machine,
				"transition", attempt.Transition,
				"attempt_id", attempt.ID,
			)
		}

		logger.Get(ctx).InfoContext(ctx, msg, fields...)

		return nil
	})
}
