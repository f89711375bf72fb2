package statemachine

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"time"

	"facette.io/natsort"
	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// attemptContextKey is the key used to store the current Attempt in Go context.
const attemptContextKey contextKey = "statemachine_attempt"

const defaultEngineName = "statemachine"

// Metric outcome constants.
const (
	outcomeSuccess       = "success"
	outcomeNotFound      = "not_found"
	outcomeWrongState    = "wrong_state"
	outcomeGuardRejected = "guard_rejected"
	outcomeCallbackError = "callback_error"
	outcomePanic         = "panic"
)

// Hook phases, used in span names, metric labels and log fields.
const (
	phaseGuard  = "guard"
	phaseBefore = "before"
	phaseAfter  = "after"
)

// Attempt identifies a single call to Engine.Transition. It is placed in the context
// handed to guards and callbacks.
type Attempt struct {
	ID         string
	Machine    string
	Transition string
	From       string
	To         string
}

// AttemptFromContext returns the Attempt stored in ctx by the engine, if any.
func AttemptFromContext(ctx context.Context) (Attempt, bool) {
	attempt, ok := ctx.Value(attemptContextKey).(Attempt)

	return attempt, ok
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	name   string
	logger Logger
}

// WithName sets the name reported in logs, metrics and spans.
func WithName(name string) Option {
	return func(o *engineOptions) {
		o.name = name
	}
}

// WithLogger enables logging of transition attempts. Without it the engine logs nothing.
func WithLogger(logger Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// Engine holds a fixed set of named transitions and performs them on StateAware objects.
// It keeps no per-call state, so one Engine may serve many goroutines as long as they
// work on different objects. Calls on the same object are not serialized; see LockingEngine.
type Engine[T StateAware] struct {
	name        string
	states      []string
	transitions map[string]Transition[T]
	logger      Logger
}

// NewEngine creates an engine. The states list is informational and is never checked
// against an object's state or a transition's destination. Both arguments are copied.
func NewEngine[T StateAware](states []string, transitions map[string]Transition[T], opts ...Option) *Engine[T] {
	options := engineOptions{name: defaultEngineName}
	for _, opt := range opts {
		opt(&options)
	}

	return &Engine[T]{
		name:        options.name,
		states:      slices.Clone(states),
		transitions: maps.Clone(transitions),
		logger:      options.logger,
	}
}

// Name returns the engine name used for observability.
func (e *Engine[T]) Name() string {
	return e.name
}

// States returns the declared state labels.
func (e *Engine[T]) States() []string {
	return slices.Clone(e.states)
}

// TransitionNames returns every registered transition name in natural order.
func (e *Engine[T]) TransitionNames() []string {
	names := slices.Collect(maps.Keys(e.transitions))
	natsort.Sort(names)

	return names
}

// Lookup returns the transition registered under name.
func (e *Engine[T]) Lookup(name string) (Transition[T], bool) {
	t, ok := e.transitions[name]

	return t, ok
}

// Can reports whether the named transition exists and is legal from obj's current
// state. Guards are not evaluated.
func (e *Engine[T]) Can(obj T, name string) bool {
	t, ok := e.transitions[name]

	return ok && t.Permits(obj.GetState())
}

// Available returns, in natural order, the transitions legal from obj's current state.
// Guards are not evaluated.
func (e *Engine[T]) Available(obj T) []string {
	state := obj.GetState()
	names := make([]string, 0, len(e.transitions))

	for name, t := range e.transitions {
		if t.Permits(state) {
			names = append(names, name)
		}
	}

	natsort.Sort(names)

	return names
}

// Edge is one source state of a named transition.
type Edge struct {
	Transition string
	From       string
	To         string
	Guards     int
	// NoSource marks the single Edge of a transition with no source states.
	// From is empty and carries no meaning then.
	NoSource bool
}

// Edges flattens the transition table into one Edge per source state, ordered by
// transition name and then by the order the source states were given in.
// A transition with no source states yields one Edge with NoSource set.
func (e *Engine[T]) Edges() []Edge {
	var edges []Edge

	for _, name := range e.TransitionNames() {
		t := e.transitions[name]

		if len(t.from) == 0 {
			edges = append(edges, Edge{Transition: name, To: t.to, Guards: len(t.guards), NoSource: true})

			continue
		}

		for _, from := range t.from {
			edges = append(edges, Edge{Transition: name, From: from, To: t.to, Guards: len(t.guards)})
		}
	}

	return edges
}

// Transition performs the named transition on obj.
//
// The steps are strictly sequential: lookup, source state check, guards (stopping at
// the first that refuses), before callbacks, the state mutation, after callbacks.
// ErrTransitionNotFound, ErrWrongState and ErrGuardRejected (wrapped in a
// *TransitionError) leave obj untouched. An error returned by a callback is passed
// back unchanged; if it came from an after callback the state has already changed.
func (e *Engine[T]) Transition(ctx context.Context, obj T, name string) (err error) {
	start := time.Now()
	from := obj.GetState()
	transition, found := e.transitions[name]

	attempt := Attempt{
		ID:         uuid.NewString(),
		Machine:    e.name,
		Transition: name,
		From:       from,
		To:         transition.to,
	}

	ctx = context.WithValue(ctx, attemptContextKey, attempt)

	ctx, span := startTransitionSpan(ctx, attempt)
	outcome := outcomePanic

	defer func() {
		if outcome == outcomePanic {
			abandonSpan(span)
		} else {
			finishSpan(span, err)
		}

		label := name
		if !found {
			label = unknownTransition
		}

		recordTransition(e.name, label, outcome, time.Since(start))
	}()

	if !found {
		outcome = outcomeNotFound
		err = newTransitionError(name, from, ErrTransitionNotFound)
		e.logRejected(ctx, attempt, err)

		return err
	}

	if !transition.Permits(from) {
		outcome = outcomeWrongState
		err = newTransitionError(name, from, ErrWrongState)
		e.logRejected(ctx, attempt, err)

		return err
	}

	if e.logger != nil {
		e.logger.TransitionStarted(ctx, attempt)
	}

	for i, guard := range transition.guards {
		if !e.checkGuard(ctx, attempt, i, guard, obj) {
			outcome = outcomeGuardRejected
			err = newGuardError(name, from, i)
			e.logRejected(ctx, attempt, err)

			return err
		}
	}

	if err = e.runCallbacks(ctx, attempt, phaseBefore, transition.before, obj); err != nil {
		outcome = outcomeCallbackError

		return err
	}

	obj.SetState(transition.to)

	if err = e.runCallbacks(ctx, attempt, phaseAfter, transition.after, obj); err != nil {
		outcome = outcomeCallbackError

		return err
	}

	outcome = outcomeSuccess

	if e.logger != nil {
		e.logger.TransitionCompleted(ctx, attempt, time.Since(start))
	}

	return nil
}

func (e *Engine[T]) checkGuard(ctx context.Context, attempt Attempt, index int, guard Guard[T], obj T) bool {
	guardCtx, span := startHookSpan(ctx, phaseGuard, index)
	completed := false

	defer func() {
		if !completed {
			abandonSpan(span)

			return
		}

		span.End()
	}()

	allowed := guard.Allow(guardCtx, obj)
	completed = true

	recordGuard(attempt.Machine, attempt.Transition, allowed)
	span.SetAttributes(guardResultAttr(allowed))

	return allowed
}

func (e *Engine[T]) runCallbacks(
	ctx context.Context,
	attempt Attempt,
	phase string,
	callbacks []Callback[T],
	obj T,
) error {
	for i, callback := range callbacks {
		if err := e.runCallback(ctx, attempt, phase, i, callback, obj); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine[T]) runCallback(
	ctx context.Context,
	attempt Attempt,
	phase string,
	index int,
	callback Callback[T],
	obj T,
) (err error) {
	hookCtx, span := startHookSpan(ctx, phase, index)
	completed := false

	defer func() {
		if !completed {
			abandonSpan(span)

			return
		}

		finishSpan(span, err)
	}()

	err = callback.Run(hookCtx, obj)
	completed = true

	recordCallback(attempt.Machine, attempt.Transition, phase, err)

	if err != nil && e.logger != nil {
		e.logger.CallbackFailed(ctx, attempt, phase+"."+strconv.Itoa(index), err)
	}

	return err
}

func (e *Engine[T]) logRejected(ctx context.Context, attempt Attempt, err error) {
	if e.logger != nil {
		e.logger.TransitionRejected(ctx, attempt, err)
	}
}
