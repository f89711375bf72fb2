package statemachine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/amp-labs/amp-fsm/statemachine/statemachinetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type obj = statemachinetest.Object

const (
	stateStart = "start"
	stateStop  = "stop"
)

var (
	errBeforeFailed = errors.New("before failed") //nolint:err113 // Test error
	errAfterFailed  = errors.New("after failed")  //nolint:err113 // Test error
)

func newStartStopEngine(opts ...statemachine.TransitionOption[*obj]) *statemachine.Engine[*obj] {
	return statemachine.NewEngine(
		[]string{stateStart, stateStop},
		map[string]statemachine.Transition[*obj]{
			"go": statemachine.NewTransition([]string{stateStart}, stateStop, opts...),
		},
	)
}

func TestStartStopScenario(t *testing.T) {
	t.Parallel()

	engine := newStartStopEngine()

	t.Run("from start", func(t *testing.T) {
		t.Parallel()

		o := statemachinetest.NewObject("a", stateStart)

		require.NoError(t, engine.Transition(t.Context(), o, "go"))
		assert.Equal(t, stateStop, o.GetState())
	})

	t.Run("from stop", func(t *testing.T) {
		t.Parallel()

		o := statemachinetest.NewObject("b", stateStop)

		err := engine.Transition(t.Context(), o, "go")
		require.ErrorIs(t, err, statemachine.ErrWrongState)
		assert.Equal(t, stateStop, o.GetState())
	})

	t.Run("missing transition", func(t *testing.T) {
		t.Parallel()

		o := statemachinetest.NewObject("c", stateStart)

		err := engine.Transition(t.Context(), o, "missing")
		require.ErrorIs(t, err, statemachine.ErrTransitionNotFound)
		assert.Equal(t, stateStart, o.GetState())
	})
}

func TestTransitionNotFoundRegardlessOfState(t *testing.T) {
	t.Parallel()

	engine := newStartStopEngine()

	for _, state := range []string{stateStart, stateStop, "", "undeclared"} {
		o := statemachinetest.NewObject("x", state)

		err := engine.Transition(t.Context(), o, "nope")
		require.ErrorIs(t, err, statemachine.ErrTransitionNotFound, "state %q", state)
		assert.Equal(t, state, o.GetState())
	}
}

func TestErrorTaxonomy(t *testing.T) {
	t.Parallel()

	reject := statemachinetest.NewCountingGuard[*obj]("reject", false, nil)
	engine := statemachine.NewEngine(nil, map[string]statemachine.Transition[*obj]{
		"go":      statemachine.NewTransition[*obj]([]string{stateStart}, stateStop),
		"guarded": statemachine.NewTransition([]string{stateStart}, stateStop, statemachine.WithGuards[*obj](reject)),
	})

	tests := []struct {
		name       string
		state      string
		transition string
		want       error
		guard      int
	}{
		{"not found", stateStart, "missing", statemachine.ErrTransitionNotFound, -1},
		{"wrong state", stateStop, "go", statemachine.ErrWrongState, -1},
		{"guard rejected", stateStart, "guarded", statemachine.ErrGuardRejected, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := engine.Transition(t.Context(), statemachinetest.NewObject("x", tt.state), tt.transition)
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, statemachine.ErrStateMachine)

			var transitionErr *statemachine.TransitionError
			require.ErrorAs(t, err, &transitionErr)
			assert.Equal(t, tt.transition, transitionErr.Transition)
			assert.Equal(t, tt.state, transitionErr.State)
			assert.Equal(t, tt.guard, transitionErr.Guard)
		})
	}
}

func TestGuardsShortCircuit(t *testing.T) {
	t.Parallel()

	g1 := statemachinetest.NewCountingGuard[*obj]("g1", true, nil)
	g2 := statemachinetest.NewCountingGuard[*obj]("g2", false, nil)
	g3 := statemachinetest.NewCountingGuard[*obj]("g3", true, nil)
	before := statemachinetest.NewCountingCallback[*obj]("before", nil, nil)
	after := statemachinetest.NewCountingCallback[*obj]("after", nil, nil)

	engine := newStartStopEngine(
		statemachine.WithGuards[*obj](g1, g2, g3),
		statemachine.WithBefore[*obj](before),
		statemachine.WithAfter[*obj](after),
	)

	o := statemachinetest.NewObject("a", stateStart)
	err := engine.Transition(t.Context(), o, "go")

	require.ErrorIs(t, err, statemachine.ErrGuardRejected)
	assert.Equal(t, stateStart, o.GetState())
	assert.Equal(t, int64(1), g1.Calls())
	assert.Equal(t, int64(1), g2.Calls())
	assert.Equal(t, int64(0), g3.Calls())
	assert.Equal(t, int64(0), before.Calls())
	assert.Equal(t, int64(0), after.Calls())

	var transitionErr *statemachine.TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, 1, transitionErr.Guard)
}

func TestCallbackOrdering(t *testing.T) {
	t.Parallel()

	recorder := &statemachinetest.Recorder{}

	engine := newStartStopEngine(
		statemachine.WithGuards[*obj](
			statemachinetest.NewCountingGuard[*obj]("g1", true, recorder),
			statemachinetest.NewCountingGuard[*obj]("g2", true, recorder),
		),
		statemachine.WithBefore[*obj](
			statemachinetest.NewCountingCallback[*obj]("b1", nil, recorder),
			statemachinetest.NewCountingCallback[*obj]("b2", nil, recorder),
		),
		statemachine.WithAfter[*obj](
			statemachinetest.NewCountingCallback[*obj]("a1", nil, recorder),
			statemachinetest.NewCountingCallback[*obj]("a2", nil, recorder),
		),
	)

	o := statemachinetest.NewObject("a", stateStart)
	require.NoError(t, engine.Transition(t.Context(), o, "go"))

	// The state recorded by each callback shows on which side of the mutation it ran.
	assert.Equal(t, []string{
		"g1", "g2",
		"b1@start", "b2@start",
		"a1@stop", "a2@stop",
	}, recorder.Events())
}

func TestSharedCallbackRunsOncePerSlot(t *testing.T) {
	t.Parallel()

	shared := statemachinetest.NewCountingCallback[*obj]("shared", nil, nil)
	guard := statemachinetest.NewCountingGuard[*obj]("guard", true, nil)

	engine := newStartStopEngine(
		statemachine.WithGuards[*obj](guard, guard),
		statemachine.WithBefore[*obj](shared),
		statemachine.WithAfter[*obj](shared),
	)

	require.NoError(t, engine.Transition(t.Context(), statemachinetest.NewObject("a", stateStart), "go"))
	assert.Equal(t, int64(2), shared.Calls())
	assert.Equal(t, int64(2), guard.Calls())
}

func TestBeforeCallbackErrorPropagates(t *testing.T) {
	t.Parallel()

	b2 := statemachinetest.NewCountingCallback[*obj]("b2", nil, nil)
	after := statemachinetest.NewCountingCallback[*obj]("after", nil, nil)

	engine := newStartStopEngine(
		statemachine.WithBefore[*obj](
			statemachinetest.NewCountingCallback[*obj]("b1", errBeforeFailed, nil),
			b2,
		),
		statemachine.WithAfter[*obj](after),
	)

	o := statemachinetest.NewObject("a", stateStart)
	err := engine.Transition(t.Context(), o, "go")

	assert.Equal(t, errBeforeFailed, err) //nolint:testifylint // Must be the very same error value
	assert.NotErrorIs(t, err, statemachine.ErrStateMachine)
	assert.Equal(t, stateStart, o.GetState())
	assert.Equal(t, int64(0), b2.Calls())
	assert.Equal(t, int64(0), after.Calls())
}

func TestAfterCallbackErrorDoesNotRollBack(t *testing.T) {
	t.Parallel()

	a2 := statemachinetest.NewCountingCallback[*obj]("a2", nil, nil)

	engine := newStartStopEngine(
		statemachine.WithAfter[*obj](
			statemachinetest.NewCountingCallback[*obj]("a1", errAfterFailed, nil),
			a2,
		),
	)

	o := statemachinetest.NewObject("a", stateStart)
	err := engine.Transition(t.Context(), o, "go")

	assert.Equal(t, errAfterFailed, err) //nolint:testifylint // Must be the very same error value
	assert.Equal(t, stateStop, o.GetState())
	assert.Equal(t, int64(0), a2.Calls())
}

func TestCallbackPanicIsNotRecovered(t *testing.T) {
	t.Parallel()

	engine := newStartStopEngine(
		statemachine.WithBefore[*obj](statemachine.CallbackFunc[*obj](func(context.Context, *obj) error {
			panic("boom")
		})),
	)

	o := statemachinetest.NewObject("a", stateStart)

	assert.PanicsWithValue(t, "boom", func() {
		_ = engine.Transition(t.Context(), o, "go")
	})
	assert.Equal(t, stateStart, o.GetState())
}

func TestToStateIsNotValidated(t *testing.T) {
	t.Parallel()

	engine := statemachine.NewEngine([]string{stateStart, stateStop}, map[string]statemachine.Transition[*obj]{
		"elsewhere": statemachine.NewTransition[*obj]([]string{stateStart}, "undeclared"),
	})

	o := statemachinetest.NewObject("a", stateStart)
	require.NoError(t, engine.Transition(t.Context(), o, "elsewhere"))
	assert.Equal(t, "undeclared", o.GetState())
}

func TestObjectStateIsNotValidatedAgainstDeclaredStates(t *testing.T) {
	t.Parallel()

	engine := statemachine.NewEngine([]string{stateStart, stateStop}, map[string]statemachine.Transition[*obj]{
		"recover": statemachine.NewTransition[*obj]([]string{"legacy"}, stateStart),
	})

	o := statemachinetest.NewObject("a", "legacy")
	require.NoError(t, engine.Transition(t.Context(), o, "recover"))
	assert.Equal(t, stateStart, o.GetState())
}

func TestEmptyFromStatesPermitsNothing(t *testing.T) {
	t.Parallel()

	engine := statemachine.NewEngine(nil, map[string]statemachine.Transition[*obj]{
		"never": statemachine.NewTransition[*obj](nil, stateStop),
	})

	o := statemachinetest.NewObject("a", "")
	require.ErrorIs(t, engine.Transition(t.Context(), o, "never"), statemachine.ErrWrongState)
}

func TestContextReachesHooks(t *testing.T) {
	t.Parallel()

	type ctxKey struct{}

	var (
		guardSaw    any
		callbackSaw statemachine.Attempt
	)

	engine := statemachine.NewEngine(nil, map[string]statemachine.Transition[*obj]{
		"go": statemachine.NewTransition([]string{stateStart}, stateStop,
			statemachine.WithGuards[*obj](statemachine.GuardFunc[*obj](func(ctx context.Context, _ *obj) bool {
				guardSaw = ctx.Value(ctxKey{})

				return true
			})),
			statemachine.WithAfter[*obj](statemachine.CallbackFunc[*obj](func(ctx context.Context, _ *obj) error {
				callbackSaw, _ = statemachine.AttemptFromContext(ctx)

				return nil
			})),
		),
	}, statemachine.WithName("orders"))

	ctx := context.WithValue(t.Context(), ctxKey{}, "value")
	require.NoError(t, engine.Transition(ctx, statemachinetest.NewObject("a", stateStart), "go"))

	assert.Equal(t, "value", guardSaw)
	assert.Equal(t, "orders", callbackSaw.Machine)
	assert.Equal(t, "go", callbackSaw.Transition)
	assert.Equal(t, stateStart, callbackSaw.From)
	assert.Equal(t, stateStop, callbackSaw.To)
	assert.NotEmpty(t, callbackSaw.ID)
}

func TestEngineIsolatedFromInputs(t *testing.T) {
	t.Parallel()

	from := []string{stateStart}
	states := []string{stateStart, stateStop}
	transitions := map[string]statemachine.Transition[*obj]{
		"go": statemachine.NewTransition[*obj](from, stateStop),
	}

	engine := statemachine.NewEngine(states, transitions)

	from[0] = "mutated"
	states[0] = "mutated"
	delete(transitions, "go")

	assert.Equal(t, []string{stateStart, stateStop}, engine.States())
	require.NoError(t, engine.Transition(t.Context(), statemachinetest.NewObject("a", stateStart), "go"))
}

func TestQueries(t *testing.T) {
	t.Parallel()

	engine := statemachine.NewEngine(
		[]string{"draft", "review", "published"},
		map[string]statemachine.Transition[*obj]{
			"step10":  statemachine.NewTransition[*obj]([]string{"draft"}, "review"),
			"step2":   statemachine.NewTransition[*obj]([]string{"draft", "review"}, "published"),
			"retract": statemachine.NewTransition[*obj]([]string{"published"}, "draft"),
		},
	)

	assert.Equal(t, []string{"retract", "step2", "step10"}, engine.TransitionNames())
	assert.Equal(t, "statemachine", engine.Name())

	draft := statemachinetest.NewObject("a", "draft")
	assert.Equal(t, []string{"step2", "step10"}, engine.Available(draft))
	assert.True(t, engine.Can(draft, "step10"))
	assert.False(t, engine.Can(draft, "retract"))
	assert.False(t, engine.Can(draft, "missing"))

	transition, ok := engine.Lookup("step2")
	require.True(t, ok)
	assert.Equal(t, "published", transition.ToState())
	assert.ElementsMatch(t, []string{"draft", "review"}, transition.FromStates())

	_, ok = engine.Lookup("missing")
	assert.False(t, ok)
}

func TestEdges(t *testing.T) {
	t.Parallel()

	allow := statemachinetest.NewCountingGuard[*obj]("allow", true, nil)

	engine := statemachine.NewEngine(
		[]string{"draft", "review", "published"},
		map[string]statemachine.Transition[*obj]{
			"publish": statemachine.NewTransition([]string{"review", "draft"}, "published",
				statemachine.WithGuards[*obj](allow, allow)),
			"orphan": statemachine.NewTransition[*obj](nil, "draft"),
		},
	)

	assert.Equal(t, []statemachine.Edge{
		{Transition: "orphan", To: "draft", NoSource: true},
		{Transition: "publish", From: "review", To: "published", Guards: 2},
		{Transition: "publish", From: "draft", To: "published", Guards: 2},
	}, engine.Edges())
}
