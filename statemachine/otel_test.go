package statemachine

import (
	"context"
	"testing"

	"github.com/amp-labs/amp-fsm/envutil"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// testObject is a StateAware for tests inside the package.
type testObject struct {
	Stateful
}

func newTestObject(state string) *testObject {
	return &testObject{Stateful: Stateful{State: state}}
}

// setupTestTracer creates a test tracer with an in-memory exporter.
func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
	)

	oldProvider := otel.GetTracerProvider()

	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		otel.SetTracerProvider(oldProvider)
	})

	return exporter
}

func spanAttributes(span tracetest.SpanStub) map[string]any {
	attrMap := make(map[string]any)
	for _, attr := range span.Attributes {
		attrMap[string(attr.Key)] = attr.Value.AsInterface()
	}

	return attrMap
}

func spanNames(spans tracetest.SpanStubs) []string {
	names := make([]string, 0, len(spans))
	for _, span := range spans {
		names = append(names, span.Name)
	}

	return names
}

// TestTransitionSpans verifies the span tree produced by a successful transition.
// Note: Cannot use t.Parallel() because setupTestTracer modifies global OTEL tracer provider.
//
//nolint:paralleltest // Test modifies global OTEL tracer provider
func TestTransitionSpans(t *testing.T) {
	exporter := setupTestTracer(t)

	noop := CallbackFunc[*testObject](func(context.Context, *testObject) error { return nil })
	allow := GuardFunc[*testObject](func(context.Context, *testObject) bool { return true })

	engine := NewEngine([]string{"start", "stop"}, map[string]Transition[*testObject]{
		"go": NewTransition([]string{"start"}, "stop",
			WithGuards[*testObject](allow),
			WithBefore[*testObject](noop, noop),
			WithAfter[*testObject](noop),
		),
	}, WithName("spans"))

	require.NoError(t, engine.Transition(t.Context(), newTestObject("start"), "go"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 5)

	// Children end before their parent.
	assert.Equal(t, []string{"guard.0", "before.0", "before.1", "after.0", "statemachine.transition"}, spanNames(spans))

	root := spans[4]
	attrs := spanAttributes(root)
	assert.Equal(t, "spans", attrs["machine"])
	assert.Equal(t, "go", attrs["transition"])
	assert.Equal(t, "start", attrs["from_state"])
	assert.Equal(t, "stop", attrs["to_state"])
	assert.NotEmpty(t, attrs["attempt_id"])
	assert.Equal(t, codes.Ok, root.Status.Code)

	for _, child := range spans[:4] {
		assert.Equal(t, root.SpanContext.SpanID(), child.Parent.SpanID(), child.Name)
	}

	assert.Equal(t, true, spanAttributes(spans[0])["allowed"])
}

// TestTransitionSpanErrors verifies that rejected attempts are recorded as span errors.
//
//nolint:paralleltest // Test modifies global OTEL tracer provider
func TestTransitionSpanErrors(t *testing.T) {
	exporter := setupTestTracer(t)

	engine := NewEngine(nil, map[string]Transition[*testObject]{
		"go": NewTransition[*testObject]([]string{"start"}, "stop"),
	})

	tests := []struct {
		name       string
		state      string
		transition string
	}{
		{"not found", "start", "missing"},
		{"wrong state", "stop", "go"},
	}

	//nolint:paralleltest // Subtests share exporter, must run sequentially
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			err := engine.Transition(t.Context(), newTestObject(tt.state), tt.transition)
			require.Error(t, err)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)

			span := spans[0]
			assert.Equal(t, codes.Error, span.Status.Code)
			assert.Equal(t, err.Error(), span.Status.Description)
			require.Len(t, span.Events, 1)
			assert.Equal(t, "exception", span.Events[0].Name)
		})
	}
}

// TestPanickedAttemptSpans verifies that a panicking guard or callback leaves its own span
// and the transition span ended with an error status, and counts the attempt as a panic.
//
//nolint:paralleltest // Test modifies global OTEL tracer provider
func TestPanickedAttemptSpans(t *testing.T) {
	exporter := setupTestTracer(t)

	panicking := func(context.Context, *testObject) error { panic("boom") }

	tests := []struct {
		name     string
		opt      TransitionOption[*testObject]
		hookSpan string
	}{
		{
			name:     "guard",
			opt:      WithGuards[*testObject](GuardFunc[*testObject](func(context.Context, *testObject) bool { panic("boom") })),
			hookSpan: "guard.0",
		},
		{
			name:     "before",
			opt:      WithBefore[*testObject](CallbackFunc[*testObject](panicking)),
			hookSpan: "before.0",
		},
		{
			name:     "after",
			opt:      WithAfter[*testObject](CallbackFunc[*testObject](panicking)),
			hookSpan: "after.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			machine := "panic-" + tt.name
			engine := NewEngine(nil, map[string]Transition[*testObject]{
				"go": NewTransition([]string{"start"}, "stop", tt.opt),
			}, WithName(machine))

			assert.PanicsWithValue(t, "boom", func() {
				_ = engine.Transition(t.Context(), newTestObject("start"), "go")
			})

			spans := exporter.GetSpans()
			require.Len(t, spans, 2)
			assert.Equal(t, []string{tt.hookSpan, "statemachine.transition"}, spanNames(spans))

			for _, span := range spans {
				assert.Equal(t, codes.Error, span.Status.Code, span.Name)
				assert.Equal(t, outcomePanic, span.Status.Description, span.Name)
				assert.False(t, span.EndTime.IsZero(), span.Name)
			}

			assert.InDelta(t, 1,
				testutil.ToFloat64(transitionsTotal.WithLabelValues(machine, "go", outcomePanic)), 0)
			assert.InDelta(t, 0,
				testutil.ToFloat64(transitionsTotal.WithLabelValues(machine, "go", outcomeSuccess)), 0)
		})
	}
}

func TestDebugMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"TRUE", true},
		{"", false},
		{"off", false},
		{"sometimes", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()

			ctx := envutil.WithEnvOverride(t.Context(), "STATEMACHINE_DEBUG", tt.value)
			assert.Equal(t, tt.want, isDebugMode(ctx))
		})
	}
}
