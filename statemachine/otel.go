package statemachine

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/amp-labs/amp-fsm/envutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "statemachine"

// startTransitionSpan creates the root span for one transition attempt.
// Uses the global tracer initialized by github.com/amp-labs/amp-fsm/telemetry.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller (factory pattern)
func startTransitionSpan(ctx context.Context, attempt Attempt) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "statemachine.transition")
	span.SetAttributes(
		attribute.String("machine", attempt.Machine),
		attribute.String("transition", attempt.Transition),
		attribute.String("from_state", attempt.From),
		attribute.String("to_state", attempt.To),
		attribute.String("attempt_id", attempt.ID),
	)
	logSpanDebug(ctx, "statemachine.transition", span)

	return ctx, span
}

// startHookSpan creates a child span for a single guard or callback invocation.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller (factory pattern)
func startHookSpan(ctx context.Context, phase string, index int) (context.Context, trace.Span) {
	spanName := phase + "." + strconv.Itoa(index)
	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName)
	span.SetAttributes(
		attribute.String("phase", phase),
		attribute.Int("index", index),
	)
	logSpanDebug(ctx, spanName, span)

	return ctx, span
}

// finishSpan records the outcome on span and ends it.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "completed")
	}

	span.End()
}

// abandonSpan ends the span of a guard, callback or attempt that panicked.
// The panic itself keeps unwinding.
func abandonSpan(span trace.Span) {
	span.SetStatus(codes.Error, outcomePanic)
	span.End()
}

func guardResultAttr(allowed bool) attribute.KeyValue {
	return attribute.Bool("allowed", allowed)
}

// logSpanDebug logs span creation when STATEMACHINE_DEBUG is enabled.
func logSpanDebug(ctx context.Context, spanName string, span trace.Span) {
	if !isDebugMode(ctx) {
		return
	}

	spanCtx := span.SpanContext()
	slog.DebugContext(ctx, "OTEL Span started",
		"span_name", spanName,
		"trace_id", spanCtx.TraceID().String(),
		"span_id", spanCtx.SpanID().String(),
	)
}

func isDebugMode(ctx context.Context) bool {
	return envutil.Bool(ctx, "STATEMACHINE_DEBUG").ValueOrElse(false)
}
