package statemachine

import (
	"context"
	"log/slog"
	"time"

	"github.com/amp-labs/amp-fsm/logger"
)

// Logger provides logging hooks for transition attempts.
type Logger interface {
	TransitionStarted(ctx context.Context, attempt Attempt)
	TransitionRejected(ctx context.Context, attempt Attempt, err error)
	TransitionCompleted(ctx context.Context, attempt Attempt, duration time.Duration)
	CallbackFailed(ctx context.Context, attempt Attempt, hook string, err error)
}

// DefaultLogger implements Logger using slog.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a logger that writes through logger.Get, so subsystem
// and context values set with the logger package are included.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{}
}

// NewSlogLogger creates a logger that writes to the given slog.Logger.
func NewSlogLogger(l *slog.Logger) *DefaultLogger {
	return &DefaultLogger{
		logger: l,
	}
}

func (l *DefaultLogger) get(ctx context.Context) *slog.Logger {
	if l.logger != nil {
		return l.logger
	}

	return logger.Get(ctx)
}

func attemptFields(attempt Attempt) []any {
	return []any{
		"machine", attempt.Machine,
		"transition", attempt.Transition,
		"from", attempt.From,
		"to", attempt.To,
		"attempt_id", attempt.ID,
	}
}

func (l *DefaultLogger) TransitionStarted(ctx context.Context, attempt Attempt) {
	l.get(ctx).DebugContext(ctx, "Transition started", attemptFields(attempt)...)
}

func (l *DefaultLogger) TransitionRejected(ctx context.Context, attempt Attempt, err error) {
	l.get(ctx).WarnContext(ctx, "Transition rejected", append(attemptFields(attempt), "error", err)...)
}

func (l *DefaultLogger) TransitionCompleted(ctx context.Context, attempt Attempt, duration time.Duration) {
	l.get(ctx).InfoContext(ctx, "Transition completed",
		append(attemptFields(attempt), "duration_ms", duration.Milliseconds())...)
}

func (l *DefaultLogger) CallbackFailed(ctx context.Context, attempt Attempt, hook string, err error) {
	l.get(ctx).ErrorContext(ctx, "Callback failed",
		append(attemptFields(attempt), "hook", hook, "error", err)...)
}

// WithLogging returns a copy of engine that logs through l.
// A nil l selects NewDefaultLogger.
func WithLogging[T StateAware](engine *Engine[T], l Logger) *Engine[T] {
	if l == nil {
		l = NewDefaultLogger()
	}

	clone := *engine
	clone.logger = l

	return &clone
}
