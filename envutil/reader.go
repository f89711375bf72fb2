package envutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

var (
	// ErrBadEnvVar wraps a parse failure, together with the variable's name.
	ErrBadEnvVar = errors.New("error parsing environment variable")
	// ErrEnvVarMissing is returned by Value for an unset variable with no default.
	ErrEnvVarMissing = errors.New("missing environment variable")
)

// Reader is the outcome of looking up one environment variable: whether it was
// set, its parsed value and the parse error, if any. Readers are immutable;
// WithDefault and Map return new ones.
type Reader[A any] struct {
	key     string
	present bool
	value   A
	err     error
}

// Option adjusts a Reader while String, Bool, Duration or SlogLevel build it.
type Option[T any] func(Reader[T]) Reader[T]

// Default supplies dflt for an unset variable. A variable that is set but fails
// to parse keeps its error.
func Default[T any](dflt T) Option[T] {
	return func(r Reader[T]) Reader[T] {
		return r.WithDefault(dflt)
	}
}

func apply[T any](r Reader[T], opts []Option[T]) Reader[T] {
	for _, opt := range opts {
		r = opt(r)
	}

	return r
}

// Value returns the parsed value. It fails with ErrBadEnvVar when parsing failed
// and with ErrEnvVarMissing when the variable is unset.
func (r Reader[A]) Value() (A, error) { //nolint:ireturn
	switch {
	case r.err != nil:
		return r.value, fmt.Errorf("%w %s: %w", ErrBadEnvVar, r.key, r.err)
	case !r.present:
		return r.value, fmt.Errorf("%w %s", ErrEnvVarMissing, r.key)
	default:
		return r.value, nil
	}
}

// ValueOrFatal is Value for settings the process cannot start without: any
// error is logged and the process exits.
func (r Reader[A]) ValueOrFatal() A { //nolint:ireturn
	val, err := r.Value()
	if err != nil {
		slog.Error("Invalid environment variable", "key", r.key, "error", err)
		os.Exit(1)
	}

	return val
}

// ValueOrElse returns fallback when the variable is unset or unparsable. Parse
// failures are logged, since they usually mean a typo in deployment config.
func (r Reader[A]) ValueOrElse(fallback A) A { //nolint:ireturn
	if r.err != nil {
		slog.Warn("Invalid environment variable, using fallback",
			"key", r.key, "error", r.err, "fallback", fallback)

		return fallback
	}

	if !r.present {
		return fallback
	}

	return r.value
}

// Error returns the parse error, if any. An unset variable is not an error here.
func (r Reader[A]) Error() error {
	return r.err
}

// WithDefault treats an unset variable as if it were set to dflt.
func (r Reader[A]) WithDefault(dflt A) Reader[A] { //nolint:ireturn
	if r.present {
		return r
	}

	return Reader[A]{key: r.key, present: true, value: dflt, err: r.err}
}

// Map parses or converts a Reader's value. f runs only for a set variable with
// no earlier error; its error becomes the new Reader's error.
func Map[A, B any](r Reader[A], f func(A) (B, error)) Reader[B] {
	out := Reader[B]{key: r.key, present: r.present, err: r.err}

	if !r.present || r.err != nil {
		return out
	}

	out.value, out.err = f(r.value)

	return out
}
