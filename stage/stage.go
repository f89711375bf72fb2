// Package stage determines the deployment environment (local, test, dev,
// staging, prod) from the RUNNING_ENV environment variable. The result is
// reported to telemetry as the deployment environment.
package stage

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sync"

	"github.com/amp-labs/amp-fsm/envutil"
	"github.com/amp-labs/amp-fsm/logger"
)

// Stage represents a deployment environment.
type Stage string

// ErrUnrecognizedStage is returned when the RUNNING_ENV contains an invalid stage value.
var ErrUnrecognizedStage = errors.New("unrecognized stage")

const (
	// Unknown indicates the stage could not be determined.
	Unknown Stage = "unknown"
	// Local indicates the code is running on a developer's local machine.
	Local Stage = "local"
	// Test indicates the code is running in unit tests.
	Test Stage = "test"
	// Dev indicates the code is running in the development environment.
	Dev Stage = "dev"
	// Staging indicates the code is running in the staging environment.
	Staging Stage = "staging"
	// Prod indicates the code is running in the production environment.
	Prod Stage = "prod"
)

// Current returns the stage of the process environment. It is determined on
// first call and cached.
func Current() Stage {
	return runningStage()
}

var runningStage = sync.OnceValue(func() Stage { //nolint:gochecknoglobals
	value := Detect(context.Background())

	if value != Unknown {
		logger.Get().Info("Configured stage", "stage", value)
	}

	return value
})

// Parse converts a RUNNING_ENV value to a Stage.
func Parse(s string) (Stage, error) {
	switch Stage(s) {
	case Local, Test, Dev, Staging, Prod:
		return Stage(s), nil
	case Unknown:
		fallthrough
	default:
		return "", fmt.Errorf("%w: %s", ErrUnrecognizedStage, s)
	}
}

// Detect reads RUNNING_ENV through ctx, without caching. An unset or invalid
// value yields Test inside a test binary and Unknown otherwise.
func Detect(ctx context.Context) Stage {
	env := envutil.Map(envutil.String(ctx, "RUNNING_ENV"), Parse)

	if err := env.Error(); err != nil {
		logger.Get(ctx).Warn("unknown stage", "error", err)
	}

	if flag.Lookup("test.v") != nil {
		return env.ValueOrElse(Test)
	}

	return env.ValueOrElse(Unknown)
}
