// Package startup brings up the ambient stack of a process that embeds state
// machines: environment files, logging and OpenTelemetry export.
package startup

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/amp-labs/amp-fsm/envutil"
	"github.com/amp-labs/amp-fsm/logger"
	"github.com/amp-labs/amp-fsm/shutdown"
	"github.com/amp-labs/amp-fsm/stage"
	"github.com/amp-labs/amp-fsm/telemetry"
)

// Option is a functional option for configuring environment loading behavior.
type Option func(*options)

type options struct {
	// allowOverride lets values loaded from files replace variables that
	// are already set in the process.
	allowOverride bool
}

// WithAllowOverride configures whether loaded environment variables can override
// existing environment variables in the process.
func WithAllowOverride(allowOverride bool) Option {
	return func(o *options) {
		o.allowOverride = allowOverride
	}
}

// ConfigureEnvironment loads the files named in ENV_FILE, a semicolon-separated
// list such as "/etc/app/.env;./local.yaml", into the process environment.
// If ENV_FILE is not set or empty, it does nothing.
func ConfigureEnvironment(ctx context.Context, opts ...Option) error {
	envFiles := envutil.Map(envutil.String(ctx, "ENV_FILE"), splitEnvFileList).ValueOrElse(nil)

	return ConfigureEnvironmentFromFiles(envFiles, opts...)
}

// ConfigureEnvironmentFromFiles loads the given files, later files winning over
// earlier ones, and exports the result. Existing variables are preserved
// unless WithAllowOverride(true) is given.
func ConfigureEnvironmentFromFiles(envFiles []string, opts ...Option) error {
	cfg := getOptions(opts)

	if len(envFiles) == 0 {
		return nil
	}

	merged := make(map[string]string)

	for _, file := range envFiles {
		env, err := envutil.LoadEnvFile(file)
		if err != nil {
			return fmt.Errorf("loading environment variables from file %q: %w", file, err)
		}

		maps.Copy(merged, env)
	}

	return envutil.Apply(merged, cfg.allowOverride)
}

const telemetryFlushTimeout = 5 * time.Second

// Start loads environment files, configures logging for app, initializes
// telemetry for the stage named by RUNNING_ENV and, when OTLP log export is on,
// tees the logger into it. Telemetry is flushed by a shutdown hook; the returned function does
// the same for callers that exit on their own.
func Start(ctx context.Context, app string, opts ...Option) (func(context.Context) error, error) {
	if err := ConfigureEnvironment(ctx, opts...); err != nil {
		return nil, err
	}

	logger.ConfigureLogging(ctx, app)

	cfg, err := telemetry.LoadConfigFromEnv(ctx, string(stage.Detect(ctx)))
	if err != nil {
		return nil, fmt.Errorf("loading telemetry config: %w", err)
	}

	if err := telemetry.Initialize(ctx, cfg); err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	if provider := telemetry.LoggerProvider(); provider != nil {
		logger.ConfigureLogging(ctx, app, logger.WithLoggerProvider(provider))
	}

	shutdown.BeforeShutdown(func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryFlushTimeout)
		defer cancel()

		if err := telemetry.Shutdown(flushCtx); err != nil {
			logger.Get(ctx).Error("Error shutting down telemetry", "error", err)
		}
	})

	return telemetry.Shutdown, nil
}

// splitEnvFileList splits on semicolons and drops blank entries.
func splitEnvFileList(in string) ([]string, error) {
	var out []string

	for _, s := range strings.Split(in, ";") {
		s = strings.TrimSpace(s)

		if len(s) == 0 {
			continue
		}

		out = append(out, s)
	}

	return out, nil
}

func getOptions(opts []Option) *options {
	cfg := &options{}

	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	return cfg
}
