// Package retry wraps an operation with bounded retries and a per-attempt
// timeout, per the architecture spec's RetryRunner. It runs any
// func(ctx) error; a caller that needs a result captures it in the closure,
// as collector.Base does for strategy.Collect's []models.TelemetryRecord.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cenkalti/backoff/v4"
)

// Policy configures a Runner.
type Policy struct {
	// Retries is the number of additional attempts after the first.
	Retries int

	// Timeout bounds a single attempt. Zero means no per-attempt deadline.
	Timeout time.Duration

	// InitialBackoff is the delay before the second attempt; subsequent
	// delays grow exponentially. Defaults to 1s, matching the architecture
	// spec's documented initial backoff.
	InitialBackoff time.Duration

	// Retryable decides whether a given error should be retried. Nil means
	// "all errors are retryable", the architecture spec's default policy for
	// this core.
	Retryable func(error) bool
}

func (p Policy) withDefaults() Policy {
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = time.Second
	}
	return p
}

// Runner executes operations under a Policy, applying exponential backoff
// between attempts via cenkalti/backoff and attempt counting/timeout via
// avast/retry-go.
type Runner struct {
	policy Policy
	logger *slog.Logger
}

// New constructs a Runner.
func New(policy Policy, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Runner{policy: policy.withDefaults(), logger: logger}
}

// Do runs fn up to 1+Retries times. Each attempt is wrapped in a context
// carrying the configured per-attempt Timeout (no deadline if Timeout is
// zero). Backoff between attempts follows an exponential schedule seeded by
// InitialBackoff. Returns the last error if every attempt fails.
func (r *Runner) Do(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.policy.InitialBackoff

	attempt := 0
	return retry.Do(
		func() error {
			attempt++
			attemptCtx := ctx
			var cancel context.CancelFunc
			if r.policy.Timeout > 0 {
				attemptCtx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
				defer cancel()
			}
			err := fn(attemptCtx)
			if err != nil {
				r.logger.Debug("retry: attempt failed",
					"label", label,
					"attempt", attempt,
					"error", err.Error(),
				)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(r.policy.Retries+1)),
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			d := bo.NextBackOff()
			if d == backoff.Stop {
				return 0
			}
			return d
		}),
		retry.RetryIf(func(err error) bool {
			if r.policy.Retryable == nil {
				return true
			}
			return r.policy.Retryable(err)
		}),
		retry.LastErrorOnly(true),
	)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
