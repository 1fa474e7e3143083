// Package retry applies a bounded, fixed-delay retry policy to remote calls.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/javi11/metadatarr/internal/config"
	apperrors "github.com/javi11/metadatarr/internal/errors"
)

// Policy is a fixed-delay retry policy.
type Policy struct {
	Attempts uint
	Delay    time.Duration
}

// FromConfig builds a policy from the retry config section.
func FromConfig(cfg config.RetryConfig) Policy {
	return Policy{Attempts: cfg.Attempts, Delay: cfg.Delay}
}

// Do runs fn until it succeeds, returns a non-retryable error, the context is
// cancelled, or the attempts are exhausted. The last error is returned.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}

	return retry.Do(
		fn,
		retry.Attempts(attempts),
		retry.Delay(p.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !apperrors.IsNonRetryable(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			// retry-go also calls OnRetry after the final attempt.
			if n+1 >= attempts {
				return
			}
			slog.WarnContext(ctx, "Remote call failed, retrying",
				"operation", op,
				"attempt", n+1,
				"max_attempts", attempts,
				"error", err)
		}),
		retry.Context(ctx),
	)
}

// DoValue is Do for calls returning a value.
func DoValue[T any](ctx context.Context, p Policy, op string, fn func() (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, op, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
