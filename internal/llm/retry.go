package llm

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dailysync/standup-bot/pkg/convograph/observability"
)

// RetryConfig bounds retries of transient generation failures.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff growth.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the backoff after each attempt.
	BackoffFactor float64

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64
}

// DefaultRetry is the standard retry configuration.
var DefaultRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// withRetry invokes fn until it succeeds, returns a permanent error, the
// context is cancelled, or the attempt budget runs out. The call is treated
// as idempotent: no side effects beyond the returned text.
//
// Returns the response, the number of attempts made, and the final error
// (wrapped as *Error with the attempt count).
func withRetry(ctx context.Context, cfg RetryConfig, logger *slog.Logger, fn func(context.Context) (*Response, error)) (*Response, int, error) {
	backoff := cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt - 1, classified(err, attempt-1)
		}

		resp, err := fn(ctx)
		if err == nil {
			return resp, attempt, nil
		}
		lastErr = err

		if _, transient := Classify(err); !transient {
			return nil, attempt, classified(err, attempt)
		}

		if attempt < cfg.MaxAttempts {
			sleep := jittered(backoff, cfg.Jitter)
			observability.LogGenerationRetry(logger, attempt, sleep, err)

			select {
			case <-ctx.Done():
				return nil, attempt, classified(ctx.Err(), attempt)
			case <-time.After(sleep):
			}

			backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
			if backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		}
	}

	return nil, cfg.MaxAttempts, classified(lastErr, cfg.MaxAttempts)
}

// jittered applies +/- jitter to a backoff duration.
func jittered(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return base
	}
	amount := float64(base) * jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(base) + amount)
}
