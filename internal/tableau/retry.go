package tableau

import (
	"context"
	"time"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = time.Second
)

// retryConfig drives the uniform retry wrapper around every list call.
// Every error is retried the same way regardless of type; after the last
// attempt the final error is returned unchanged.
type retryConfig struct {
	attempts     int
	initialDelay time.Duration
	sleep        func(context.Context, time.Duration) error
}

func defaultRetry() retryConfig {
	return retryConfig{
		attempts:     defaultRetryAttempts,
		initialDelay: defaultRetryDelay,
		sleep:        sleepWithContext,
	}
}

func (rc retryConfig) normalized() retryConfig {
	if rc.attempts <= 0 {
		rc.attempts = defaultRetryAttempts
	}
	if rc.initialDelay <= 0 {
		rc.initialDelay = defaultRetryDelay
	}
	if rc.sleep == nil {
		rc.sleep = sleepWithContext
	}
	return rc
}

// do runs fn until it succeeds or attempts are exhausted. The delay doubles
// after each failed attempt.
func (rc retryConfig) do(ctx context.Context, fn func() error) error {
	rc = rc.normalized()
	delay := rc.initialDelay

	var lastErr error
	for attempt := 1; attempt <= rc.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == rc.attempts {
			break
		}

		if err := rc.sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}

	return lastErr
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
