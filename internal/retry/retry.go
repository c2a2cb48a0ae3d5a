// Package retry runs operations with a fixed number of attempts and linear
// backoff between them.
package retry

import (
	"context"
	"log/slog"
	"time"
)

// Policy describes how an operation is retried.
//
// Every failure is retried the same way: there is no jitter and no
// classification of fatal errors. Timeout, when set, bounds each attempt.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	Timeout   time.Duration
	Log       *slog.Logger
}

// Default returns the policy used for store operations: 3 attempts, 1s base delay.
func Default(log *slog.Logger) Policy {
	return Policy{Attempts: 3, BaseDelay: time.Second, Log: log}
}

// WithTimeout returns a copy of p with a per-attempt timeout.
func (p Policy) WithTimeout(d time.Duration) Policy {
	p.Timeout = d
	return p
}

// Do invokes op until it succeeds or the attempts are exhausted. Attempt n
// failing waits BaseDelay*n before the next one. The last error is returned.
func (p Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	_, err := Value(ctx, p, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		zero T
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		var v T
		v, err = runAttempt(ctx, p.Timeout, op)
		if err == nil {
			return v, nil
		}

		if p.Log != nil {
			p.Log.Warn("attempt failed",
				"op", name,
				"attempt", attempt,
				"attempts", attempts,
				"error", err,
			)
		}

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(p.BaseDelay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, err
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(ctx)
}
