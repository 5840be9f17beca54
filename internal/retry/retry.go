// Package retry wraps unreliable remote calls with classification,
// exponential backoff and a bounded number of attempts.
//
// Attempts for one invocation are strictly sequential. Invocations share no
// state, so any number of goroutines may call Do concurrently with the same
// Policy value.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/HendryAvila/confluence-mcp/internal/apierr"
)

// Defaults used by DefaultPolicy.
const (
	DefaultMaxRetries    = 3
	DefaultInitialDelay  = 1 * time.Second
	DefaultMaxDelay      = 30 * time.Second
	DefaultBackoffFactor = 2.0
)

// Policy configures one retry loop.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt, so an
	// operation runs at most MaxRetries+1 times.
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64

	// RetryOn, when non-empty, replaces the default retry verdict with a
	// membership test on the classified kind.
	RetryOn []apierr.Kind

	// OnRetry is called before each backoff sleep with the failed attempt's
	// error and the 1-indexed retry number.
	OnRetry func(err error, attempt int)

	// Jitter returns the random amount added to each backoff delay.
	// Defaults to a uniform value in [0, 1s).
	Jitter func() time.Duration

	// Sleep suspends the calling goroutine. It must return early with the
	// context's error when ctx is done. Defaults to a timer-based sleep.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger *slog.Logger
}

// DefaultPolicy returns the policy used for Confluence API calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:    DefaultMaxRetries,
		InitialDelay:  DefaultInitialDelay,
		MaxDelay:      DefaultMaxDelay,
		BackoffFactor: DefaultBackoffFactor,
	}
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	switch {
	case p.MaxRetries < 0:
		return fmt.Errorf("retry: max retries must be >= 0, got %d", p.MaxRetries)
	case p.InitialDelay <= 0:
		return fmt.Errorf("retry: initial delay must be positive, got %s", p.InitialDelay)
	case p.MaxDelay < p.InitialDelay:
		return fmt.Errorf("retry: max delay %s is below initial delay %s", p.MaxDelay, p.InitialDelay)
	case p.BackoffFactor <= 1.0:
		return fmt.Errorf("retry: backoff factor must be > 1.0, got %g", p.BackoffFactor)
	}
	return nil
}

// CalculateDelay returns the wait before retrying after the given 0-indexed
// attempt. A positive retryAfter wins over the exponential schedule. The
// result never exceeds MaxDelay.
func (p Policy) CalculateDelay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return min(retryAfter, p.MaxDelay)
	}

	delay := float64(p.InitialDelay)*math.Pow(p.BackoffFactor, float64(attempt)) + float64(p.jitter())
	if math.IsNaN(delay) || delay >= float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

func (p Policy) jitter() time.Duration {
	if p.Jitter != nil {
		return p.Jitter()
	}
	return time.Duration(rand.Float64() * float64(time.Second))
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func (p Policy) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p Policy) shouldRetry(c apierr.Classification) bool {
	if len(p.RetryOn) > 0 {
		return slices.Contains(p.RetryOn, c.Kind)
	}
	return c.Retryable
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoJitter disables the random part of the backoff delay.
func NoJitter() time.Duration { return 0 }

// Do runs fn until it succeeds, fails with a non-retryable error, or runs
// out of attempts. The calling goroutine blocks during backoff.
//
// A non-retryable failure is returned unchanged. Exhaustion returns
// *apierr.MaxRetriesExceededError wrapping the last error. Cancellation of
// ctx stops the loop and returns an error wrapping ctx.Err().
func Do[T any](ctx context.Context, op string, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var last error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, aborted(op, attempt, err)
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, aborted(op, attempt+1, ctxErr)
		}
		last = err

		c := apierr.Classify(err)
		if !p.shouldRetry(c) {
			return zero, err
		}
		if attempt >= p.MaxRetries {
			break
		}

		delay := p.CalculateDelay(attempt, c.RetryAfter)
		p.logger().Warn("retrying after failure",
			"operation", op,
			"attempt", attempt+1,
			"max_retries", p.MaxRetries,
			"delay", delay,
			"kind", c.Kind.String(),
			"error", err,
		)
		if p.OnRetry != nil {
			p.OnRetry(err, attempt+1)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return zero, aborted(op, attempt+1, err)
		}
	}

	p.logger().Error("max retries exceeded",
		"operation", op,
		"max_retries", p.MaxRetries,
		"error", last,
	)
	return zero, &apierr.MaxRetriesExceededError{Operation: op, Retries: p.MaxRetries, Last: last}
}

// Run is Do for operations that produce no value.
func Run(ctx context.Context, op string, p Policy, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, op, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Result is the outcome delivered by DoAsync.
type Result[T any] struct {
	Value T
	Err   error
}

// DoAsync runs the same loop as Do on its own goroutine so the caller can
// keep working while backoff sleeps are in progress. The returned channel
// receives exactly one Result and is then closed.
func DoAsync[T any](ctx context.Context, op string, p Policy, fn func(ctx context.Context) (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		v, err := Do(ctx, op, p, fn)
		ch <- Result[T]{Value: v, Err: err}
	}()
	return ch
}

func aborted(op string, attempts int, err error) error {
	return fmt.Errorf("%s aborted after %d attempt(s): %w", op, attempts, err)
}
