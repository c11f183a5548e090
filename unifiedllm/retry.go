package unifiedllm

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds how often, and how patiently, Retry repeats a call.
type RetryPolicy struct {
	// MaxRetries counts calls after the first.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// Jitter scales each delay by a random factor in [0.5, 1.5).
	Jitter bool

	// Retryable decides which errors are retried. Nil means IsRetryable.
	Retryable func(err error) bool
	// OnRetry runs before each retry with its 1-based number.
	OnRetry func(err error, retry int, delay time.Duration)
}

// DefaultRetryPolicy returns the transport retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   time.Minute,
		Multiplier: 2,
		Jitter:     true,
	}
}

// Delay returns the pause before retry n, counting from 0.
func (p RetryPolicy) Delay(n int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := float64(p.BaseDelay) * math.Pow(mult, float64(n))
	if p.MaxDelay > 0 {
		d = math.Min(d, float64(p.MaxDelay))
	}
	if p.Jitter {
		d *= 0.5 + rand.Float64()
	}
	return time.Duration(d)
}

// wait returns the pause before retry n after err, and false when err asks
// for a longer pause than the policy allows.
func (p RetryPolicy) wait(n int, err error) (time.Duration, bool) {
	rl, ok := err.(*RateLimitError)
	if !ok || rl.RetryAfter == nil {
		return p.Delay(n), true
	}
	after := time.Duration(*rl.RetryAfter * float64(time.Second))
	if p.MaxDelay > 0 && after > p.MaxDelay {
		return 0, false
	}
	return after, true
}

// Retry calls fn until it succeeds, returns an error the policy does not
// retry, or the retries are spent. The last error is returned unchanged.
// Cancellation between calls yields an *AbortError. fn must start from
// scratch on every call.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	retryable := policy.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	for n := 0; ; n++ {
		result, err := fn(ctx)
		if err == nil || n >= policy.MaxRetries || !retryable(err) {
			return result, err
		}

		delay, ok := policy.wait(n, err)
		if !ok {
			return result, err
		}
		if policy.OnRetry != nil {
			policy.OnRetry(err, n+1, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			var zero T
			return zero, &AbortError{SDKError{Message: "request cancelled during retry", Cause: err}}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
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
