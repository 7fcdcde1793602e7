// Package retry implements the transfer engine's exponential-backoff-with-
// full-jitter retry policy (spec §4.4 / §7). It is a from-scratch
// re-derivation of internal/http/retry.go's ClassifyError/CalculateBackoff/
// ExecuteWithRetry shape, generalized from a fixed AWS/Azure error-string
// classifier to the engine's typed xfererr taxonomy plus spec's
// retryAllErrors toggle and either-count-or-duration budget.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/rescale/xferengine/internal/constants"
	"github.com/rescale/xferengine/internal/xfererr"
)

// Policy controls retry behavior for a single operation invocation.
type Policy struct {
	// Enabled turns retrying on or off entirely. Default: true.
	Enabled bool

	// RetryAllErrors makes shouldRetry also retry errors outside the
	// retryable categories (e.g. 4xx responses), matching spec's
	// retryAllErrors. Never-retryable categories stay fatal.
	RetryAllErrors bool

	// MaxCount bounds the total number of attempts, the first one
	// included. Zero means "use MaxDuration instead" (elapsed-budget mode).
	MaxCount int

	// MaxDuration bounds the total elapsed time spent retrying when
	// MaxCount == 0. It also caps every backoff delay, whatever MaxCount is.
	MaxDuration time.Duration

	// Interval is the base delay for exponential backoff.
	Interval time.Duration

	// OnRetry is an optional observer invoked before each retry sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns the engine's documented defaults (spec §4.4).
func DefaultPolicy() Policy {
	return Policy{
		Enabled:        true,
		RetryAllErrors: false,
		MaxCount:       constants.DefaultRetryMaxCount,
		MaxDuration:    constants.DefaultRetryMaxDuration,
		Interval:       constants.DefaultRetryInterval,
	}
}

// shouldRetry decides whether err warrants another attempt under p.
func (p Policy) shouldRetry(err error) bool {
	if !p.Enabled {
		return false
	}
	if xfererr.IsNeverRetryable(err) {
		return false
	}
	if xfererr.IsRetryableCategory(err) {
		return true
	}
	return p.RetryAllErrors
}

// Backoff returns the exponential-backoff-with-full-jitter delay for the
// given zero-indexed attempt: random(0, min(maxDelay, interval * 2^attempt)).
func Backoff(attempt int, interval, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := interval << uint(attempt)
	if maxDelay > 0 && base > maxDelay {
		base = maxDelay
	}
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(base)))
}

// Do runs op, retrying per p until it succeeds, a non-retryable error occurs,
// the budget (count or duration) is exhausted, or ctx is cancelled. The last
// error from op is returned as is, or ctx's error on cancellation.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	start := time.Now()
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if !p.shouldRetry(lastErr) {
			return lastErr
		}

		if p.MaxCount > 0 {
			if attempt+1 >= p.MaxCount {
				return lastErr
			}
		} else if p.MaxDuration > 0 {
			if time.Since(start) >= p.MaxDuration {
				return lastErr
			}
		}

		delay := Backoff(attempt, p.Interval, maxDelayFor(p))
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func maxDelayFor(p Policy) time.Duration {
	if p.MaxDuration > 0 {
		return p.MaxDuration
	}
	return constants.DefaultRetryMaxDuration
}
