package vtex

import (
	"context"
	"math"
	"math/rand"
	"strconv"
	"time"
)

// RetryPolicy holds the transport retry knobs
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy matches the storefront defaults: 3 retries, 2s base
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     60 * time.Second,
	}
}

// CalculateBackoff returns the exponential backoff delay for an attempt,
// with 0-25% jitter to avoid thundering herds.
func CalculateBackoff(attempt int, policy RetryPolicy) time.Duration {
	delay := float64(policy.InitialBackoff) * math.Pow(2.0, float64(attempt))
	capped := math.Min(delay, float64(policy.MaxBackoff))
	jitter := rand.Float64() * 0.25 * capped
	return time.Duration(capped + jitter)
}

// CalculateRateLimitBackoff returns the extended delay used after HTTP 429.
// A server-provided Retry-After header wins; otherwise a 3x multiplier is
// used instead of the standard 2x.
func CalculateRateLimitBackoff(attempt int, policy RetryPolicy, retryAfterHeader string) time.Duration {
	if retryAfterHeader != "" {
		if seconds, err := strconv.Atoi(retryAfterHeader); err == nil && seconds > 0 {
			jitter := time.Duration(rand.Float64() * float64(time.Second))
			return time.Duration(seconds)*time.Second + jitter
		}
	}

	delay := float64(policy.InitialBackoff) * math.Pow(3.0, float64(attempt))
	capped := math.Min(delay, float64(policy.MaxBackoff))
	jitter := rand.Float64() * 0.25 * capped
	return time.Duration(capped + jitter)
}

// sleepCtx sleeps for d unless the context ends first
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
