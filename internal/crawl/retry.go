package crawl

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"
)

// RetryPolicy decides whether a failed page fetch should be retried and how
// long to wait before the next attempt.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// ExponentialRetryPolicy implements RetryPolicy with jittered backoff. It is
// used by the configurable strategy for unstable targets.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewExponentialRetryPolicy builds a policy with the given attempt budget;
// attempts <= 0 falls back to 3.
func NewExponentialRetryPolicy(attempts int, baseDelay time.Duration) *ExponentialRetryPolicy {
	if attempts <= 0 {
		attempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}
	return &ExponentialRetryPolicy{
		maxAttempts: attempts,
		baseDelay:   baseDelay,
		maxDelay:    5 * time.Second,
	}
}

// ShouldRetry reports whether the error is retryable. Context cancellation,
// client errors (not found, forbidden), and exhausted budgets are not.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch Classify(err) {
	case CategoryNotFound, CategoryForbidden, CategoryContentMissing:
		return false
	}
	return true
}

// Backoff returns the jittered wait duration before the next attempt.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := p.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func (p *ExponentialRetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// NoRetryPolicy never retries; the basic strategy uses it.
type NoRetryPolicy struct{}

// ShouldRetry always reports false.
func (NoRetryPolicy) ShouldRetry(error, int) bool { return false }

// Backoff always returns zero.
func (NoRetryPolicy) Backoff(int) time.Duration { return 0 }
