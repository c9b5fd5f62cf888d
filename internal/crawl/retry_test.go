package crawl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3, 10*time.Millisecond)

	require.True(t, p.ShouldRetry(errors.New("connection refused"), 0))
	require.True(t, p.ShouldRetry(errors.New("connection refused"), 2))
	require.False(t, p.ShouldRetry(errors.New("connection refused"), 3), "budget exhausted")
	require.False(t, p.ShouldRetry(nil, 0))
}

func TestExponentialRetryPolicySkipsPermanentFailures(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3, 10*time.Millisecond)

	require.False(t, p.ShouldRetry(context.Canceled, 0))
	require.False(t, p.ShouldRetry(context.DeadlineExceeded, 0))
	require.False(t, p.ShouldRetry(NewPageError("u", CodeNotFound, errors.New("404")), 0))
	require.False(t, p.ShouldRetry(NewPageError("u", CodeForbidden, errors.New("403")), 0))
	require.False(t, p.ShouldRetry(NewPageError("u", CodeContentMissing, errors.New("empty")), 0))
	require.True(t, p.ShouldRetry(NewPageError("u", CodeServerError, errors.New("500")), 0))
	require.True(t, p.ShouldRetry(NewPageError("u", CodeTimeout, errors.New("slow")), 0))
}

func TestExponentialRetryPolicyBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(10, 100*time.Millisecond)

	for attempt := range 10 {
		backoff := p.Backoff(attempt)
		require.GreaterOrEqual(t, backoff, time.Duration(0))
		require.LessOrEqual(t, backoff, 5*time.Second)
	}

	// The deterministic half of the delay doubles each attempt until the cap.
	require.GreaterOrEqual(t, p.Backoff(4), 100*time.Millisecond*8)
}

func TestNewExponentialRetryPolicyDefaults(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(0, 0)
	require.Equal(t, 3, p.maxAttempts)
	require.Equal(t, 250*time.Millisecond, p.baseDelay)
}

func TestNoRetryPolicy(t *testing.T) {
	t.Parallel()

	p := NoRetryPolicy{}
	require.False(t, p.ShouldRetry(errors.New("any"), 0))
	require.Equal(t, time.Duration(0), p.Backoff(5))
}
