package crawl

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyPrefersStructuredCode(t *testing.T) {
	t.Parallel()

	// The message mentions "timeout" but the code says forbidden; the code
	// must win over text matching.
	err := NewPageError("https://example.com", CodeForbidden, errors.New("request timeout after retry"))
	require.Equal(t, CategoryForbidden, Classify(err))
}

func TestClassifyWrappedPageError(t *testing.T) {
	t.Parallel()

	inner := NewPageError("https://example.com", CodeServerError, errors.New("boom"))
	wrapped := fmt.Errorf("chunk 3: %w", inner)
	require.Equal(t, CategoryServerError, Classify(wrapped))
}

func TestClassifyMessageFallback(t *testing.T) {
	t.Parallel()

	cases := []struct {
		msg  string
		want ErrorCategory
	}{
		{"context deadline exceeded", CategoryTimeout},
		{"page not found", CategoryNotFound},
		{"GET returned 404", CategoryNotFound},
		{"403 Forbidden", CategoryForbidden},
		{"internal server error", CategoryServerError},
		{"dial tcp: connection refused", CategoryNetwork},
		{"lookup docs.example.com: no such host", CategoryNetwork},
		{"content not found under selector", CategoryContentMissing},
		{"mysterious failure", CategoryOther},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Classify(errors.New(tc.msg)), "message %q", tc.msg)
	}
}

func TestClassifyOrderIsDeterministic(t *testing.T) {
	t.Parallel()

	// "timeout" appears before "not found" in the fallback table, so a message
	// matching both always classifies as timeout.
	require.Equal(t, CategoryTimeout, Classify(errors.New("timeout while checking not found page")))
}

func TestClassifyNil(t *testing.T) {
	t.Parallel()

	require.Equal(t, CategoryOther, Classify(nil))
}

func TestErrorWrapping(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying")

	probe := &ProbeError{URL: "https://example.com", Err: cause}
	require.ErrorIs(t, probe, cause)
	require.Contains(t, probe.Error(), "probe https://example.com")

	page := NewPageError("https://example.com/a", CodeNetwork, cause)
	require.ErrorIs(t, page, cause)
	require.Contains(t, page.Error(), "[network]")

	cacheErr := &CacheError{Op: "persist", Err: cause}
	require.ErrorIs(t, cacheErr, cause)
}

func TestNewPageErrorDefaultsToUnknown(t *testing.T) {
	t.Parallel()

	err := NewPageError("https://example.com", "", errors.New("nope"))
	require.Equal(t, CodeUnknown, err.Code)
}
