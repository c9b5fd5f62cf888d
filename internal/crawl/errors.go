package crawl

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is the structured failure code collaborators attach to errors.
// Classification prefers codes over message text; the substring fallback only
// applies to foreign errors that carry no code.
type ErrorCode string

// Structured error codes returned by collaborators.
const (
	CodeTimeout        ErrorCode = "timeout"
	CodeNotFound       ErrorCode = "not_found"
	CodeForbidden      ErrorCode = "forbidden"
	CodeServerError    ErrorCode = "server_error"
	CodeNetwork        ErrorCode = "network"
	CodeContentMissing ErrorCode = "content_missing"
	CodeUnknown        ErrorCode = "unknown"
)

// ErrorCategory buckets page failures for the metrics distribution.
type ErrorCategory string

// Failure categories tracked per job.
const (
	CategoryTimeout        ErrorCategory = "timeout"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryForbidden      ErrorCategory = "forbidden"
	CategoryServerError    ErrorCategory = "server_error"
	CategoryNetwork        ErrorCategory = "network"
	CategoryContentMissing ErrorCategory = "content_missing"
	CategoryOther          ErrorCategory = "other"
)

// ErrUnknownStrategy indicates the selector produced a value outside the
// closed strategy set. This is an invariant violation, not a runtime
// condition, and is treated as fatal.
var ErrUnknownStrategy = errors.New("unknown crawl strategy")

// ProbeError is fatal to the job: the analyzer could not reach the site or
// parse its navigation. No crawl is attempted after a ProbeError.
type ProbeError struct {
	URL string
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.URL, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// PageError is a recoverable single-page failure. It is recorded in metrics
// and the job error list but never aborts the job.
type PageError struct {
	URL  string
	Code ErrorCode
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %s [%s]: %v", e.URL, e.Code, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// NewPageError wraps err with a structured code for the given URL.
func NewPageError(url string, code ErrorCode, err error) *PageError {
	if code == "" {
		code = CodeUnknown
	}
	return &PageError{URL: url, Code: code, Err: err}
}

// CacheError is a non-fatal cache persistence failure; the crawl proceeds
// without a durable cache.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// Classify maps an error to its category. Structured codes win; for errors
// without a code the message text is checked against ordered substrings. The
// check order is fixed so a message matching multiple patterns classifies
// deterministically.
func Classify(err error) ErrorCategory {
	if err == nil {
		return CategoryOther
	}
	var pageErr *PageError
	if errors.As(err, &pageErr) {
		switch pageErr.Code {
		case CodeTimeout:
			return CategoryTimeout
		case CodeNotFound:
			return CategoryNotFound
		case CodeForbidden:
			return CategoryForbidden
		case CodeServerError:
			return CategoryServerError
		case CodeNetwork:
			return CategoryNetwork
		case CodeContentMissing:
			return CategoryContentMissing
		}
	}
	return classifyMessage(err.Error())
}

// Ordered substring fallback for errors that carry no structured code.
var messageCategories = []struct {
	substr   string
	category ErrorCategory
}{
	{"timeout", CategoryTimeout},
	{"deadline exceeded", CategoryTimeout},
	{"not found", CategoryNotFound},
	{"404", CategoryNotFound},
	{"forbidden", CategoryForbidden},
	{"403", CategoryForbidden},
	{"server error", CategoryServerError},
	{"500", CategoryServerError},
	{"502", CategoryServerError},
	{"503", CategoryServerError},
	{"connection refused", CategoryNetwork},
	{"no such host", CategoryNetwork},
	{"network", CategoryNetwork},
	{"content not found", CategoryContentMissing},
	{"empty content", CategoryContentMissing},
}

func classifyMessage(msg string) ErrorCategory {
	lower := strings.ToLower(msg)
	for _, mc := range messageCategories {
		if strings.Contains(lower, mc.substr) {
			return mc.category
		}
	}
	return CategoryOther
}
