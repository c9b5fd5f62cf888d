package crawl

import (
	"context"
	"net/http"
	"time"
)

// FetchRequest captures everything needed to fetch a single page.
type FetchRequest struct {
	URL     string
	Headers http.Header
	Timeout time.Duration
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

// Fetcher fetches a URL and returns the body plus metadata. Failures carry a
// structured ErrorCode via PageError.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// LinkExtractor finds navigation links in an HTML document. The returned
// slice is deduplicated, absolute, and in document order.
type LinkExtractor interface {
	Links(html []byte, baseURL, navigationSelector string) ([]string, error)
}

// ConvertOptions controls page-to-text conversion.
type ConvertOptions struct {
	ContentSelector  string
	ExcludeSelectors []string
}

// Document is the normalized text form of one page.
type Document struct {
	Title string
	Text  string
}

// Converter turns raw HTML into a normalized text document. A page whose
// content selector matches nothing fails with CodeContentMissing.
type Converter interface {
	Convert(html []byte, pageURL string, opts ConvertOptions) (Document, error)
}

// Sink persists the final assembled artifact. A write failure is fatal to the
// job.
type Sink interface {
	Write(ctx context.Context, filename string, content []byte) (string, error)
}
