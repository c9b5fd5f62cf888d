// Package collyfetcher implements the page Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/docscribe/docscribe/internal/crawl"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	ProxyURL  string
}

// Fetcher implements crawl.Fetcher using the Colly collector. One base
// collector is built up front and cloned per fetch so transport connection
// pooling is shared across pages.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher. A non-empty ProxyURL routes every request through
// that proxy; otherwise the environment proxy settings apply.
func New(cfg Config) (*Fetcher, error) {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true

	transport, err := newHTTPTransport(cfg.ProxyURL)
	if err != nil {
		return nil, err
	}
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}, nil
}

// Fetch executes a single HTTP GET. Failures carry a structured error code:
// timeouts, connection errors, and non-2xx statuses each map to their own
// code so downstream classification never has to parse messages.
func (f *Fetcher) Fetch(ctx context.Context, request crawl.FetchRequest) (crawl.FetchResponse, error) {
	var (
		result   crawl.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(request, start, &result, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(request.URL)
	}()

	select {
	case <-ctx.Done():
		return crawl.FetchResponse{}, crawl.NewPageError(request.URL, crawl.CodeTimeout,
			fmt.Errorf("fetch canceled: %w", ctx.Err()))
	case err := <-done:
		if err == nil {
			err = fetchErr
		}
		if err != nil {
			// Colly surfaces HTTP error statuses through OnError; the
			// recorded status code is more precise than the error text.
			if result.StatusCode >= 400 {
				return crawl.FetchResponse{}, crawl.NewPageError(request.URL, codeForStatus(result.StatusCode),
					fmt.Errorf("unexpected status %d: %w", result.StatusCode, err))
			}
			return crawl.FetchResponse{}, classifyVisitError(request.URL, err)
		}
	}

	if result.StatusCode >= 400 {
		return crawl.FetchResponse{}, crawl.NewPageError(request.URL, codeForStatus(result.StatusCode),
			fmt.Errorf("unexpected status %d", result.StatusCode))
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	request crawl.FetchRequest,
	start time.Time,
	result *crawl.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := request.Timeout
	if timeout == 0 {
		timeout = f.cfg.Timeout
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range request.Headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		*result = crawl.FetchResponse{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        append([]byte(nil), r.Body...),
			Duration:    time.Since(start),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			result.URL = request.URL
			result.StatusCode = r.StatusCode
		}
		*fetchErr = err
	})

	return collector
}

// classifyVisitError maps transport failures to structured codes. Colly
// surfaces HTTP error statuses through OnError with the response attached, so
// status errors are handled by the caller via result.StatusCode.
func classifyVisitError(pageURL string, err error) error {
	var pe *crawl.PageError
	if errors.As(err, &pe) {
		return err
	}
	code := crawl.CodeNetwork
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		code = crawl.CodeTimeout
	case errors.Is(err, context.DeadlineExceeded):
		code = crawl.CodeTimeout
	case strings.Contains(err.Error(), "Client.Timeout"):
		code = crawl.CodeTimeout
	case strings.Contains(err.Error(), "Not Found"):
		code = crawl.CodeNotFound
	case strings.Contains(err.Error(), "Forbidden"):
		code = crawl.CodeForbidden
	}
	return crawl.NewPageError(pageURL, code, fmt.Errorf("fetch failed: %w", err))
}

func codeForStatus(status int) crawl.ErrorCode {
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return crawl.CodeNotFound
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		return crawl.CodeForbidden
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return crawl.CodeTimeout
	case status >= 500:
		return crawl.CodeServerError
	default:
		return crawl.CodeUnknown
	}
}

func newHTTPTransport(proxyURL string) (*http.Transport, error) {
	proxy := http.ProxyFromEnvironment
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		proxy = http.ProxyURL(parsed)
	}
	return &http.Transport{
		Proxy: proxy,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}, nil
}
