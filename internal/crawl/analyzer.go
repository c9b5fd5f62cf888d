package crawl

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Unstable-environment URL patterns. Targets matching any of these get retry
// support because pre-production hosts drop connections far more often.
var unstableHostPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^beta\.`),
	regexp.MustCompile(`^staging\.`),
	regexp.MustCompile(`^dev\.`),
	regexp.MustCompile(`^test\.`),
	regexp.MustCompile(`^localhost$`),
}

// Analyzer probes a target site and produces an AnalysisRecord describing its
// scale and required capabilities. One network read, no other side effects.
type Analyzer struct {
	fetcher   Fetcher
	extractor LinkExtractor
	cfg       Config
	logger    *zap.Logger
}

// NewAnalyzer constructs an Analyzer.
func NewAnalyzer(fetcher Fetcher, extractor LinkExtractor, cfg Config, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		fetcher:   fetcher,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
	}
}

// Analyze runs the navigation probe against url and derives the record. A
// probe that cannot complete (network failure, non-HTML response) fails with
// a ProbeError; the caller must not attempt a crawl after that.
func (a *Analyzer) Analyze(ctx context.Context, url string) (AnalysisRecord, []string, error) {
	resp, err := a.fetcher.Fetch(ctx, FetchRequest{
		URL:     url,
		Timeout: a.cfg.RequestTimeout,
	})
	if err != nil {
		return AnalysisRecord{}, nil, &ProbeError{URL: url, Err: err}
	}
	if ct := resp.ContentType; ct != "" && !strings.Contains(strings.ToLower(ct), "html") {
		return AnalysisRecord{}, nil, &ProbeError{URL: url, Err: &PageError{
			URL:  url,
			Code: CodeContentMissing,
			Err:  errNonHTML(ct),
		}}
	}

	links, err := a.extractor.Links(resp.Body, url, a.cfg.NavigationSelector)
	if err != nil {
		return AnalysisRecord{}, nil, &ProbeError{URL: url, Err: err}
	}

	record := AnalysisRecord{
		EstimatedPages:      len(links),
		Complexity:          complexityFor(len(links)),
		RequiresRetry:       isUnstableEnvironment(url),
		RequiresProxy:       a.cfg.ProxyEnabled || a.cfg.ProxyURL != "",
		RequiresFormatting:  a.cfg.FormatTOC || a.cfg.FormatMetadata,
		RequiresPerformance: len(links) > 100 || a.cfg.Concurrency > 5,
	}
	a.logger.Debug("site analyzed",
		zap.String("url", url),
		zap.Int("estimated_pages", record.EstimatedPages),
		zap.String("complexity", string(record.Complexity)),
	)
	return record, links, nil
}

func complexityFor(estimatedPages int) Complexity {
	switch {
	case estimatedPages <= 10:
		return ComplexitySimple
	case estimatedPages <= 50:
		return ComplexityModerate
	default:
		return ComplexityComplex
	}
}

// isUnstableEnvironment reports whether the URL points at a pre-production or
// local host, or uses a non-default port in the authority.
func isUnstableEnvironment(rawURL string) bool {
	u, err := parseURL(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, pattern := range unstableHostPatterns {
		if pattern.MatchString(host) {
			return true
		}
	}
	if port := u.Port(); port != "" {
		return !isDefaultPort(u.Scheme, port)
	}
	return false
}

func isDefaultPort(scheme, port string) bool {
	switch scheme {
	case "http":
		return port == "80"
	case "https":
		return port == "443"
	default:
		return false
	}
}

type nonHTMLError struct{ contentType string }

func (e *nonHTMLError) Error() string {
	return "content not found: non-HTML response " + e.contentType
}

func errNonHTML(ct string) error { return &nonHTMLError{contentType: ct} }
