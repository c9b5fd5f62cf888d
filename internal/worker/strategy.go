package worker

import (
	"net/http"

	"github.com/docscribe/docscribe/internal/crawl"
	"github.com/docscribe/docscribe/internal/ratelimit"
)

// Plan is the execution tuning derived from the selected strategy. Every
// strategy runs through the same scheduler; only the plan differs.
type Plan struct {
	Strategy    crawl.Strategy
	Concurrency int
	ChunkSize   int
	BatchSize   int

	Headers http.Header
	Retry   crawl.RetryPolicy
	Limiter *ratelimit.Limiter

	TOC      bool
	Metadata bool
}

// BuildPlan maps a strategy from the closed set to its execution plan. An
// unknown strategy is an invariant violation and fails the job.
func BuildPlan(strategy crawl.Strategy, cfg crawl.Config) (Plan, error) {
	plan := Plan{
		Strategy:    strategy,
		Concurrency: cfg.Concurrency,
		ChunkSize:   cfg.ChunkSize,
		BatchSize:   cfg.BatchSize,
		Retry:       crawl.NoRetryPolicy{},
	}

	switch strategy {
	case crawl.StrategyBasic:
		// Defaults only: sequential-ish pacing, no retry, no custom headers.

	case crawl.StrategyConfigurable:
		plan.Headers = customHeaders(cfg)
		plan.Retry = crawl.NewExponentialRetryPolicy(cfg.RetryAttempts, cfg.RetryBaseDelay)
		plan.Limiter = ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.RateLimitPerDomain,
			DefaultBurst: cfg.Concurrency,
		})

	case crawl.StrategyPerformance:
		plan.Concurrency = cfg.Concurrency * 2
		plan.ChunkSize = cfg.ChunkSize * 2
		plan.Limiter = ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.RateLimitPerDomain,
			DefaultBurst: plan.Concurrency,
		})

	case crawl.StrategyFormat:
		plan.TOC = cfg.FormatTOC
		plan.Metadata = cfg.FormatMetadata
		// Formatting jobs still honor any custom headers the operator set.
		plan.Headers = customHeaders(cfg)

	default:
		return Plan{}, crawl.ErrUnknownStrategy
	}

	if plan.Concurrency <= 0 {
		plan.Concurrency = 1
	}
	if plan.ChunkSize <= 0 {
		plan.ChunkSize = 10
	}
	if plan.BatchSize <= 0 {
		plan.BatchSize = 25
	}
	return plan, nil
}

func customHeaders(cfg crawl.Config) http.Header {
	if len(cfg.CustomHeaders) == 0 {
		return nil
	}
	headers := make(http.Header, len(cfg.CustomHeaders))
	for key, value := range cfg.CustomHeaders {
		headers.Set(key, value)
	}
	return headers
}
