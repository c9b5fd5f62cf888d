package crawl

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every configuration knob that influences a crawl run. It is
// an immutable snapshot: values originate from Viper at job start so the
// engine can be configured via files, env vars, or CLI flags, and never
// change mid-crawl.
type Config struct {
	UserAgent      string
	RequestTimeout time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration

	ProxyEnabled bool
	ProxyURL     string

	CustomHeaders map[string]string

	Concurrency int
	ChunkSize   int
	BatchSize   int

	NavigationSelector string
	ContentSelector    string
	ExcludeSelectors   []string

	FormatTOC      bool
	FormatMetadata bool

	OutputDir  string
	OutputFile string

	CacheTTL        time.Duration
	CacheMaxEntries int
	CachePersist    bool
	CachePath       string

	MemoryBudgetBytes     uint64
	BackpressureThreshold float64
	ReclaimThreshold      float64
	SampleInterval        time.Duration

	RateLimitPerDomain float64
}

// Load constructs a Config by reading from Viper.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		UserAgent:             v.GetString("crawler.user_agent"),
		RequestTimeout:        v.GetDuration("crawler.request_timeout"),
		RetryAttempts:         v.GetInt("crawler.retry_attempts"),
		RetryBaseDelay:        v.GetDuration("crawler.retry_base_delay"),
		ProxyEnabled:          v.GetBool("crawler.proxy_enabled"),
		ProxyURL:              v.GetString("crawler.proxy_url"),
		CustomHeaders:         v.GetStringMapString("crawler.headers"),
		Concurrency:           v.GetInt("crawler.concurrency"),
		ChunkSize:             v.GetInt("crawler.chunk_size"),
		BatchSize:             v.GetInt("crawler.batch_size"),
		NavigationSelector:    v.GetString("selectors.navigation"),
		ContentSelector:       v.GetString("selectors.content"),
		ExcludeSelectors:      splitSelectors(v.GetString("selectors.exclude")),
		FormatTOC:             v.GetBool("output.toc"),
		FormatMetadata:        v.GetBool("output.metadata"),
		OutputDir:             v.GetString("output.dir"),
		OutputFile:            v.GetString("output.file"),
		CacheTTL:              v.GetDuration("cache.ttl"),
		CacheMaxEntries:       v.GetInt("cache.max_entries"),
		CachePersist:          v.GetBool("cache.persist"),
		CachePath:             v.GetString("cache.path"),
		MemoryBudgetBytes:     v.GetUint64("memory.budget_bytes"),
		BackpressureThreshold: v.GetFloat64("memory.backpressure_threshold"),
		ReclaimThreshold:      v.GetFloat64("memory.reclaim_threshold"),
		SampleInterval:        v.GetDuration("memory.sample_interval"),
		RateLimitPerDomain:    v.GetFloat64("crawler.rate_limit_per_domain"),
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("crawler.chunk_size must be > 0")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be > 0")
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("crawler.retry_attempts must be >= 0")
	}
	if c.NavigationSelector == "" {
		return fmt.Errorf("selectors.navigation must be set")
	}
	if c.ContentSelector == "" {
		return fmt.Errorf("selectors.content must be set")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output.dir must be set")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache.ttl must be > 0")
	}
	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be > 0")
	}
	if c.CachePersist && c.CachePath == "" {
		return fmt.Errorf("cache.path must be set when cache.persist is enabled")
	}
	if c.MemoryBudgetBytes == 0 {
		return fmt.Errorf("memory.budget_bytes must be > 0")
	}
	if c.BackpressureThreshold <= 0 || c.BackpressureThreshold > 1 {
		return fmt.Errorf("memory.backpressure_threshold must be in (0,1]")
	}
	if c.ReclaimThreshold < c.BackpressureThreshold || c.ReclaimThreshold > 1 {
		return fmt.Errorf("memory.reclaim_threshold must be in [backpressure_threshold,1]")
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("memory.sample_interval must be > 0")
	}
	return nil
}

// NonTrivialSelectors reports whether the configuration customizes selectors
// beyond the defaults, one of the signals for the configurable strategy.
func (c Config) NonTrivialSelectors() bool {
	return len(c.ExcludeSelectors) > 0 || len(c.CustomHeaders) > 0
}

func splitSelectors(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
