// Package config initializes the application's configuration. It uses the
// Viper library to read settings from a config file and environment
// variables, providing a unified configuration system.
package config

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// InitConfig initializes the configuration using Viper: defaults, search
// paths, and environment overrides. Designed to be called once at startup.
func InitConfig(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/docscribe/")
	viper.AddConfigPath("$HOME/.docscribe")

	viper.SetDefault("crawler.user_agent", "docscribe/1.0 (+https://github.com/docscribe/docscribe)")
	viper.SetDefault("crawler.request_timeout", "10s")
	viper.SetDefault("crawler.retry_attempts", 3)
	viper.SetDefault("crawler.retry_base_delay", "250ms")
	viper.SetDefault("crawler.proxy_enabled", false)
	viper.SetDefault("crawler.proxy_url", "")
	viper.SetDefault("crawler.headers", map[string]string{})
	viper.SetDefault("crawler.concurrency", 4)
	viper.SetDefault("crawler.chunk_size", 10)
	viper.SetDefault("crawler.batch_size", 25)
	viper.SetDefault("crawler.rate_limit_per_domain", 2)

	viper.SetDefault("selectors.navigation", "nav")
	viper.SetDefault("selectors.content", "main")
	viper.SetDefault("selectors.exclude", "")

	viper.SetDefault("output.toc", false)
	viper.SetDefault("output.metadata", false)
	viper.SetDefault("output.dir", "data/docs")
	viper.SetDefault("output.file", "")

	viper.SetDefault("cache.ttl", "1h")
	viper.SetDefault("cache.max_entries", 1000)
	viper.SetDefault("cache.persist", false)
	viper.SetDefault("cache.path", "data/cache/pages.json")

	viper.SetDefault("memory.budget_bytes", 512*1024*1024)
	viper.SetDefault("memory.backpressure_threshold", 0.8)
	viper.SetDefault("memory.reclaim_threshold", 0.9)
	viper.SetDefault("memory.sample_interval", "1s")

	viper.SetDefault("server.addr", ":9090")

	viper.SetEnvPrefix("DOCSCRIBE") // e.g. DOCSCRIBE_CRAWLER_CONCURRENCY=8
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.Debug("config file not found; using defaults and environment variables")
		} else {
			logger.Error("error reading config file", zap.Error(err))
		}
	} else {
		logger.Info("using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}
