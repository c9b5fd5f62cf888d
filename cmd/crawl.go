package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/docscribe/docscribe/internal/api"
	"github.com/docscribe/docscribe/internal/cache"
	"github.com/docscribe/docscribe/internal/clock/system"
	"github.com/docscribe/docscribe/internal/crawl"
	"github.com/docscribe/docscribe/internal/extract"
	collyfetcher "github.com/docscribe/docscribe/internal/fetcher/colly"
	uuidgen "github.com/docscribe/docscribe/internal/id/uuid"
	"github.com/docscribe/docscribe/internal/logging"
	"github.com/docscribe/docscribe/internal/progress"
	"github.com/docscribe/docscribe/internal/progress/sinks"
	"github.com/docscribe/docscribe/internal/sink"
	"github.com/docscribe/docscribe/internal/worker"
)

var serveMetrics bool

// newCrawlCmd creates and configures the 'crawl' subcommand. It wires the
// full pipeline and runs one job against the given URL.
func newCrawlCmd(bootLogger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a documentation site into a Markdown artifact",
		Long: `Analyzes the target site, selects a crawl strategy, fetches the
documentation pages with bounded concurrency, and writes the assembled
Markdown artifact to the output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawlCommand(cmd, args[0], bootLogger)
		},
	}
	cmd.Flags().BoolVar(&serveMetrics, "serve-metrics", false, "serve /healthz and /metrics while the crawl runs")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, baseURL string, bootLogger *zap.Logger) error {
	logger, err := logging.New(development)
	if err != nil {
		logger = bootLogger
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := crawl.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("load crawl config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return fmt.Errorf("init prometheus sink: %w", err)
	}
	hub := progress.NewHub(progress.Config{
		BaseContext: ctx,
		Logger:      logger,
	}, sinks.NewLogSink(logger), promSink)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := hub.Close(closeCtx); cerr != nil {
			logger.Warn("progress hub close failed", zap.Error(cerr))
		}
	}()

	var server *api.Server
	if serveMetrics {
		server = api.NewServer(viper.GetString("server.addr"), registry, logger)
		go func() {
			if serr := server.Start(); serr != nil {
				logger.Error("observability server failed", zap.Error(serr))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := server.Shutdown(shutdownCtx); serr != nil {
				logger.Warn("observability server shutdown failed", zap.Error(serr))
			}
		}()
	}

	orchestrator, err := buildOrchestrator(cfg, hub, logger)
	if err != nil {
		return err
	}

	result, err := orchestrator.Run(ctx, baseURL)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}

	logger.Info("crawl finished",
		zap.String("job_id", result.JobID),
		zap.Bool("success", result.Success),
		zap.String("strategy", string(result.Strategy)),
		zap.String("artifact", result.ArtifactPath),
	)
	return nil
}

func buildOrchestrator(cfg crawl.Config, hub *progress.Hub, logger *zap.Logger) (*worker.Orchestrator, error) {
	proxyURL := ""
	if cfg.ProxyEnabled {
		proxyURL = cfg.ProxyURL
	}
	fetcher, err := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.RequestTimeout,
		ProxyURL:  proxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}

	artifacts, err := sink.NewFileSystemSink(cfg.OutputDir, logger)
	if err != nil {
		return nil, fmt.Errorf("init artifact sink: %w", err)
	}

	extractor := extract.New()
	store := cache.NewWithClock(cfg.CacheMaxEntries, cfg.CacheTTL, system.New())

	return worker.NewOrchestrator(
		cfg,
		fetcher,
		extractor,
		extractor,
		store,
		artifacts,
		uuidgen.NewGenerator(),
		hub,
		logger,
	), nil
}
