package worker

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docscribe/docscribe/internal/cache"
	"github.com/docscribe/docscribe/internal/crawl"
	"github.com/docscribe/docscribe/internal/metrics"
	"github.com/docscribe/docscribe/internal/progress"
)

// IDSource mints job identifiers in UUID form.
type IDSource interface {
	NewRawID() (uuid.UUID, error)
}

// Orchestrator runs the full pipeline for one crawl job: analyze the target,
// select a strategy, prioritize the discovered URLs, stream the crawl, and
// persist the assembled artifact.
type Orchestrator struct {
	cfg       crawl.Config
	fetcher   crawl.Fetcher
	extractor crawl.LinkExtractor
	converter crawl.Converter
	store     *cache.Store
	artifacts crawl.Sink
	ids       IDSource
	emitter   progress.Emitter
	logger    *zap.Logger
}

// NewOrchestrator wires the pipeline collaborators.
func NewOrchestrator(
	cfg crawl.Config,
	fetcher crawl.Fetcher,
	extractor crawl.LinkExtractor,
	converter crawl.Converter,
	store *cache.Store,
	artifacts crawl.Sink,
	ids IDSource,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Orchestrator {
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		converter: converter,
		store:     store,
		artifacts: artifacts,
		ids:       ids,
		emitter:   emitter,
		logger:    logger,
	}
}

// Run executes one crawl job against baseURL. Analysis failures and artifact
// write failures are fatal; individual page failures are recorded and the job
// continues.
func (o *Orchestrator) Run(ctx context.Context, baseURL string) (crawl.Result, error) {
	started := time.Now()

	normalized, err := crawl.NormalizeURL(baseURL)
	if err != nil {
		return crawl.Result{BaseURL: baseURL}, fmt.Errorf("normalize base url: %w", err)
	}

	rawID, err := o.ids.NewRawID()
	if err != nil {
		return crawl.Result{BaseURL: normalized}, fmt.Errorf("mint job id: %w", err)
	}
	jobID := rawID.String()
	jobBytes := progress.UUIDToBytes(rawID)
	logger := o.logger.With(zap.String("job_id", jobID), zap.String("base_url", normalized))

	result := crawl.Result{JobID: jobID, BaseURL: normalized}

	o.restoreCache(logger)

	o.emit(jobBytes, progress.Event{Stage: progress.StageAnalysisStart, URL: normalized})
	analyzer := crawl.NewAnalyzer(o.fetcher, o.extractor, o.cfg, logger)
	record, links, err := analyzer.Analyze(ctx, normalized)
	if err != nil {
		o.emit(jobBytes, progress.Event{
			Stage: progress.StageAnalysisError,
			URL:   normalized,
			Note:  err.Error(),
		})
		result.Errors = append(result.Errors, err)
		logger.Error("site analysis failed", zap.Error(err))
		return result, err
	}

	decision := crawl.NewSelector(o.cfg).Select(record)
	record.RecommendedStrategy = decision.Strategy
	record.Confidence = decision.Confidence
	result.Analysis = record
	result.Strategy = decision.Strategy
	result.Confidence = decision.Confidence
	result.Reasoning = decision.Reasoning

	o.emit(jobBytes, progress.Event{
		Stage: progress.StageAnalysisDone,
		URL:   normalized,
		Count: int64(record.EstimatedPages),
		Note:  string(decision.Strategy),
	})
	logger.Info("strategy selected",
		zap.String("strategy", string(decision.Strategy)),
		zap.Float64("confidence", decision.Confidence),
		zap.Strings("reasoning", decision.Reasoning),
	)

	plan, err := BuildPlan(decision.Strategy, o.cfg)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result, err
	}

	tasks := crawl.NewPrioritizer().Prioritize(withBase(normalized, links))
	o.emit(jobBytes, progress.Event{
		Stage: progress.StageURLsDiscovered,
		URL:   normalized,
		Count: int64(len(tasks)),
	})

	collector := metrics.NewCollector()
	o.emit(jobBytes, progress.Event{Stage: progress.StageCrawlStart, URL: normalized})

	scheduler := NewScheduler(
		o.fetcher,
		o.converter,
		o.store,
		collector,
		o.emitter,
		NewMemorySampler(o.cfg.MemoryBudgetBytes, o.cfg.BackpressureThreshold, o.cfg.ReclaimThreshold),
		plan,
		o.cfg,
		jobBytes,
		logger,
	)
	result.Pages = scheduler.Run(ctx, tasks)
	for _, page := range result.Pages {
		if page.Err != nil {
			result.Errors = append(result.Errors, page.Err)
		}
	}
	result.Metrics = collector.Finalize()

	artifact := Assemble(normalized, jobID, plan, result.Pages, time.Now())
	path, err := o.artifacts.Write(ctx, o.artifactName(normalized), artifact)
	if err != nil {
		writeErr := fmt.Errorf("write artifact: %w", err)
		result.Errors = append(result.Errors, writeErr)
		o.emit(jobBytes, progress.Event{
			Stage: progress.StageCrawlError,
			URL:   normalized,
			Dur:   time.Since(started),
			Note:  writeErr.Error(),
		})
		logger.Error("artifact write failed", zap.Error(err))
		return result, writeErr
	}
	result.ArtifactPath = path

	o.persistCache(jobBytes, logger)

	result.Success = true
	o.emit(jobBytes, progress.Event{
		Stage: progress.StageCrawlDone,
		URL:   normalized,
		Count: int64(result.Metrics.SuccessfulPages),
		Bytes: result.Metrics.TotalBytes,
		Dur:   time.Since(started),
	})
	logger.Info("crawl complete",
		zap.Int("pages", result.Metrics.TotalPages),
		zap.Int("failed", result.Metrics.FailedPages),
		zap.String("artifact", path),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// restoreCache loads the persisted cache when enabled. Failures are logged
// and ignored: the crawl proceeds with a cold cache.
func (o *Orchestrator) restoreCache(logger *zap.Logger) {
	if o.store == nil || !o.cfg.CachePersist {
		return
	}
	if err := o.store.Restore(o.cfg.CachePath); err != nil {
		logger.Warn("cache restore failed", zap.Error(err))
	}
}

// persistCache saves the cache when enabled. Failures are reported as events
// but never fail the job.
func (o *Orchestrator) persistCache(jobID [16]byte, logger *zap.Logger) {
	if o.store == nil || !o.cfg.CachePersist {
		return
	}
	if err := o.store.Persist(o.cfg.CachePath); err != nil {
		o.emit(jobID, progress.Event{
			Stage: progress.StageCachePersistError,
			Note:  err.Error(),
		})
		logger.Warn("cache persist failed", zap.Error(err))
		return
	}
	o.emit(jobID, progress.Event{
		Stage: progress.StageCachePersisted,
		Count: int64(o.store.Len()),
	})
}

func (o *Orchestrator) artifactName(baseURL string) string {
	if o.cfg.OutputFile != "" {
		return o.cfg.OutputFile
	}
	if u, err := url.Parse(baseURL); err == nil && u.Hostname() != "" {
		return u.Hostname() + ".md"
	}
	return "docs.md"
}

func (o *Orchestrator) emit(jobID [16]byte, evt progress.Event) {
	evt.JobID = jobID
	evt.TS = time.Now().UTC()
	o.emitter.Emit(evt)
}

// withBase ensures the landing page itself is crawled alongside the
// discovered navigation links.
func withBase(baseURL string, links []string) []string {
	for _, link := range links {
		if link == baseURL {
			return links
		}
	}
	out := make([]string, 0, len(links)+1)
	out = append(out, baseURL)
	out = append(out, links...)
	return out
}
