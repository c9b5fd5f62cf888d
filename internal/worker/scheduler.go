// Package worker executes crawl jobs: the streaming scheduler that fetches
// prioritized pages in ordered chunks, the memory sampler that drives
// backpressure, and the orchestrator that runs the full pipeline.
package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/docscribe/docscribe/internal/cache"
	"github.com/docscribe/docscribe/internal/crawl"
	"github.com/docscribe/docscribe/internal/metrics"
	"github.com/docscribe/docscribe/internal/progress"
)

// Scheduler streams prioritized page tasks through bounded-concurrency
// chunks. Results accumulate in a buffer that flushes at the batch size, or
// earlier when memory pressure forces it. Chunks run strictly in order; pages
// within a chunk run concurrently but their results keep task order.
type Scheduler struct {
	fetcher   crawl.Fetcher
	converter crawl.Converter
	store     *cache.Store
	collector *metrics.Collector
	emitter   progress.Emitter
	sampler   *MemorySampler
	logger    *zap.Logger

	plan  Plan
	cfg   crawl.Config
	jobID [16]byte

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewScheduler wires a scheduler for one job run.
func NewScheduler(
	fetcher crawl.Fetcher,
	converter crawl.Converter,
	store *cache.Store,
	collector *metrics.Collector,
	emitter progress.Emitter,
	sampler *MemorySampler,
	plan Plan,
	cfg crawl.Config,
	jobID [16]byte,
	logger *zap.Logger,
) *Scheduler {
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		fetcher:   fetcher,
		converter: converter,
		store:     store,
		collector: collector,
		emitter:   emitter,
		sampler:   sampler,
		logger:    logger,
		plan:      plan,
		cfg:       cfg,
		jobID:     jobID,
		seen:      make(map[string]struct{}),
	}
}

// Run executes all tasks and returns their results in delivery order.
// Cancellation stops new chunks from starting; results already buffered are
// flushed and returned.
func (s *Scheduler) Run(ctx context.Context, tasks []crawl.PageTask) []crawl.PageResult {
	chunks := partition(tasks, s.plan.ChunkSize)
	final := make([]crawl.PageResult, 0, len(tasks))
	buffer := make([]crawl.PageResult, 0, s.plan.BatchSize)

	stopSampling := s.startSampling(ctx)
	defer stopSampling()

	for i, chunk := range chunks {
		if ctx.Err() != nil {
			s.logger.Info("scheduler stopping early",
				zap.Int("chunks_remaining", len(chunks)-i),
				zap.Error(ctx.Err()),
			)
			break
		}
		s.emit(progress.Event{Stage: progress.StageChunkStart, Count: int64(i)})

		for _, result := range s.runChunk(ctx, chunk) {
			if s.collector != nil {
				s.collector.Record(result)
			}
			s.emitPage(result)
			buffer = append(buffer, result)
			if len(buffer) >= s.plan.BatchSize {
				final = s.flush(final, &buffer)
			}
		}
		s.emit(progress.Event{Stage: progress.StageChunkDone, Count: int64(i)})

		s.checkPressure(&final, &buffer)
	}

	if len(buffer) > 0 {
		final = s.flush(final, &buffer)
	}
	return final
}

// startSampling polls memory on the configured interval for the duration of
// the run so long chunks still feed the collector's sample ring. Flushing
// stays on the chunk boundary; only the boundary check touches the buffer.
func (s *Scheduler) startSampling(ctx context.Context) (stop func()) {
	if s.sampler == nil || s.cfg.SampleInterval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.cfg.SampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				usage := s.sampler.Sample()
				if s.collector != nil {
					s.collector.RecordMemorySample(usage)
				}
			}
		}
	}()
	return func() { close(done) }
}

// checkPressure samples memory between chunks. Past the backpressure
// watermark the buffer is force-flushed and the scheduler yields briefly so
// consumers and the collector can catch up; past the reclaim watermark it
// additionally hints a garbage collection.
func (s *Scheduler) checkPressure(final *[]crawl.PageResult, buffer *[]crawl.PageResult) {
	if s.sampler == nil {
		return
	}
	usage := s.sampler.Sample()
	if s.collector != nil {
		s.collector.RecordMemorySample(usage)
	}
	if !s.sampler.OverBackpressure(usage) {
		return
	}
	s.emit(progress.Event{
		Stage: progress.StageMemoryWarning,
		Bytes: int64(usage),
		Note:  "memory pressure: forcing buffer flush",
	})
	if len(*buffer) > 0 {
		*final = s.flush(*final, buffer)
	}
	if s.sampler.OverReclaim(usage) {
		s.sampler.Reclaim()
	}
	time.Sleep(50 * time.Millisecond)
}

func (s *Scheduler) flush(final []crawl.PageResult, buffer *[]crawl.PageResult) []crawl.PageResult {
	s.emit(progress.Event{Stage: progress.StageBufferFlush, Count: int64(len(*buffer))})
	final = append(final, *buffer...)
	*buffer = (*buffer)[:0]
	return final
}

// runChunk fetches one chunk with bounded concurrency. Results come back in
// task order regardless of completion order.
func (s *Scheduler) runChunk(ctx context.Context, chunk []crawl.PageTask) []crawl.PageResult {
	results := make([]crawl.PageResult, len(chunk))
	sem := semaphore.NewWeighted(int64(s.plan.Concurrency))
	var wg sync.WaitGroup

	for i, task := range chunk {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = crawl.PageResult{
				URL:    task.URL,
				Status: crawl.PageFailed,
				Err:    crawl.NewPageError(task.URL, crawl.CodeTimeout, err),
			}
			continue
		}
		wg.Add(1)
		go func(i int, task crawl.PageTask) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = s.processPage(ctx, task)
		}(i, task)
	}
	wg.Wait()
	return results
}

// cachedPage is the cache value format: converted content plus its title.
type cachedPage struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// processPage handles one task end to end: dedup, cache lookup, rate-limited
// fetch with retries, conversion, cache store. Deduplication happens before
// any network I/O.
func (s *Scheduler) processPage(ctx context.Context, task crawl.PageTask) crawl.PageResult {
	start := time.Now()

	s.mu.Lock()
	if _, dup := s.seen[task.URL]; dup {
		s.mu.Unlock()
		return crawl.PageResult{URL: task.URL, Status: crawl.PageDuplicate}
	}
	s.seen[task.URL] = struct{}{}
	s.mu.Unlock()

	if s.store != nil {
		if raw, ok := s.store.Get(task.URL); ok {
			var page cachedPage
			if err := json.Unmarshal([]byte(raw), &page); err == nil {
				return crawl.PageResult{
					URL:       task.URL,
					Status:    crawl.PageSuccess,
					Title:     page.Title,
					Content:   page.Text,
					Bytes:     int64(len(page.Text)),
					Duration:  time.Since(start),
					FromCache: true,
				}
			}
		}
	}

	resp, err := s.fetchWithRetry(ctx, task.URL)
	if err != nil {
		return crawl.PageResult{
			URL:      task.URL,
			Status:   crawl.PageFailed,
			Duration: time.Since(start),
			Err:      err,
		}
	}

	doc, err := s.converter.Convert(resp.Body, task.URL, crawl.ConvertOptions{
		ContentSelector:  s.cfg.ContentSelector,
		ExcludeSelectors: s.cfg.ExcludeSelectors,
	})
	if err != nil {
		return crawl.PageResult{
			URL:      task.URL,
			Status:   crawl.PageFailed,
			Duration: time.Since(start),
			Err:      err,
		}
	}

	if s.store != nil {
		if encoded, err := json.Marshal(cachedPage{Title: doc.Title, Text: doc.Text}); err == nil {
			s.store.Set(task.URL, string(encoded))
		}
	}

	return crawl.PageResult{
		URL:      task.URL,
		Status:   crawl.PageSuccess,
		Title:    doc.Title,
		Content:  doc.Text,
		Bytes:    int64(len(doc.Text)),
		Duration: time.Since(start),
	}
}

func (s *Scheduler) fetchWithRetry(ctx context.Context, url string) (crawl.FetchResponse, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if s.plan.Limiter != nil {
			if err := s.plan.Limiter.Wait(ctx, url); err != nil {
				return crawl.FetchResponse{}, crawl.NewPageError(url, crawl.CodeTimeout, err)
			}
		}
		resp, err := s.fetcher.Fetch(ctx, crawl.FetchRequest{
			URL:     url,
			Headers: s.plan.Headers,
			Timeout: s.cfg.RequestTimeout,
		})
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if s.plan.Retry == nil || !s.plan.Retry.ShouldRetry(err, attempt) {
			return crawl.FetchResponse{}, lastErr
		}
		backoff := s.plan.Retry.Backoff(attempt)
		s.logger.Debug("retrying page",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return crawl.FetchResponse{}, lastErr
		case <-timer.C:
		}
	}
}

func (s *Scheduler) emitPage(result crawl.PageResult) {
	switch result.Status {
	case crawl.PageSuccess:
		evt := progress.Event{
			Stage: progress.StagePageDone,
			URL:   result.URL,
			Bytes: result.Bytes,
			Dur:   result.Duration,
		}
		if result.FromCache {
			evt.Note = "cache hit"
		}
		s.emit(evt)
	case crawl.PageFailed:
		note := ""
		if result.Err != nil {
			note = result.Err.Error()
		}
		s.emit(progress.Event{
			Stage: progress.StagePageError,
			URL:   result.URL,
			Dur:   result.Duration,
			Note:  note,
		})
	case crawl.PageDuplicate:
		s.emit(progress.Event{
			Stage: progress.StagePageDone,
			URL:   result.URL,
			Note:  "duplicate",
		})
	}
}

func (s *Scheduler) emit(evt progress.Event) {
	evt.JobID = s.jobID
	evt.TS = time.Now().UTC()
	s.emitter.Emit(evt)
}

// partition splits tasks into ordered chunks of at most size elements.
func partition(tasks []crawl.PageTask, size int) [][]crawl.PageTask {
	if size <= 0 {
		size = len(tasks)
	}
	if len(tasks) == 0 {
		return nil
	}
	chunks := make([][]crawl.PageTask, 0, (len(tasks)+size-1)/size)
	for start := 0; start < len(tasks); start += size {
		end := start + size
		if end > len(tasks) {
			end = len(tasks)
		}
		chunks = append(chunks, tasks[start:end])
	}
	return chunks
}
