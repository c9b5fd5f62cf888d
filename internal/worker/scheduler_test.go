package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docscribe/docscribe/internal/cache"
	"github.com/docscribe/docscribe/internal/crawl"
	"github.com/docscribe/docscribe/internal/metrics"
	"github.com/docscribe/docscribe/internal/progress"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	failing map[string]error
	inUse   atomic.Int64
	maxUse  atomic.Int64
	delay   time.Duration
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: make(map[string]int), failing: make(map[string]error)}
}

func (f *fakeFetcher) Fetch(_ context.Context, request crawl.FetchRequest) (crawl.FetchResponse, error) {
	cur := f.inUse.Add(1)
	for {
		prev := f.maxUse.Load()
		if cur <= prev || f.maxUse.CompareAndSwap(prev, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.inUse.Add(-1)

	f.mu.Lock()
	f.calls[request.URL]++
	err := f.failing[request.URL]
	f.mu.Unlock()
	if err != nil {
		return crawl.FetchResponse{}, err
	}
	return crawl.FetchResponse{
		URL:         request.URL,
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte("<html><body><main>content for " + request.URL + "</main></body></html>"),
	}, nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type fakeConverter struct{}

func (fakeConverter) Convert(_ []byte, pageURL string, _ crawl.ConvertOptions) (crawl.Document, error) {
	return crawl.Document{Title: "Title " + pageURL, Text: "text for " + pageURL}, nil
}

type collectingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *collectingEmitter) Emit(evt progress.Event) {
	e.mu.Lock()
	e.events = append(e.events, evt)
	e.mu.Unlock()
}

func (e *collectingEmitter) countStage(stage progress.Stage) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, evt := range e.events {
		if evt.Stage == stage {
			n++
		}
	}
	return n
}

func schedulerConfig() crawl.Config {
	return crawl.Config{
		UserAgent:          "test",
		RequestTimeout:     time.Second,
		Concurrency:        3,
		ChunkSize:          10,
		BatchSize:          25,
		NavigationSelector: "nav",
		ContentSelector:    "main",
	}
}

func makeTasks(n int) []crawl.PageTask {
	tasks := make([]crawl.PageTask, n)
	for i := range tasks {
		tasks[i] = crawl.PageTask{
			URL:      fmt.Sprintf("https://docs.example.com/page-%02d", i),
			Priority: 1,
			State:    crawl.TaskPending,
		}
	}
	return tasks
}

func newTestScheduler(fetcher crawl.Fetcher, emitter progress.Emitter, plan Plan, cfg crawl.Config, store *cache.Store, collector *metrics.Collector) *Scheduler {
	return NewScheduler(
		fetcher, fakeConverter{}, store, collector, emitter, nil,
		plan, cfg, [16]byte{1}, zap.NewNop(),
	)
}

func TestRunPartitionsIntoOrderedChunks(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	emitter := &collectingEmitter{}
	plan := Plan{Concurrency: 3, ChunkSize: 10, BatchSize: 100, Retry: crawl.NoRetryPolicy{}}
	s := newTestScheduler(fetcher, emitter, plan, schedulerConfig(), nil, metrics.NewCollector())

	tasks := makeTasks(12)
	results := s.Run(context.Background(), tasks)

	require.Len(t, results, 12)
	// 12 tasks at chunk size 10: exactly two chunks.
	require.Equal(t, 2, emitter.countStage(progress.StageChunkStart))
	require.Equal(t, 2, emitter.countStage(progress.StageChunkDone))
	// Delivery order matches task order.
	for i, result := range results {
		require.Equal(t, tasks[i].URL, result.URL)
		require.Equal(t, crawl.PageSuccess, result.Status)
	}
}

func TestRunDeduplicatesBeforeFetch(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	plan := Plan{Concurrency: 4, ChunkSize: 10, BatchSize: 100, Retry: crawl.NoRetryPolicy{}}
	s := newTestScheduler(fetcher, &collectingEmitter{}, plan, schedulerConfig(), nil, metrics.NewCollector())

	url := "https://docs.example.com/guide"
	tasks := []crawl.PageTask{{URL: url}, {URL: url}, {URL: url}}
	results := s.Run(context.Background(), tasks)

	require.Equal(t, 1, fetcher.callCount(url), "duplicates must not reach the network")
	statuses := map[crawl.PageStatus]int{}
	for _, r := range results {
		statuses[r.Status]++
	}
	require.Equal(t, 1, statuses[crawl.PageSuccess])
	require.Equal(t, 2, statuses[crawl.PageDuplicate])
}

func TestRunIsolatesPageFailures(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	failed := "https://docs.example.com/page-03"
	fetcher.failing[failed] = crawl.NewPageError(failed, crawl.CodeServerError, errors.New("boom"))

	collector := metrics.NewCollector()
	plan := Plan{Concurrency: 3, ChunkSize: 10, BatchSize: 100, Retry: crawl.NoRetryPolicy{}}
	s := newTestScheduler(fetcher, &collectingEmitter{}, plan, schedulerConfig(), nil, collector)

	results := s.Run(context.Background(), makeTasks(8))

	require.Len(t, results, 8)
	for _, result := range results {
		if result.URL == failed {
			require.Equal(t, crawl.PageFailed, result.Status)
			require.Error(t, result.Err)
		} else {
			require.Equal(t, crawl.PageSuccess, result.Status)
		}
	}
	m := collector.Finalize()
	require.Equal(t, 7, m.SuccessfulPages)
	require.Equal(t, 1, m.FailedPages)
	require.Equal(t, 1, m.ErrorCategories[crawl.CategoryServerError])
}

func TestRunRespectsConcurrencyBound(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.delay = 10 * time.Millisecond
	plan := Plan{Concurrency: 2, ChunkSize: 20, BatchSize: 100, Retry: crawl.NoRetryPolicy{}}
	s := newTestScheduler(fetcher, &collectingEmitter{}, plan, schedulerConfig(), nil, nil)

	s.Run(context.Background(), makeTasks(10))
	require.LessOrEqual(t, fetcher.maxUse.Load(), int64(2))
}

func TestRunFlushesAtBatchSize(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	emitter := &collectingEmitter{}
	plan := Plan{Concurrency: 3, ChunkSize: 5, BatchSize: 5, Retry: crawl.NoRetryPolicy{}}
	s := newTestScheduler(fetcher, emitter, plan, schedulerConfig(), nil, nil)

	results := s.Run(context.Background(), makeTasks(12))
	require.Len(t, results, 12)
	// 12 results at batch size 5: two full flushes plus the final partial.
	require.Equal(t, 3, emitter.countStage(progress.StageBufferFlush))
}

func TestRunUsesCache(t *testing.T) {
	t.Parallel()

	store := cache.New(100, time.Hour)
	fetcher := newFakeFetcher()
	plan := Plan{Concurrency: 1, ChunkSize: 10, BatchSize: 100, Retry: crawl.NoRetryPolicy{}}

	url := "https://docs.example.com/cached"
	first := newTestScheduler(fetcher, &collectingEmitter{}, plan, schedulerConfig(), store, nil)
	results := first.Run(context.Background(), []crawl.PageTask{{URL: url}})
	require.Equal(t, crawl.PageSuccess, results[0].Status)
	require.False(t, results[0].FromCache)

	// A second scheduler (fresh dedup set) hits the cache, not the network.
	second := newTestScheduler(fetcher, &collectingEmitter{}, plan, schedulerConfig(), store, nil)
	results = second.Run(context.Background(), []crawl.PageTask{{URL: url}})
	require.Equal(t, crawl.PageSuccess, results[0].Status)
	require.True(t, results[0].FromCache)
	require.Equal(t, "Title "+url, results[0].Title)
	require.Equal(t, 1, fetcher.callCount(url))
}

func TestRunStopsOnCancellation(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.delay = 5 * time.Millisecond
	emitter := &collectingEmitter{}
	plan := Plan{Concurrency: 1, ChunkSize: 2, BatchSize: 100, Retry: crawl.NoRetryPolicy{}}
	s := newTestScheduler(fetcher, emitter, plan, schedulerConfig(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()

	results := s.Run(ctx, makeTasks(40))
	require.Less(t, len(results), 40, "cancellation must stop new chunks")
}

func TestRunRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	url := "https://docs.example.com/flaky"
	fetcher := &flakyFetcher{failures: 2}
	plan := Plan{
		Concurrency: 1, ChunkSize: 10, BatchSize: 100,
		Retry: crawl.NewExponentialRetryPolicy(3, time.Millisecond),
	}
	s := newTestScheduler(fetcher, &collectingEmitter{}, plan, schedulerConfig(), nil, nil)

	results := s.Run(context.Background(), []crawl.PageTask{{URL: url}})
	require.Equal(t, crawl.PageSuccess, results[0].Status)
	require.Equal(t, int32(3), fetcher.attempts.Load())
}

type flakyFetcher struct {
	failures int
	attempts atomic.Int32
}

func (f *flakyFetcher) Fetch(_ context.Context, request crawl.FetchRequest) (crawl.FetchResponse, error) {
	n := f.attempts.Add(1)
	if int(n) <= f.failures {
		return crawl.FetchResponse{}, crawl.NewPageError(request.URL, crawl.CodeServerError, errors.New("transient"))
	}
	return crawl.FetchResponse{URL: request.URL, StatusCode: 200, Body: []byte("<main>x</main>")}, nil
}

func TestPartition(t *testing.T) {
	t.Parallel()

	require.Nil(t, partition(nil, 10))
	require.Len(t, partition(makeTasks(10), 10), 1)
	require.Len(t, partition(makeTasks(11), 10), 2)
	chunks := partition(makeTasks(25), 10)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[2], 5)
}
