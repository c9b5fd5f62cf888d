// Package metrics accumulates per-job crawl measurements: counters, top-N
// timing and size lists, the error-category distribution, and memory samples.
// Process-wide Prometheus metrics are handled separately by the progress
// sinks; this collector is owned by a single job and finalized once.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/docscribe/docscribe/internal/crawl"
)

const (
	topN             = 10
	maxMemorySamples = 100
)

// Collector implements crawl metrics accumulation. Safe for concurrent use by
// in-flight page tasks.
type Collector struct {
	mu sync.Mutex

	totalPages      int
	successfulPages int
	failedPages     int
	totalBytes      int64

	slowest    []crawl.PageTiming
	largest    []crawl.PageSize
	categories map[crawl.ErrorCategory]int

	memorySamples []uint64
	peakMemory    uint64

	started time.Time
}

// NewCollector constructs a Collector; the job's elapsed time counts from
// this call.
func NewCollector() *Collector {
	return &Collector{
		categories: make(map[crawl.ErrorCategory]int),
		started:    time.Now(),
	}
}

// Record folds one page result into the running totals. Duplicates count
// toward totalPages but neither success nor failure.
func (c *Collector) Record(result crawl.PageResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalPages++
	switch result.Status {
	case crawl.PageSuccess:
		c.successfulPages++
		c.totalBytes += result.Bytes
		c.slowest = insertTopTiming(c.slowest, crawl.PageTiming{URL: result.URL, Duration: result.Duration})
		c.largest = insertTopSize(c.largest, crawl.PageSize{URL: result.URL, Bytes: result.Bytes})
	case crawl.PageFailed:
		c.failedPages++
		c.categories[crawl.Classify(result.Err)]++
	}
}

// RecordMemorySample appends one memory reading to the bounded ring and
// tracks the running peak.
func (c *Collector) RecordMemorySample(bytes uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memorySamples = append(c.memorySamples, bytes)
	if len(c.memorySamples) > maxMemorySamples {
		c.memorySamples = c.memorySamples[len(c.memorySamples)-maxMemorySamples:]
	}
	if bytes > c.peakMemory {
		c.peakMemory = bytes
	}
}

// Finalize computes the derived measurements and returns the snapshot.
// Throughput and average processing time are derived here, not accumulated
// incrementally.
func (c *Collector) Finalize() crawl.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.started)
	m := crawl.Metrics{
		TotalPages:      c.totalPages,
		SuccessfulPages: c.successfulPages,
		FailedPages:     c.failedPages,
		TotalBytes:      c.totalBytes,
		SlowestPages:    append([]crawl.PageTiming(nil), c.slowest...),
		LargestPages:    append([]crawl.PageSize(nil), c.largest...),
		ErrorCategories: make(map[crawl.ErrorCategory]int, len(c.categories)),
		MemorySamples:   append([]uint64(nil), c.memorySamples...),
		PeakMemoryBytes: c.peakMemory,
		Elapsed:         elapsed,
	}
	for cat, count := range c.categories {
		m.ErrorCategories[cat] = count
	}
	if seconds := elapsed.Seconds(); seconds > 0 {
		m.Throughput = float64(c.totalPages) / seconds
	}
	if len(c.slowest) > 0 {
		var total time.Duration
		for _, t := range c.slowest {
			total += t.Duration
		}
		m.AverageProcessingTime = total / time.Duration(len(c.slowest))
	}
	return m
}

func insertTopTiming(list []crawl.PageTiming, t crawl.PageTiming) []crawl.PageTiming {
	list = append(list, t)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Duration > list[j].Duration
	})
	if len(list) > topN {
		list = list[:topN]
	}
	return list
}

func insertTopSize(list []crawl.PageSize, s crawl.PageSize) []crawl.PageSize {
	list = append(list, s)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Bytes > list[j].Bytes
	})
	if len(list) > topN {
		list = list[:topN]
	}
	return list
}
