package metrics

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docscribe/docscribe/internal/crawl"
)

func TestRecordCounters(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.Record(crawl.PageResult{URL: "a", Status: crawl.PageSuccess, Bytes: 100, Duration: time.Second})
	c.Record(crawl.PageResult{URL: "b", Status: crawl.PageFailed, Err: crawl.NewPageError("b", crawl.CodeTimeout, errors.New("slow"))})
	c.Record(crawl.PageResult{URL: "a", Status: crawl.PageDuplicate})

	m := c.Finalize()
	require.Equal(t, 3, m.TotalPages, "duplicates count toward the total")
	require.Equal(t, 1, m.SuccessfulPages)
	require.Equal(t, 1, m.FailedPages)
	require.Equal(t, int64(100), m.TotalBytes)
	require.Equal(t, 1, m.ErrorCategories[crawl.CategoryTimeout])
}

func TestTopListsKeepTenEntries(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	for i := 1; i <= 25; i++ {
		c.Record(crawl.PageResult{
			URL:      fmt.Sprintf("https://docs.example.com/p%d", i),
			Status:   crawl.PageSuccess,
			Bytes:    int64(i * 10),
			Duration: time.Duration(i) * time.Millisecond,
		})
	}

	m := c.Finalize()
	require.Len(t, m.SlowestPages, 10)
	require.Len(t, m.LargestPages, 10)
	require.Equal(t, "https://docs.example.com/p25", m.SlowestPages[0].URL)
	require.Equal(t, int64(250), m.LargestPages[0].Bytes)
	// Descending order throughout.
	for i := 1; i < len(m.SlowestPages); i++ {
		require.GreaterOrEqual(t, m.SlowestPages[i-1].Duration, m.SlowestPages[i].Duration)
	}
}

func TestErrorCategoryDistribution(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	fail := func(code crawl.ErrorCode) {
		c.Record(crawl.PageResult{
			URL:    "u",
			Status: crawl.PageFailed,
			Err:    crawl.NewPageError("u", code, errors.New("x")),
		})
	}
	fail(crawl.CodeTimeout)
	fail(crawl.CodeTimeout)
	fail(crawl.CodeNotFound)
	c.Record(crawl.PageResult{URL: "u", Status: crawl.PageFailed, Err: errors.New("weird")})

	m := c.Finalize()
	require.Equal(t, 2, m.ErrorCategories[crawl.CategoryTimeout])
	require.Equal(t, 1, m.ErrorCategories[crawl.CategoryNotFound])
	require.Equal(t, 1, m.ErrorCategories[crawl.CategoryOther])
}

func TestMemorySamplesBounded(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	for i := 1; i <= 150; i++ {
		c.RecordMemorySample(uint64(i))
	}

	m := c.Finalize()
	require.Len(t, m.MemorySamples, 100, "ring keeps the most recent 100 samples")
	require.Equal(t, uint64(51), m.MemorySamples[0])
	require.Equal(t, uint64(150), m.MemorySamples[99])
	require.Equal(t, uint64(150), m.PeakMemoryBytes)
}

func TestPeakSurvivesRingEviction(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.RecordMemorySample(999)
	for range 120 {
		c.RecordMemorySample(10)
	}

	m := c.Finalize()
	require.Equal(t, uint64(999), m.PeakMemoryBytes, "peak is tracked outside the ring")
}

func TestFinalizeDerivedValues(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.Record(crawl.PageResult{URL: "a", Status: crawl.PageSuccess, Duration: 100 * time.Millisecond})
	c.Record(crawl.PageResult{URL: "b", Status: crawl.PageSuccess, Duration: 300 * time.Millisecond})

	m := c.Finalize()
	require.Greater(t, m.Throughput, 0.0)
	require.Equal(t, 200*time.Millisecond, m.AverageProcessingTime)
	require.Greater(t, m.Elapsed, time.Duration(0))
}

func TestConcurrentRecording(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := range 50 {
				c.Record(crawl.PageResult{
					URL:      fmt.Sprintf("https://docs.example.com/%d-%d", i, j),
					Status:   crawl.PageSuccess,
					Bytes:    1,
					Duration: time.Millisecond,
				})
			}
		}(i)
	}
	wg.Wait()

	m := c.Finalize()
	require.Equal(t, 1000, m.TotalPages)
	require.Equal(t, int64(1000), m.TotalBytes)
}
