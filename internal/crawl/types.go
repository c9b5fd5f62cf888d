// Package crawl defines the core types, contracts, and decision logic for the
// adaptive crawl engine: site analysis, strategy selection, and URL
// prioritization. Execution lives in the worker package.
package crawl

import "time"

// Complexity is a coarse estimate of how involved a crawl will be.
type Complexity string

// Complexity buckets derived from the estimated page count.
const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Strategy identifies one of the crawl execution modes. The declaration order
// is the deterministic tie-break used by the selector.
type Strategy string

// The closed set of strategies, in tie-break order.
const (
	StrategyBasic        Strategy = "basic"
	StrategyConfigurable Strategy = "configurable"
	StrategyPerformance  Strategy = "performance"
	StrategyFormat       Strategy = "format"
)

// Strategies lists the closed strategy set in declaration order.
var Strategies = []Strategy{StrategyBasic, StrategyConfigurable, StrategyPerformance, StrategyFormat}

// AnalysisRecord describes the scale and required capabilities of a target
// site. It is created once per job by the Analyzer, immutable afterwards, and
// retained on the job result for reporting.
type AnalysisRecord struct {
	EstimatedPages      int        `json:"estimated_pages"`
	Complexity          Complexity `json:"complexity"`
	RequiresRetry       bool       `json:"requires_retry"`
	RequiresProxy       bool       `json:"requires_proxy"`
	RequiresFormatting  bool       `json:"requires_formatting"`
	RequiresPerformance bool       `json:"requires_performance"`
	RecommendedStrategy Strategy   `json:"recommended_strategy"`
	Confidence          float64    `json:"confidence"`
}

// TaskState tracks the transient lifecycle of a PageTask.
type TaskState string

// Task states. Tasks are ephemeral and not persisted past job completion.
const (
	TaskPending  TaskState = "pending"
	TaskInFlight TaskState = "in-flight"
	TaskDone     TaskState = "done"
	TaskFailed   TaskState = "failed"
)

// PageTask is one prioritized unit of crawl work.
type PageTask struct {
	URL      string
	Priority float64
	State    TaskState
}

// PageStatus classifies the outcome of one page.
type PageStatus string

// Page outcomes. A duplicate URL is reported without any network I/O.
const (
	PageSuccess   PageStatus = "success"
	PageFailed    PageStatus = "failed"
	PageDuplicate PageStatus = "duplicate"
)

// PageResult is the streamed output of the scheduler for a single URL.
type PageResult struct {
	URL       string
	Status    PageStatus
	Title     string
	Content   string
	Bytes     int64
	Duration  time.Duration
	FromCache bool
	Err       error
}

// PageTiming records how long one page took, used for the slowest-pages list.
type PageTiming struct {
	URL      string        `json:"url"`
	Duration time.Duration `json:"duration"`
}

// PageSize records how large one page was, used for the largest-pages list.
type PageSize struct {
	URL   string `json:"url"`
	Bytes int64  `json:"bytes"`
}

// Metrics is the finalized per-job measurement snapshot.
type Metrics struct {
	TotalPages            int                   `json:"total_pages"`
	SuccessfulPages       int                   `json:"successful_pages"`
	FailedPages           int                   `json:"failed_pages"`
	TotalBytes            int64                 `json:"total_bytes"`
	SlowestPages          []PageTiming          `json:"slowest_pages"`
	LargestPages          []PageSize            `json:"largest_pages"`
	ErrorCategories       map[ErrorCategory]int `json:"error_categories"`
	MemorySamples         []uint64              `json:"memory_samples"`
	PeakMemoryBytes       uint64                `json:"peak_memory_bytes"`
	Throughput            float64               `json:"throughput_pages_per_second"`
	AverageProcessingTime time.Duration         `json:"average_processing_time"`
	Elapsed               time.Duration         `json:"elapsed"`
}

// Decision is the selector's output: the chosen strategy, a confidence score
// in [0,1], and a human-readable reasoning trace explaining the choice.
type Decision struct {
	Strategy   Strategy
	Confidence float64
	Scores     map[Strategy]int
	Reasoning  []string
}

// Result is the final outcome of one crawl job.
type Result struct {
	JobID        string
	BaseURL      string
	Success      bool
	Strategy     Strategy
	Confidence   float64
	Reasoning    []string
	Analysis     AnalysisRecord
	Pages        []PageResult
	Errors       []error
	Metrics      Metrics
	ArtifactPath string
}
