// Package progress defines the event structures emitted by a crawl job and
// the hub that fans them out to sinks. The emitter is scoped to one job run;
// there is no process-wide event bus.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages, covering the full crawl lifecycle.
const (
	StageAnalysisStart Stage = "ANALYSIS_START"
	StageAnalysisDone  Stage = "ANALYSIS_DONE"
	StageAnalysisError Stage = "ANALYSIS_ERROR"

	StageCrawlStart Stage = "CRAWL_START"
	StageCrawlDone  Stage = "CRAWL_DONE"
	StageCrawlError Stage = "CRAWL_ERROR"

	StageURLsDiscovered Stage = "URLS_DISCOVERED"
	StageChunkStart     Stage = "CHUNK_START"
	StageChunkDone      Stage = "CHUNK_DONE"
	StageMemoryWarning  Stage = "MEMORY_WARNING"
	StageBufferFlush    Stage = "BUFFER_FLUSH"
	StagePageDone       Stage = "PAGE_DONE"
	StagePageError      Stage = "PAGE_ERROR"

	StageCacheCleared      Stage = "CACHE_CLEARED"
	StageCachePersisted    Stage = "CACHE_PERSISTED"
	StageCachePersistError Stage = "CACHE_PERSIST_ERROR"
)

var knownStages = map[Stage]struct{}{
	StageAnalysisStart: {}, StageAnalysisDone: {}, StageAnalysisError: {},
	StageCrawlStart: {}, StageCrawlDone: {}, StageCrawlError: {},
	StageURLsDiscovered: {}, StageChunkStart: {}, StageChunkDone: {},
	StageMemoryWarning: {}, StageBufferFlush: {}, StagePageDone: {},
	StagePageError: {}, StageCacheCleared: {}, StageCachePersisted: {},
	StageCachePersistError: {},
}

// Event captures a single milestone of crawl progress.
type Event struct {
	// JobID uniquely identifies a job run using the 16-byte UUID form.
	JobID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// URL is the page or site the event refers to, when applicable.
	URL string
	// Count carries stage-specific cardinality: URLs discovered, chunk
	// index, or results flushed.
	Count int64
	// Bytes carries the response size for page completions.
	Bytes int64
	// Dur captures latency for pages and whole-job completions.
	Dur time.Duration
	// Note lets emitters attach low-volume context (error text, warnings).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == [16]byte{} {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if _, ok := knownStages[e.Stage]; !ok {
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	switch e.Stage {
	case StagePageDone, StagePageError:
		if e.URL == "" {
			return errors.New("page events require a url")
		}
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// JobUUID converts the binary job ID to uuid.UUID for sinks.
func (e Event) JobUUID() uuid.UUID {
	return uuid.UUID(e.JobID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
