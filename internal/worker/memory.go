package worker

import (
	"runtime"
)

// MemorySampler watches heap usage against a fixed budget and reports the
// pressure level the scheduler reacts to. The read function is injectable so
// tests can script pressure without allocating.
type MemorySampler struct {
	budget                uint64
	backpressureThreshold float64
	reclaimThreshold      float64
	read                  func() uint64
}

// NewMemorySampler builds a sampler over the given budget in bytes.
func NewMemorySampler(budget uint64, backpressure, reclaim float64) *MemorySampler {
	return &MemorySampler{
		budget:                budget,
		backpressureThreshold: backpressure,
		reclaimThreshold:      reclaim,
		read:                  heapInUse,
	}
}

// Sample returns the current usage in bytes.
func (m *MemorySampler) Sample() uint64 {
	return m.read()
}

// Ratio converts a usage reading to a fraction of the budget.
func (m *MemorySampler) Ratio(usage uint64) float64 {
	if m.budget == 0 {
		return 0
	}
	return float64(usage) / float64(m.budget)
}

// OverBackpressure reports whether the reading crosses the backpressure
// watermark.
func (m *MemorySampler) OverBackpressure(usage uint64) bool {
	return m.Ratio(usage) >= m.backpressureThreshold
}

// OverReclaim reports whether the reading crosses the reclaim watermark.
func (m *MemorySampler) OverReclaim(usage uint64) bool {
	return m.Ratio(usage) >= m.reclaimThreshold
}

// Reclaim asks the runtime to collect garbage now. Called only past the
// reclaim watermark; the scheduler has already flushed its buffers by then.
func (m *MemorySampler) Reclaim() {
	runtime.GC()
}

func heapInUse() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapInuse
}
