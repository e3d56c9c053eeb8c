package domain

import (
	"github.com/AlexKent3141/lurien/domain/metrics"
)

// Snapshot is a point-in-time, read-only copy of everything the probe has
// collected. Reporters serialise it as-is.
type Snapshot struct {
	Threads      []metrics.ThreadOutput `json:"threads"`
	TotalThreads uint64                 `json:"total_threads"`
	Hotspots     []metrics.HotspotEvent `json:"hotspots"`
	Profiler     metrics.ProfilerStats  `json:"profiler"`
}

// Sink receives the finished output of one profiled thread. It is called at
// most once per thread, from whichever goroutine ends that thread, and has
// no way to report failure back to the profiler.
type Sink interface {
	HandleOutput(output *metrics.ThreadOutput)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(output *metrics.ThreadOutput)

// HandleOutput calls f(output).
func (f SinkFunc) HandleOutput(output *metrics.ThreadOutput) { f(output) }

// StoreReader defines the contract for reading collected data from a store.
type StoreReader interface {
	GetSnapshot() *Snapshot
}

// StoreWriter defines the contract for writing collected data to a store.
type StoreWriter interface {
	AddThread(output *metrics.ThreadOutput)
	RecordHotspot(event metrics.HotspotEvent)
	UpdateProfilerStats(stats metrics.ProfilerStats)
}

// Store is the combined interface for a store.
type Store interface {
	StoreReader
	StoreWriter
}
