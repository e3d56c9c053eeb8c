package inmemory

import (
	"sync"

	"github.com/AlexKent3141/lurien/domain"
	"github.com/AlexKent3141/lurien/domain/metrics"
)

const (
	// Default number of finished threads and hotspot events kept in memory.
	defaultBufferSize = 100
)

// --- Store Implementation ---

var (
	_ domain.Store = (*Store)(nil)
	_ domain.Sink  = (*Store)(nil)
)

// Store is a goroutine-safe in-memory store of recently finished threads.
// It implements domain.Store and can be installed directly as a sink.
type Store struct {
	mu           sync.RWMutex
	threads      *ringBuffer[metrics.ThreadOutput]
	totalThreads uint64
	hotspots     *ringBuffer[metrics.HotspotEvent]
	profiler     metrics.ProfilerStats
}

// NewStore creates a Store keeping the most recent size threads and
// hotspot events. A non-positive size selects the default.
func NewStore(size int) *Store {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Store{
		threads:  newRingBuffer[metrics.ThreadOutput](size),
		hotspots: newRingBuffer[metrics.HotspotEvent](size),
	}
}

// HandleOutput records a finished thread.
func (s *Store) HandleOutput(output *metrics.ThreadOutput) {
	s.AddThread(output)
}

// AddThread records a finished thread, evicting the oldest when full.
func (s *Store) AddThread(output *metrics.ThreadOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads.add(*output)
	s.totalThreads++
}

// RecordHotspot adds a new hotspot event to the ring buffer.
func (s *Store) RecordHotspot(event metrics.HotspotEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hotspots.add(event)
}

// UpdateProfilerStats replaces the last known profiler statistics.
func (s *Store) UpdateProfilerStats(stats metrics.ProfilerStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiler = stats
}

// GetSnapshot returns a read-only copy of the current data. Scope trees are
// shared with the store; they are never modified after being added.
func (s *Store) GetSnapshot() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &domain.Snapshot{
		Threads:      s.threads.getAll(),
		TotalThreads: s.totalThreads,
		Hotspots:     s.hotspots.getAll(),
		Profiler:     s.profiler,
	}
}

// --- Ring Buffer ---

// ringBuffer is a generic, thread-unsafe circular buffer.
// The locking must be handled by the parent (Store).
type ringBuffer[T any] struct {
	buffer []T
	size   int
	start  int
	count  int
}

func newRingBuffer[T any](size int) *ringBuffer[T] {
	return &ringBuffer[T]{
		buffer: make([]T, size),
		size:   size,
	}
}

// add inserts an element into the buffer, overwriting the oldest if full.
func (rb *ringBuffer[T]) add(item T) {
	index := (rb.start + rb.count) % rb.size
	rb.buffer[index] = item
	if rb.count < rb.size {
		rb.count++
	} else {
		rb.start = (rb.start + 1) % rb.size
	}
}

// getAll returns all elements in the buffer, oldest first.
func (rb *ringBuffer[T]) getAll() []T {
	if rb.count == 0 {
		return nil
	}
	items := make([]T, rb.count)
	for i := 0; i < rb.count; i++ {
		items[i] = rb.buffer[(rb.start+i)%rb.size]
	}
	return items
}
