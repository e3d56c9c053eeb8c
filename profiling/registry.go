package profiling

import (
	"sync"
	"weak"
)

// registry holds a weak reference to every thread state ever created, so the
// sampler can find live threads without keeping finished ones alive.
type registry struct {
	mu      sync.Mutex
	entries []weak.Pointer[threadState]
}

func (r *registry) register(s *threadState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, weak.Make(s))
}

// visit calls fn on every live state in insertion order while holding the
// registry lock. Entries whose state has been collected, or for which fn
// returns false, are removed. It returns the number of removed entries.
func (r *registry) visit(fn func(*threadState) bool) (pruned int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	for _, entry := range r.entries {
		s := entry.Value()
		if s == nil || !fn(s) {
			pruned++
			continue
		}
		kept = append(kept, entry)
	}
	clear(r.entries[len(kept):])
	r.entries = kept
	return pruned
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
