package profiling

import (
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/AlexKent3141/lurien/domain/metrics"
)

// node is one distinct call path seen on a thread. Before accumulation
// samples only counts the samples taken while this exact path was active.
type node struct {
	name     string
	samples  uint64
	children []*node
}

// threadState is the sampling state of one profiled thread. It is mutated
// by its owning goroutine (update) and by the sampler (sample), and is
// finalised exactly once (finish).
type threadState struct {
	mu sync.Mutex

	id    uint64
	label string

	// pathID is the XOR of the hashes of every active scope name. It is 0
	// exactly when current is nil.
	pathID  uint64
	current *node
	// nodes never holds an entry for path id 0.
	nodes map[uint64]*node
	root  []*node
	total uint64

	finished bool
}

func newThreadState(id uint64, label string) *threadState {
	return &threadState{
		id:    id,
		label: label,
		nodes: make(map[uint64]*node),
	}
}

func hashName(name string) uint64 {
	return xxh3.HashString(name)
}

// update toggles name in the current call path. Entering and leaving a scope
// are the same operation: XOR is its own inverse, so leaving restores the
// previous path id. A scope re-entered under its own name therefore lands on
// its parent's path instead of a deeper one.
func (s *threadState) update(name string) {
	h := hashName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return
	}

	s.pathID ^= h
	if s.pathID == 0 {
		s.current = nil
		return
	}

	if n, ok := s.nodes[s.pathID]; ok {
		s.current = n
		return
	}

	n := &node{name: name}
	parentID := s.pathID ^ h
	if parent, ok := s.nodes[parentID]; ok {
		parent.children = append(parent.children, n)
	} else {
		// parentID is 0, or the markers were not nested properly.
		s.root = append(s.root, n)
	}
	s.nodes[s.pathID] = n
	s.current = n
}

// sample records one sampler visit. It reports false once the state has
// been finished so that the registry can drop it.
func (s *threadState) sample() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return false
	}
	if s.current != nil {
		s.current.samples++
	}
	s.total++
	return true
}

// finish freezes the state and converts it into a proportion tree. Only the
// first call returns ok.
func (s *threadState) finish() (output *metrics.ThreadOutput, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return nil, false
	}
	s.finished = true

	output = &metrics.ThreadOutput{
		ThreadID:     s.id,
		Label:        s.label,
		TotalSamples: s.total,
		FinishedAt:   time.Now(),
		Scopes:       accumulate(s.root, s.total),
	}

	s.current = nil
	s.nodes = nil
	s.root = nil
	return output, true
}
