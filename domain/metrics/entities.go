package metrics

import (
	"strings"
	"time"
)

// --- Profiler output ---

// ScopeOutput is one node of a finished thread's call tree. Samples already
// include the samples of every descendant, so a parent's CPUProportion is
// never smaller than the sum of its children's.
type ScopeOutput struct {
	Name          string         `json:"name"`
	Samples       uint64         `json:"samples"`
	CPUProportion float64        `json:"cpu_proportion"`
	Children      []*ScopeOutput `json:"children,omitempty"`
}

// ThreadOutput is the rooted proportion tree of one profiled thread.
type ThreadOutput struct {
	ThreadID     uint64         `json:"thread_id"`
	Label        string         `json:"label,omitempty"`
	TotalSamples uint64         `json:"total_samples"`
	FinishedAt   time.Time      `json:"finished_at"`
	Scopes       []*ScopeOutput `json:"scopes"`
}

// Walk visits every scope in depth-first pre-order together with its depth
// and the names of its ancestors (outermost first). The path slice is
// reused between calls and must be copied if retained.
func (t *ThreadOutput) Walk(fn func(scope *ScopeOutput, depth int, path []string)) {
	type frame struct {
		scope *ScopeOutput
		depth int
	}

	stack := make([]frame, 0, len(t.Scopes))
	for i := len(t.Scopes) - 1; i >= 0; i-- {
		stack = append(stack, frame{t.Scopes[i], 0})
	}

	var path []string
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		path = append(path[:f.depth], f.scope.Name)
		fn(f.scope, f.depth, path[:f.depth])

		for i := len(f.scope.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.scope.Children[i], f.depth + 1})
		}
	}
}

// --- Derived events ---

// HotspotEvent records a scope whose share of its thread's samples crossed
// the configured threshold.
type HotspotEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	ThreadID      uint64    `json:"thread_id"`
	Label         string    `json:"label,omitempty"`
	Path          string    `json:"path"`
	CPUProportion float64   `json:"cpu_proportion"`
	Samples       uint64    `json:"samples"`
}

// --- Profiler statistics ---

// ProfilerStats is a read-only view of the sampler's bookkeeping.
type ProfilerStats struct {
	State          string    `json:"state"`
	Registered     int       `json:"registered"`
	ThreadsCreated uint64    `json:"threads_created"`
	ThreadsEmitted uint64    `json:"threads_emitted"`
	Passes         uint64    `json:"passes"`
	Pruned         uint64    `json:"pruned"`
	NumGoroutine   int       `json:"num_goroutine"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// JoinPath renders a call path as slash-separated scope names, outermost
// first.
func JoinPath(ancestors []string, name string) string {
	if len(ancestors) == 0 {
		return name
	}
	return strings.Join(ancestors, "/") + "/" + name
}
