package profiling

import (
	"github.com/AlexKent3141/lurien/domain/metrics"
)

// accumulate walks the node trees in post-order so that every node's count
// includes all of its descendants, and builds the matching output tree.
// Children keep their insertion order. A zero total yields zero proportions.
func accumulate(roots []*node, total uint64) []*metrics.ScopeOutput {
	type frame struct {
		n      *node
		parent *metrics.ScopeOutput
		out    *metrics.ScopeOutput
	}

	var scopes []*metrics.ScopeOutput
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{n: roots[i]})
	}

	for len(stack) > 0 {
		top := len(stack) - 1
		f := stack[top]

		if f.out == nil {
			out := &metrics.ScopeOutput{Name: f.n.name}
			stack[top].out = out
			if f.parent == nil {
				scopes = append(scopes, out)
			} else {
				f.parent.Children = append(f.parent.Children, out)
			}
			for i := len(f.n.children) - 1; i >= 0; i-- {
				stack = append(stack, frame{n: f.n.children[i], parent: out})
			}
			continue
		}

		stack = stack[:top]
		for _, child := range f.n.children {
			f.n.samples += child.samples
		}
		f.out.Samples = f.n.samples
		f.out.CPUProportion = proportion(f.n.samples, total)
	}

	return scopes
}

func proportion(samples, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(samples) / float64(total)
}
