package coarsening

import "github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"

// Hierarchy is the stack of levels owned by one partition call.
// Levels[0] contracts Input, Levels[i] contracts Levels[i-1].Coarse.
type Hierarchy struct {
	Input  *hypergraph.Hypergraph
	Levels []*Level
}

// Depth returns the number of contraction levels.
func (h *Hierarchy) Depth() int { return len(h.Levels) }

// Coarsest returns the smallest hypergraph of the hierarchy, the input if
// nothing was contracted.
func (h *Hierarchy) Coarsest() *hypergraph.Hypergraph {
	if len(h.Levels) == 0 {
		return h.Input
	}
	return h.Levels[len(h.Levels)-1].Coarse
}

// At returns the hypergraph of the given depth: 0 is the input, Depth()
// the coarsest.
func (h *Hierarchy) At(depth int) *hypergraph.Hypergraph {
	if depth == 0 {
		return h.Input
	}
	return h.Levels[depth-1].Coarse
}

// RestrictToCoarsest maps a labelling of the input vertices down the
// whole hierarchy.
func (h *Hierarchy) RestrictToCoarsest(labels []int) []int {
	out := labels
	for _, l := range h.Levels {
		out = l.Restrict(out)
	}
	if len(h.Levels) == 0 {
		out = append([]int(nil), labels...)
	}
	return out
}

// ProjectToInput copies a partition of the coarsest hypergraph onto the
// input vertices.
func (h *Hierarchy) ProjectToInput(coarsest []int) []int {
	out := coarsest
	for i := len(h.Levels) - 1; i >= 0; i-- {
		out = h.Levels[i].Project(out)
	}
	if len(h.Levels) == 0 {
		out = append([]int(nil), coarsest...)
	}
	return out
}
