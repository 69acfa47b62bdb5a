// Package refinement improves a k-way partition by local search: k-way
// Fiduccia-Mattheyses with rollback, label propagation and a rebalancer,
// all working on an incrementally maintained State.
package refinement

import (
	"fmt"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/metrics"
)

// State is a partition of one hypergraph together with the data local
// search needs: block weights, the pin count of every (edge, block) pair
// and the connectivity of every edge. The objective is kept incrementally.
type State struct {
	h      *hypergraph.Hypergraph
	k      int
	obj    metrics.Objective
	bounds []int64 // maximum weight of every block

	part         []int
	blockWeights []int64
	pinCounts    []int // pinCounts[e*k+b]
	connectivity []int
	objective    int64
}

// UniformBounds returns k copies of maxBlockWeight.
func UniformBounds(k int, maxBlockWeight int64) []int64 {
	bounds := make([]int64, k)
	for b := range bounds {
		bounds[b] = maxBlockWeight
	}
	return bounds
}

// NewState builds a state from a valid partition with one weight bound
// for every block. part is copied.
func NewState(h *hypergraph.Hypergraph, part []int, k int, obj metrics.Objective, maxBlockWeight int64) (*State, error) {
	return NewStateWithBounds(h, part, obj, UniformBounds(k, maxBlockWeight))
}

// NewStateWithBounds builds a state where block b may weigh at most
// bounds[b]; k is len(bounds).
func NewStateWithBounds(h *hypergraph.Hypergraph, part []int, obj metrics.Objective, bounds []int64) (*State, error) {
	k := len(bounds)
	if err := metrics.ValidatePartition(h, part, k); err != nil {
		return nil, err
	}
	for v, b := range part {
		if f, ok := h.FixedBlock(v); ok && f != b {
			return nil, fmt.Errorf("%w: fixed vertex %d is in block %d, want %d",
				hypergraph.ErrInvalidInput, v, b, f)
		}
	}
	// Every objective and gain stays below this bound.
	if _, err := metrics.ObjectiveBound(h, k); err != nil {
		return nil, err
	}

	s := &State{
		h:            h,
		k:            k,
		obj:          obj,
		bounds:       append([]int64(nil), bounds...),
		part:         append([]int(nil), part...),
		blockWeights: metrics.BlockWeights(h, part, k),
		pinCounts:    make([]int, h.NumEdges()*k),
		connectivity: make([]int, h.NumEdges()),
	}
	for e := 0; e < h.NumEdges(); e++ {
		for _, v := range h.Pins(e) {
			idx := e*k + s.part[v]
			if s.pinCounts[idx] == 0 {
				s.connectivity[e]++
			}
			s.pinCounts[idx]++
		}
		if h.EdgeSize(e) >= 2 {
			s.objective += h.EdgeWeight(e) * obj.Penalty(s.connectivity[e])
		}
	}
	return s, nil
}

// Hypergraph returns the hypergraph the state partitions.
func (s *State) Hypergraph() *hypergraph.Hypergraph { return s.h }

// K returns the number of blocks.
func (s *State) K() int { return s.k }

// ObjectiveKind returns the metric being minimised.
func (s *State) ObjectiveKind() metrics.Objective { return s.obj }

// Bound returns the maximum weight of block b.
func (s *State) Bound(b int) int64 { return s.bounds[b] }

// Bounds returns a copy of all block bounds.
func (s *State) Bounds() []int64 { return append([]int64(nil), s.bounds...) }

// Overloaded reports whether block b exceeds its bound.
func (s *State) Overloaded(b int) bool { return s.blockWeights[b] > s.bounds[b] }

// Block returns the block of v.
func (s *State) Block(v int) int { return s.part[v] }

// Part returns a copy of the partition.
func (s *State) Part() []int { return append([]int(nil), s.part...) }

// BlockWeight returns the weight of block b.
func (s *State) BlockWeight(b int) int64 { return s.blockWeights[b] }

// BlockWeights returns a copy of all block weights.
func (s *State) BlockWeights() []int64 { return append([]int64(nil), s.blockWeights...) }

// PinCount returns the number of pins of e in block b.
func (s *State) PinCount(e, b int) int { return s.pinCounts[e*s.k+b] }

// Connectivity returns the number of blocks e touches.
func (s *State) Connectivity(e int) int { return s.connectivity[e] }

// Objective returns the current objective value.
func (s *State) Objective() int64 { return s.objective }

// Overload returns the total weight above the bounds.
func (s *State) Overload() int64 {
	var over int64
	for b, w := range s.blockWeights {
		if w > s.bounds[b] {
			over += w - s.bounds[b]
		}
	}
	return over
}

// IsBalanced reports whether every block respects its bound.
func (s *State) IsBalanced() bool {
	for b, w := range s.blockWeights {
		if w > s.bounds[b] {
			return false
		}
	}
	return true
}

// Movable reports whether v is free to change block.
func (s *State) Movable(v int) bool { return !s.h.IsFixed(v) }

// Fits reports whether moving v to block to keeps to within its bound.
func (s *State) Fits(v, to int) bool {
	return s.blockWeights[to]+s.h.VertexWeight(v) <= s.bounds[to]
}

// IsBoundary reports whether v has an incident edge spanning more than
// one block.
func (s *State) IsBoundary(v int) bool {
	for _, e := range s.h.IncidentEdges(v) {
		if s.connectivity[e] > 1 {
			return true
		}
	}
	return false
}

// Gain returns the objective decrease of moving v to block to.
func (s *State) Gain(v, to int) int64 {
	from := s.part[v]
	if from == to {
		return 0
	}
	var gain int64
	for _, e := range s.h.IncidentEdges(v) {
		if s.h.EdgeSize(e) < 2 {
			continue
		}
		c := s.connectivity[e]
		after := c
		if s.pinCounts[e*s.k+from] == 1 {
			after--
		}
		if s.pinCounts[e*s.k+to] == 0 {
			after++
		}
		if after != c {
			gain += s.h.EdgeWeight(e) * (s.obj.Penalty(c) - s.obj.Penalty(after))
		}
	}
	return gain
}

// AdjacentBlocks appends to dst the blocks other than v's own that share
// an edge with v, each once, ascending.
func (s *State) AdjacentBlocks(v int, dst []int) []int {
	from := s.part[v]
	for b := 0; b < s.k; b++ {
		if b == from {
			continue
		}
		for _, e := range s.h.IncidentEdges(v) {
			if s.pinCounts[e*s.k+b] > 0 {
				dst = append(dst, b)
				break
			}
		}
	}
	return dst
}

// Move puts v into block to and returns the gain realised. Fixed
// vertices are never moved; the call is then a no-op.
func (s *State) Move(v, to int) int64 {
	from := s.part[v]
	if from == to || !s.Movable(v) {
		return 0
	}
	gain := s.Gain(v, to)
	w := s.h.VertexWeight(v)
	s.blockWeights[from] -= w
	s.blockWeights[to] += w
	s.part[v] = to
	for _, e := range s.h.IncidentEdges(v) {
		fromIdx, toIdx := e*s.k+from, e*s.k+to
		s.pinCounts[fromIdx]--
		if s.pinCounts[fromIdx] == 0 {
			s.connectivity[e]--
		}
		if s.pinCounts[toIdx] == 0 {
			s.connectivity[e]++
		}
		s.pinCounts[toIdx]++
	}
	s.objective -= gain
	return gain
}

// Clone returns an independent copy of s.
func (s *State) Clone() *State {
	c := *s
	c.part = append([]int(nil), s.part...)
	c.blockWeights = append([]int64(nil), s.blockWeights...)
	c.pinCounts = append([]int(nil), s.pinCounts...)
	c.connectivity = append([]int(nil), s.connectivity...)
	return &c
}
