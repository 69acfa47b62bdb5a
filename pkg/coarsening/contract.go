package coarsening

import (
	"sort"
	"strconv"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
)

// Level is one contraction step: Fine was contracted into Coarse.
type Level struct {
	Fine   *hypergraph.Hypergraph
	Coarse *hypergraph.Hypergraph
	// CoarseOf maps every fine vertex to its coarse vertex.
	CoarseOf []int
	// Members lists the fine vertices of every coarse vertex, ascending.
	Members [][]int
}

// Contract merges every group of vertices that shares a representative in
// clusterOf. Coarse ids follow the order of first appearance by fine id.
// Pins are deduplicated, edges left with fewer than two pins are dropped
// and identical edges are merged with summed weights, so any coarse
// partition has the same objective as its projection.
func Contract(h *hypergraph.Hypergraph, clusterOf []int) (*Level, error) {
	n := h.NumVertices()
	coarseOfRep := make([]int, n)
	for i := range coarseOfRep {
		coarseOfRep[i] = -1
	}
	coarseOf := make([]int, n)
	var members [][]int
	for v := 0; v < n; v++ {
		rep := clusterOf[v]
		if coarseOfRep[rep] == -1 {
			coarseOfRep[rep] = len(members)
			members = append(members, nil)
		}
		c := coarseOfRep[rep]
		coarseOf[v] = c
		members[c] = append(members[c], v)
	}
	numCoarse := len(members)

	vertexWeights := make([]int64, numCoarse)
	fixed := make([]int, numCoarse)
	for c := range fixed {
		fixed[c] = hypergraph.Unfixed
	}
	for v := 0; v < n; v++ {
		c := coarseOf[v]
		vertexWeights[c] += h.VertexWeight(v)
		if b, ok := h.FixedBlock(v); ok {
			fixed[c] = b
		}
	}

	offsets := []int{0}
	var pins []int
	var edgeWeights []int64
	seenKey := make(map[string]int)
	stamp := make([]int, numCoarse)
	for c := range stamp {
		stamp[c] = -1
	}
	var edge []int
	var key []byte
	for e := 0; e < h.NumEdges(); e++ {
		edge = edge[:0]
		for _, v := range h.Pins(e) {
			c := coarseOf[v]
			if stamp[c] != e {
				stamp[c] = e
				edge = append(edge, c)
			}
		}
		if len(edge) < 2 {
			continue
		}
		sort.Ints(edge)

		key = key[:0]
		for _, c := range edge {
			key = strconv.AppendInt(key, int64(c), 36)
			key = append(key, ',')
		}
		if idx, ok := seenKey[string(key)]; ok {
			edgeWeights[idx] += h.EdgeWeight(e)
			continue
		}
		seenKey[string(key)] = len(edgeWeights)
		pins = append(pins, edge...)
		offsets = append(offsets, len(pins))
		edgeWeights = append(edgeWeights, h.EdgeWeight(e))
	}

	opts := []hypergraph.Option{
		hypergraph.WithEdgeWeights(edgeWeights),
		hypergraph.WithVertexWeights(vertexWeights),
		hypergraph.WithBlocks(h.Blocks()),
	}
	if h.HasFixedVertices() {
		opts = append(opts, hypergraph.WithFixedVertices(fixed))
	}
	coarse, err := hypergraph.New(numCoarse, offsets, pins, opts...)
	if err != nil {
		return nil, err
	}
	return &Level{Fine: h, Coarse: coarse, CoarseOf: coarseOf, Members: members}, nil
}

// Project copies a coarse partition onto the fine vertices.
func (l *Level) Project(coarsePart []int) []int {
	fine := make([]int, len(l.CoarseOf))
	for v, c := range l.CoarseOf {
		fine[v] = coarsePart[c]
	}
	return fine
}

// Restrict maps a fine labelling to the coarse vertices through the first
// member of each. It is exact when members share a label.
func (l *Level) Restrict(fineLabels []int) []int {
	coarse := make([]int, len(l.Members))
	for c, m := range l.Members {
		coarse[c] = fineLabels[m[0]]
	}
	return coarse
}

func (l *Level) projectConstraints(cons Constraints) Constraints {
	var out Constraints
	if cons.Communities != nil {
		out.Communities = l.Restrict(cons.Communities)
	}
	if cons.Blocks != nil {
		out.Blocks = l.Restrict(cons.Blocks)
	}
	return out
}
