package hypergraph

import (
	"sync/atomic"
)

// Unfixed marks a vertex without a fixed block in fixed-vertex arrays.
const Unfixed = -1

// Hypergraph stores vertices, hyperedges and their weights in CSR arrays.
// Edge -> pins is given by the caller; vertex -> incident edges is built
// once at construction. Apart from SetFixedVertices nothing mutates after
// construction, so a Hypergraph may be shared by concurrent readers.
type Hypergraph struct {
	numVertices int
	blocks      int

	edgeOffsets []int // len = edges+1
	pins        []int // flattened edge -> vertex incidence

	vertexOffsets []int // len = vertices+1
	incidentEdges []int // flattened vertex -> edge incidence

	edgeWeights   []int64
	vertexWeights []int64

	totalVertexWeight int64
	totalEdgeWeight   int64

	fixed    []int // nil when no vertex is fixed
	numFixed int
	fixedSet bool

	released atomic.Bool
}

// Option configures optional construction data.
type Option func(*options)

type options struct {
	edgeWeights   []int64
	vertexWeights []int64
	fixed         []int
	blocks        int
}

// WithEdgeWeights sets one weight per hyperedge. Defaults to unit weights.
func WithEdgeWeights(weights []int64) Option {
	return func(o *options) { o.edgeWeights = weights }
}

// WithVertexWeights sets one weight per vertex. Defaults to unit weights.
func WithVertexWeights(weights []int64) Option {
	return func(o *options) { o.vertexWeights = weights }
}

// WithFixedVertices pins vertices to blocks; Unfixed marks a free vertex.
// Equivalent to calling SetFixedVertices right after construction.
func WithFixedVertices(blocks []int) Option {
	return func(o *options) { o.fixed = blocks }
}

// WithBlocks records the number of blocks the hypergraph is built for.
// Fixed blocks are then validated against it at construction.
func WithBlocks(k int) Option {
	return func(o *options) { o.blocks = k }
}

// New builds a hypergraph from CSR incidence data: edge e has the pins
// pins[offsets[e]:offsets[e+1]].
func New(numVertices int, offsets []int, pins []int, opts ...Option) (*Hypergraph, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if numVertices < 0 {
		return nil, invalidf("negative vertex count %d", numVertices)
	}
	if len(offsets) == 0 {
		return nil, invalidf("offsets must have at least one entry")
	}
	if offsets[0] != 0 {
		return nil, invalidf("offsets[0] = %d, want 0", offsets[0])
	}
	numEdges := len(offsets) - 1
	for e := 0; e < numEdges; e++ {
		if offsets[e+1] < offsets[e] {
			return nil, invalidf("offsets decrease at edge %d (%d > %d)", e, offsets[e], offsets[e+1])
		}
	}
	if offsets[numEdges] != len(pins) {
		return nil, invalidf("offsets[%d] = %d but %d pins given", numEdges, offsets[numEdges], len(pins))
	}
	if o.blocks < 0 || o.blocks == 1 {
		return nil, invalidf("block count %d, want 0 (unset) or >= 2", o.blocks)
	}

	// Pins in range and unique within an edge.
	lastEdge := make([]int, numVertices)
	for v := range lastEdge {
		lastEdge[v] = -1
	}
	degree := make([]int, numVertices)
	for e := 0; e < numEdges; e++ {
		for _, p := range pins[offsets[e]:offsets[e+1]] {
			if p < 0 || p >= numVertices {
				return nil, invalidf("edge %d references vertex %d outside [0,%d)", e, p, numVertices)
			}
			if lastEdge[p] == e {
				return nil, invalidf("edge %d contains vertex %d twice", e, p)
			}
			lastEdge[p] = e
			degree[p]++
		}
	}

	h := &Hypergraph{
		numVertices: numVertices,
		blocks:      o.blocks,
		edgeOffsets: append([]int(nil), offsets...),
		pins:        append([]int(nil), pins...),
	}

	var err error
	if h.edgeWeights, h.totalEdgeWeight, err = weightsOrUnit(o.edgeWeights, numEdges, "edge"); err != nil {
		return nil, err
	}
	if h.vertexWeights, h.totalVertexWeight, err = weightsOrUnit(o.vertexWeights, numVertices, "vertex"); err != nil {
		return nil, err
	}

	h.vertexOffsets = make([]int, numVertices+1)
	for v := 0; v < numVertices; v++ {
		h.vertexOffsets[v+1] = h.vertexOffsets[v] + degree[v]
	}
	h.incidentEdges = make([]int, len(pins))
	fill := make([]int, numVertices)
	copy(fill, h.vertexOffsets[:numVertices])
	for e := 0; e < numEdges; e++ {
		for _, p := range pins[offsets[e]:offsets[e+1]] {
			h.incidentEdges[fill[p]] = e
			fill[p]++
		}
	}

	if o.fixed != nil {
		if err := h.SetFixedVertices(o.fixed); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func weightsOrUnit(weights []int64, n int, what string) ([]int64, int64, error) {
	out := make([]int64, n)
	if weights == nil {
		for i := range out {
			out[i] = 1
		}
		return out, int64(n), nil
	}
	if len(weights) != n {
		return nil, 0, invalidf("%d %s weights given for %d %ss", len(weights), what, n, what)
	}
	var total int64
	for i, w := range weights {
		if w < 0 {
			return nil, 0, invalidf("%s %d has negative weight %d", what, i, w)
		}
		var err error
		if total, err = AddWeight(total, w); err != nil {
			return nil, 0, err
		}
		out[i] = w
	}
	return out, total, nil
}

// NumVertices returns the number of vertices.
func (h *Hypergraph) NumVertices() int { return h.numVertices }

// NumEdges returns the number of hyperedges.
func (h *Hypergraph) NumEdges() int { return len(h.edgeOffsets) - 1 }

// NumPins returns the total number of (edge, vertex) incidences.
func (h *Hypergraph) NumPins() int { return len(h.pins) }

// Blocks returns the block count given at construction, or 0 if unset.
func (h *Hypergraph) Blocks() int { return h.blocks }

// Pins returns the vertices of edge e. The slice must not be modified.
func (h *Hypergraph) Pins(e int) []int {
	return h.pins[h.edgeOffsets[e]:h.edgeOffsets[e+1]]
}

// EdgeSize returns the number of pins of edge e.
func (h *Hypergraph) EdgeSize(e int) int {
	return h.edgeOffsets[e+1] - h.edgeOffsets[e]
}

// IncidentEdges returns the edges containing vertex v. The slice must not be modified.
func (h *Hypergraph) IncidentEdges(v int) []int {
	return h.incidentEdges[h.vertexOffsets[v]:h.vertexOffsets[v+1]]
}

// Degree returns the number of edges containing v.
func (h *Hypergraph) Degree(v int) int {
	return h.vertexOffsets[v+1] - h.vertexOffsets[v]
}

// EdgeWeight returns the weight of edge e.
func (h *Hypergraph) EdgeWeight(e int) int64 { return h.edgeWeights[e] }

// VertexWeight returns the weight of vertex v.
func (h *Hypergraph) VertexWeight(v int) int64 { return h.vertexWeights[v] }

// TotalVertexWeight returns the sum of all vertex weights.
func (h *Hypergraph) TotalVertexWeight() int64 { return h.totalVertexWeight }

// TotalEdgeWeight returns the sum of all edge weights.
func (h *Hypergraph) TotalEdgeWeight() int64 { return h.totalEdgeWeight }

// Offsets returns a copy of the edge offset array.
func (h *Hypergraph) Offsets() []int { return append([]int(nil), h.edgeOffsets...) }

// FlatPins returns a copy of the flattened pin array.
func (h *Hypergraph) FlatPins() []int { return append([]int(nil), h.pins...) }

// EdgeWeights returns a copy of the edge weights.
func (h *Hypergraph) EdgeWeights() []int64 { return append([]int64(nil), h.edgeWeights...) }

// VertexWeights returns a copy of the vertex weights.
func (h *Hypergraph) VertexWeights() []int64 { return append([]int64(nil), h.vertexWeights...) }

// Close releases the hypergraph. Later operations that check Released
// fail with ErrReleased.
func (h *Hypergraph) Close() { h.released.Store(true) }

// Released reports whether Close was called.
func (h *Hypergraph) Released() bool { return h.released.Load() }

// CheckUsable returns ErrReleased for a nil or released hypergraph.
func (h *Hypergraph) CheckUsable() error {
	if h == nil {
		return invalidf("nil hypergraph")
	}
	if h.Released() {
		return ErrReleased
	}
	return nil
}
