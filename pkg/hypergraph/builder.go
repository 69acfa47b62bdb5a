package hypergraph

// FromEdges builds a hypergraph from one pin list per edge.
func FromEdges(numVertices int, edges [][]int, opts ...Option) (*Hypergraph, error) {
	offsets := make([]int, 1, len(edges)+1)
	var pins []int
	for _, edge := range edges {
		pins = append(pins, edge...)
		offsets = append(offsets, len(pins))
	}
	return New(numVertices, offsets, pins, opts...)
}

// FromIncidence builds a hypergraph from an incidence predicate:
// incident(v, e) reports whether vertex v belongs to edge e.
func FromIncidence(numVertices, numEdges int, incident func(v, e int) bool, opts ...Option) (*Hypergraph, error) {
	if numEdges < 0 {
		return nil, invalidf("negative edge count %d", numEdges)
	}
	offsets := make([]int, 1, numEdges+1)
	var pins []int
	for e := 0; e < numEdges; e++ {
		for v := 0; v < numVertices; v++ {
			if incident(v, e) {
				pins = append(pins, v)
			}
		}
		offsets = append(offsets, len(pins))
	}
	return New(numVertices, offsets, pins, opts...)
}

// Edges returns a copy of the pin lists, one per edge.
func (h *Hypergraph) Edges() [][]int {
	out := make([][]int, h.NumEdges())
	for e := range out {
		out[e] = append([]int(nil), h.Pins(e)...)
	}
	return out
}
