package hypergraph

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Extract returns the sub-hypergraph induced by vertices together with the
// mapping from sub-hypergraph vertex ids to ids in h. Pins outside the set
// are dropped and edges left with fewer than two pins are removed, which
// is the net splitting used by recursive bisection for the connectivity
// metric. Fixed vertices are not carried over.
func (h *Hypergraph) Extract(vertices []int) (*Hypergraph, []int, error) {
	if err := h.CheckUsable(); err != nil {
		return nil, nil, err
	}

	local := make([]int, h.numVertices)
	for v := range local {
		local[v] = -1
	}
	toParent := make([]int, len(vertices))
	vertexWeights := make([]int64, len(vertices))
	for i, v := range vertices {
		if v < 0 || v >= h.numVertices {
			return nil, nil, invalidf("extract vertex %d outside [0,%d)", v, h.numVertices)
		}
		if local[v] != -1 {
			return nil, nil, invalidf("extract vertex %d listed twice", v)
		}
		local[v] = i
		toParent[i] = v
		vertexWeights[i] = h.vertexWeights[v]
	}

	seen := make([]bool, h.NumEdges())
	offsets := []int{0}
	var pins []int
	var edgeWeights []int64
	for _, v := range vertices {
		for _, e := range h.IncidentEdges(v) {
			if seen[e] {
				continue
			}
			seen[e] = true
			start := len(pins)
			for _, p := range h.Pins(e) {
				if local[p] >= 0 {
					pins = append(pins, local[p])
				}
			}
			if len(pins)-start < 2 {
				pins = pins[:start]
				continue
			}
			offsets = append(offsets, len(pins))
			edgeWeights = append(edgeWeights, h.edgeWeights[e])
		}
	}
	if edgeWeights == nil {
		edgeWeights = []int64{}
	}

	sub, err := New(len(vertices), offsets, pins,
		WithEdgeWeights(edgeWeights), WithVertexWeights(vertexWeights))
	if err != nil {
		return nil, nil, err
	}
	return sub, toParent, nil
}

// ConnectedComponents returns the vertex sets of the connected components
// of h, each sorted ascending, ordered by their smallest vertex.
func (h *Hypergraph) ConnectedComponents() [][]int {
	// Star expansion: vertex v is node v, edge e is node numVertices+e.
	g := simple.NewUndirectedGraph()
	for v := 0; v < h.numVertices; v++ {
		g.AddNode(simple.Node(v))
	}
	for e := 0; e < h.NumEdges(); e++ {
		edgeNode := simple.Node(int64(h.numVertices + e))
		for _, p := range h.Pins(e) {
			g.SetEdge(simple.Edge{F: simple.Node(int64(p)), T: edgeNode})
		}
	}

	var components [][]int
	for _, cc := range topo.ConnectedComponents(g) {
		var members []int
		for _, n := range cc {
			if id := int(n.ID()); id < h.numVertices {
				members = append(members, id)
			}
		}
		if len(members) == 0 {
			continue
		}
		sort.Ints(members)
		components = append(components, members)
	}
	sort.Slice(components, func(i, j int) bool { return components[i][0] < components[j][0] })
	return components
}
