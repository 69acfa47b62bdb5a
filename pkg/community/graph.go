package community

import (
	"fmt"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
)

// Graph is a weighted undirected graph stored as adjacency arrays.
// Self-loops are kept apart from the adjacency lists.
type Graph struct {
	NumNodes    int
	Adjacency   [][]int     // adjacency[i] = neighbors of node i
	Weights     [][]float64 // weights[i][j] = weight of edge i -- adjacency[i][j]
	SelfLoops   []float64   // selfLoops[i] = weight of the loop on i
	Degrees     []float64   // weighted degree, loops counted twice
	TotalWeight float64     // sum of edge weights, loops counted once
}

// NewGraph creates a graph with numNodes isolated nodes.
func NewGraph(numNodes int) *Graph {
	return &Graph{
		NumNodes:  numNodes,
		Adjacency: make([][]int, numNodes),
		Weights:   make([][]float64, numNodes),
		SelfLoops: make([]float64, numNodes),
		Degrees:   make([]float64, numNodes),
	}
}

// AddEdge adds a weighted edge between u and v. Parallel edges are not
// merged; callers aggregate weights first.
func (g *Graph) AddEdge(u, v int, weight float64) error {
	if u < 0 || u >= g.NumNodes || v < 0 || v >= g.NumNodes {
		return fmt.Errorf("node index out of range: u=%d, v=%d, numNodes=%d", u, v, g.NumNodes)
	}
	if weight <= 0 {
		return fmt.Errorf("edge weight must be positive: %f", weight)
	}

	if u == v {
		g.SelfLoops[u] += weight
		g.Degrees[u] += 2 * weight
	} else {
		g.Adjacency[u] = append(g.Adjacency[u], v)
		g.Weights[u] = append(g.Weights[u], weight)
		g.Adjacency[v] = append(g.Adjacency[v], u)
		g.Weights[v] = append(g.Weights[v], weight)
		g.Degrees[u] += weight
		g.Degrees[v] += weight
	}
	g.TotalWeight += weight
	return nil
}

// StarExpansion turns h into a bipartite graph: node v < NumVertices is
// vertex v, node NumVertices+i is the i-th edge with at least two pins.
// Each pin link of edge e weighs w(e)/|e|, so a vertex's degree is its
// share of the edge weight around it.
func StarExpansion(h *hypergraph.Hypergraph) *Graph {
	n := h.NumVertices()
	var kept []int
	for e := 0; e < h.NumEdges(); e++ {
		if h.EdgeSize(e) >= 2 && h.EdgeWeight(e) > 0 {
			kept = append(kept, e)
		}
	}

	g := NewGraph(n + len(kept))
	for i, e := range kept {
		w := float64(h.EdgeWeight(e)) / float64(h.EdgeSize(e))
		for _, p := range h.Pins(e) {
			// Endpoints are in range and w > 0 by construction.
			_ = g.AddEdge(p, n+i, w)
		}
	}
	return g
}

// Validate checks graph consistency.
func (g *Graph) Validate() error {
	if g.NumNodes < 0 {
		return fmt.Errorf("graph must have a non-negative number of nodes")
	}
	for i := 0; i < g.NumNodes; i++ {
		if len(g.Adjacency[i]) != len(g.Weights[i]) {
			return fmt.Errorf("adjacency and weights arrays inconsistent for node %d", i)
		}
		for j, neighbor := range g.Adjacency[i] {
			if neighbor < 0 || neighbor >= g.NumNodes {
				return fmt.Errorf("invalid neighbor %d for node %d", neighbor, i)
			}
			if g.Weights[i][j] <= 0 {
				return fmt.Errorf("non-positive weight %f for edge %d-%d", g.Weights[i][j], i, neighbor)
			}
		}
	}
	return nil
}
