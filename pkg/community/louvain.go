// Package community detects densely connected vertex groups of a
// hypergraph. The coarsener only contracts vertices that share a
// community, which keeps clusters from straddling natural cuts.
package community

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
)

const (
	DefaultMaxIterations = 100
	DefaultMaxLevels     = 10
	DefaultMinGain       = 1e-6
	DefaultResolution    = 1.0
)

// Options configures community detection.
type Options struct {
	// MaxIterations limits local-moving rounds per level.
	MaxIterations int
	// MaxLevels limits aggregation levels.
	MaxLevels int
	// MinGain is the smallest modularity gain that justifies a move.
	MinGain float64
	// Resolution scales the null-model term; higher gives smaller communities.
	Resolution float64
	// Seed drives the node visiting order.
	Seed int64
}

// Validate applies defaults for unset values.
func (o *Options) Validate() {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.MaxLevels <= 0 {
		o.MaxLevels = DefaultMaxLevels
	}
	if o.MinGain <= 0 {
		o.MinGain = DefaultMinGain
	}
	if o.Resolution <= 0 {
		o.Resolution = DefaultResolution
	}
}

// DefaultOptions returns the defaults.
func DefaultOptions() Options {
	o := Options{}
	o.Validate()
	return o
}

// Detector assigns a community id to every vertex of a hypergraph.
// Ids are dense, numbered by first appearance in vertex order.
type Detector interface {
	Name() string
	Detect(ctx context.Context, h *hypergraph.Hypergraph) ([]int, error)
}

// NewDetector returns the detector registered under name: "louvain" or "gonum".
func NewDetector(name string, opts Options, logger zerolog.Logger) (Detector, error) {
	opts.Validate()
	switch name {
	case "", "louvain":
		return &Louvain{opts: opts, logger: logger}, nil
	case "gonum":
		return &Gonum{opts: opts, logger: logger}, nil
	}
	return nil, fmt.Errorf("%w: unknown community detector %q", hypergraph.ErrInvalidInput, name)
}

// Community is the local-moving state of one level.
type Community struct {
	NodeToCommunity []int     // community of node i
	CommunityTotal  []float64 // sum of degrees in community c
	CommunitySize   []int     // number of nodes in community c
}

// NewCommunity puts every node in its own community.
func NewCommunity(graph *Graph) *Community {
	n := graph.NumNodes
	comm := &Community{
		NodeToCommunity: make([]int, n),
		CommunityTotal:  make([]float64, n),
		CommunitySize:   make([]int, n),
	}
	for i := 0; i < n; i++ {
		comm.NodeToCommunity[i] = i
		comm.CommunityTotal[i] = graph.Degrees[i]
		comm.CommunitySize[i] = 1
	}
	return comm
}

// Modularity computes Newman's modularity at the given resolution.
func Modularity(graph *Graph, comm *Community, resolution float64) float64 {
	if graph.TotalWeight == 0 {
		return 0.0
	}
	m2 := 2.0 * graph.TotalWeight
	internal := make([]float64, graph.NumNodes)
	for i := 0; i < graph.NumNodes; i++ {
		c := comm.NodeToCommunity[i]
		internal[c] += 2 * graph.SelfLoops[i]
		for j, neighbor := range graph.Adjacency[i] {
			if comm.NodeToCommunity[neighbor] == c {
				internal[c] += graph.Weights[i][j]
			}
		}
	}

	modularity := 0.0
	for c := 0; c < graph.NumNodes; c++ {
		if comm.CommunitySize[c] == 0 {
			continue
		}
		total := comm.CommunityTotal[c]
		modularity += internal[c]/m2 - resolution*(total/m2)*(total/m2)
	}
	return modularity
}

// OneLevel moves nodes between neighbouring communities until a round
// makes no move. It returns whether any node moved and the move count.
func OneLevel(ctx context.Context, graph *Graph, comm *Community, opts Options, rng *rand.Rand, logger zerolog.Logger) (bool, int, error) {
	if graph.TotalWeight == 0 {
		return false, 0, nil
	}
	m2 := 2.0 * graph.TotalWeight
	improvement := false
	totalMoves := 0

	nodes := make([]int, graph.NumNodes)
	for i := range nodes {
		nodes[i] = i
	}
	// Weight from the current node to each neighbouring community.
	linkWeight := make([]float64, graph.NumNodes)
	var touched []int

	for iteration := 0; iteration < opts.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return improvement, totalMoves, err
		}
		iterationMoves := 0
		rng.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })

		for _, node := range nodes {
			oldComm := comm.NodeToCommunity[node]
			degree := graph.Degrees[node]

			touched = touched[:0]
			for i, neighbor := range graph.Adjacency[node] {
				c := comm.NodeToCommunity[neighbor]
				if linkWeight[c] == 0 {
					touched = append(touched, c)
				}
				linkWeight[c] += graph.Weights[node][i]
			}

			// Take the node out before scoring so its own community is
			// compared on equal terms.
			comm.CommunityTotal[oldComm] -= degree
			comm.CommunitySize[oldComm]--

			bestComm := oldComm
			bestGain := linkWeight[oldComm] - opts.Resolution*comm.CommunityTotal[oldComm]*degree/m2
			sort.Ints(touched)
			for _, c := range touched {
				if c == oldComm {
					continue
				}
				gain := linkWeight[c] - opts.Resolution*comm.CommunityTotal[c]*degree/m2
				if gain > bestGain+opts.MinGain*graph.TotalWeight {
					bestComm = c
					bestGain = gain
				}
			}

			comm.CommunityTotal[bestComm] += degree
			comm.CommunitySize[bestComm]++
			comm.NodeToCommunity[node] = bestComm
			if bestComm != oldComm {
				iterationMoves++
				improvement = true
			}

			for _, c := range touched {
				linkWeight[c] = 0
			}
		}

		totalMoves += iterationMoves
		logger.Debug().
			Int("iteration", iteration+1).
			Int("moves", iterationMoves).
			Msg("Community local moving")
		if iterationMoves == 0 {
			break
		}
	}
	return improvement, totalMoves, nil
}

// AggregateGraph contracts every community into a super node. It returns
// the super graph and the super node of every node.
func AggregateGraph(graph *Graph, comm *Community) (*Graph, []int) {
	superOf := make([]int, graph.NumNodes)
	commToSuper := make([]int, graph.NumNodes)
	for c := range commToSuper {
		commToSuper[c] = -1
	}
	numSuper := 0
	for i := 0; i < graph.NumNodes; i++ {
		c := comm.NodeToCommunity[i]
		if commToSuper[c] == -1 {
			commToSuper[c] = numSuper
			numSuper++
		}
		superOf[i] = commToSuper[c]
	}

	type key struct{ u, v int }
	superEdges := make(map[key]float64)
	var order []key
	for i := 0; i < graph.NumNodes; i++ {
		su := superOf[i]
		if graph.SelfLoops[i] > 0 {
			k := key{su, su}
			if _, ok := superEdges[k]; !ok {
				order = append(order, k)
			}
			superEdges[k] += graph.SelfLoops[i]
		}
		for j, neighbor := range graph.Adjacency[i] {
			if neighbor < i {
				continue // each undirected edge once
			}
			sv := superOf[neighbor]
			k := key{su, sv}
			if sv < su {
				k = key{sv, su}
			}
			if _, ok := superEdges[k]; !ok {
				order = append(order, k)
			}
			superEdges[k] += graph.Weights[i][j]
		}
	}

	superGraph := NewGraph(numSuper)
	for _, k := range order {
		if w := superEdges[k]; w > 0 {
			_ = superGraph.AddEdge(k.u, k.v, w)
		}
	}
	return superGraph, superOf
}

// Run executes multilevel Louvain on graph and returns the final community
// of every original node.
func Run(ctx context.Context, graph *Graph, opts Options, logger zerolog.Logger) ([]int, float64, error) {
	opts.Validate()
	if err := graph.Validate(); err != nil {
		return nil, 0, fmt.Errorf("invalid graph: %w", err)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	membership := make([]int, graph.NumNodes)
	for i := range membership {
		membership[i] = i
	}

	current := graph
	comm := NewCommunity(current)
	for level := 0; level < opts.MaxLevels; level++ {
		improvement, moves, err := OneLevel(ctx, current, comm, opts, rng, logger)
		if err != nil {
			return nil, 0, fmt.Errorf("local moving failed at level %d: %w", level, err)
		}
		logger.Debug().
			Int("level", level).
			Int("nodes", current.NumNodes).
			Int("moves", moves).
			Msg("Community level finished")
		if !improvement {
			break
		}

		superGraph, superOf := AggregateGraph(current, comm)
		if superGraph.NumNodes >= current.NumNodes {
			break
		}
		for i, node := range membership {
			membership[i] = superOf[node]
		}
		current = superGraph
		comm = NewCommunity(current)
	}

	final := make([]int, graph.NumNodes)
	for i, node := range membership {
		final[i] = comm.NodeToCommunity[node]
	}
	return final, Modularity(current, comm, opts.Resolution), nil
}

// Louvain is the built-in detector: multilevel Louvain on the star
// expansion of the hypergraph.
type Louvain struct {
	opts   Options
	logger zerolog.Logger
}

// Name implements Detector.
func (l *Louvain) Name() string { return "louvain" }

// Detect implements Detector.
func (l *Louvain) Detect(ctx context.Context, h *hypergraph.Hypergraph) ([]int, error) {
	start := time.Now()
	graph := StarExpansion(h)
	nodeComm, modularity, err := Run(ctx, graph, l.opts, l.logger)
	if err != nil {
		return nil, err
	}
	communities := Normalize(nodeComm[:h.NumVertices()])

	l.logger.Info().
		Str("detector", l.Name()).
		Int("vertices", h.NumVertices()).
		Int("communities", Count(communities)).
		Float64("modularity", modularity).
		Int64("runtime_ms", time.Since(start).Milliseconds()).
		Msg("Community detection completed")
	return communities, nil
}

// Normalize renumbers ids densely in order of first appearance.
func Normalize(ids []int) []int {
	remap := make(map[int]int)
	out := make([]int, len(ids))
	for i, id := range ids {
		c, ok := remap[id]
		if !ok {
			c = len(remap)
			remap[id] = c
		}
		out[i] = c
	}
	return out
}

// Count returns the number of distinct ids in a normalized assignment.
func Count(communities []int) int {
	highest := -1
	for _, c := range communities {
		if c > highest {
			highest = c
		}
	}
	return highest + 1
}
