package community

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	gcommunity "gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
)

// Gonum runs gonum's Louvain implementation on the star expansion.
type Gonum struct {
	opts   Options
	logger zerolog.Logger
}

// Name implements Detector.
func (g *Gonum) Name() string { return "gonum" }

// Detect implements Detector.
func (g *Gonum) Detect(ctx context.Context, h *hypergraph.Hypergraph) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	n := h.NumVertices()

	star := StarExpansion(h)
	wg := simple.NewWeightedUndirectedGraph(0, 0)
	for id := 0; id < star.NumNodes; id++ {
		wg.AddNode(simple.Node(int64(id)))
	}
	for u := 0; u < star.NumNodes; u++ {
		for j, v := range star.Adjacency[u] {
			if v < u {
				continue
			}
			wg.SetWeightedEdge(simple.WeightedEdge{
				F: simple.Node(int64(u)),
				T: simple.Node(int64(v)),
				W: star.Weights[u][j],
			})
		}
	}

	assignment := make([]int, n)
	for v := range assignment {
		assignment[v] = v
	}
	if star.TotalWeight > 0 {
		seed := uint64(g.opts.Seed)
		reduced := gcommunity.Modularize(wg, g.opts.Resolution, rand.NewPCG(seed, seed))
		for c, members := range reduced.Communities() {
			for _, node := range members {
				if id := int(node.ID()); id < n {
					assignment[id] = c
				}
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	communities := Normalize(assignment)

	g.logger.Info().
		Str("detector", g.Name()).
		Int("vertices", n).
		Int("communities", Count(communities)).
		Int64("runtime_ms", time.Since(start).Milliseconds()).
		Msg("Community detection completed")
	return communities, nil
}
