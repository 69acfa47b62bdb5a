package coarsening

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
)

const (
	DefaultContractionLimitMultiplier = 160
	DefaultMaxAllowedWeightMultiplier = 1.0
	DefaultMinShrinkFactor            = 1.01
	DefaultMaxLevels                  = 64
	DefaultMaxEdgeSize                = 1000
)

// Options controls one coarsening run.
type Options struct {
	Rating Rating
	// ContractionLimit stops coarsening once a level has at most this many
	// vertices.
	ContractionLimit int
	// MaxNodeWeight bounds the weight of a cluster. Zero means unbounded.
	MaxNodeWeight int64
	// MinShrinkFactor stops coarsening when n_fine / n_coarse falls below it.
	MinShrinkFactor float64
	MaxLevels       int
	// Edges with more pins are ignored by the rating.
	MaxEdgeSize int
	Seed        int64
}

// Validate applies defaults for unset values.
func (o *Options) Validate() {
	if o.ContractionLimit <= 0 {
		o.ContractionLimit = DefaultContractionLimitMultiplier * 2
	}
	if o.MinShrinkFactor <= 1 {
		o.MinShrinkFactor = DefaultMinShrinkFactor
	}
	if o.MaxLevels <= 0 {
		o.MaxLevels = DefaultMaxLevels
	}
	if o.MaxEdgeSize <= 0 {
		o.MaxEdgeSize = DefaultMaxEdgeSize
	}
}

// MaxNodeWeight returns ceil(multiplier * total / limit).
func MaxNodeWeight(total int64, limit int, multiplier float64) int64 {
	if limit <= 0 {
		return total
	}
	w := math.Ceil(multiplier * float64(total) / float64(limit))
	if w >= math.MaxInt64 {
		return math.MaxInt64
	}
	if w < 1 {
		return 1
	}
	return int64(w)
}

// Constraints restrict which vertices may share a cluster. Nil slices
// impose nothing.
type Constraints struct {
	// Communities only lets vertices of the same community merge.
	Communities []int
	// Blocks only lets vertices of the same block merge, so contraction
	// preserves the objective of an existing partition.
	Blocks []int
}

func (c Constraints) validate(n int) error {
	if c.Communities != nil && len(c.Communities) != n {
		return fmt.Errorf("%w: %d community ids for %d vertices",
			hypergraph.ErrInvalidInput, len(c.Communities), n)
	}
	if c.Blocks != nil && len(c.Blocks) != n {
		return fmt.Errorf("%w: %d block ids for %d vertices",
			hypergraph.ErrInvalidInput, len(c.Blocks), n)
	}
	return nil
}

// Coarsener contracts a hypergraph level by level.
type Coarsener struct {
	opts   Options
	logger zerolog.Logger
}

// New creates a coarsener.
func New(opts Options, logger zerolog.Logger) *Coarsener {
	opts.Validate()
	return &Coarsener{opts: opts, logger: logger}
}

// Coarsen builds the hierarchy of h. The input is never modified; level 0
// of the hierarchy contracts h itself.
func (c *Coarsener) Coarsen(ctx context.Context, h *hypergraph.Hypergraph, cons Constraints) (*Hierarchy, error) {
	if err := h.CheckUsable(); err != nil {
		return nil, err
	}
	if err := cons.validate(h.NumVertices()); err != nil {
		return nil, err
	}

	start := time.Now()
	hierarchy := &Hierarchy{Input: h}
	current := h
	for level := 0; level < c.opts.MaxLevels; level++ {
		if current.NumVertices() <= c.opts.ContractionLimit {
			c.logger.Debug().Int("level", level).Msg("Contraction limit reached, stopping")
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		levelStart := time.Now()
		rng := rand.New(rand.NewSource(c.opts.Seed + int64(level)))
		clusterOf, numClusters := c.cluster(current, cons, rng)
		shrink := float64(current.NumVertices()) / float64(numClusters)
		if shrink < c.opts.MinShrinkFactor {
			c.logger.Debug().
				Int("level", level).
				Float64("shrink", shrink).
				Msg("Insufficient shrink, stopping")
			break
		}

		next, err := Contract(current, clusterOf)
		if err != nil {
			return nil, fmt.Errorf("contraction failed at level %d: %w", level, err)
		}
		cons = next.projectConstraints(cons)
		hierarchy.Levels = append(hierarchy.Levels, next)
		current = next.Coarse

		c.logger.Debug().
			Int("level", level).
			Int("vertices", current.NumVertices()).
			Int("edges", current.NumEdges()).
			Int("pins", current.NumPins()).
			Int64("runtime_ms", time.Since(levelStart).Milliseconds()).
			Msg("Coarsening level finished")
	}

	c.logger.Info().
		Int("levels", len(hierarchy.Levels)).
		Int("input_vertices", h.NumVertices()).
		Int("coarsest_vertices", current.NumVertices()).
		Int64("runtime_ms", time.Since(start).Milliseconds()).
		Msg("Coarsening completed")
	return hierarchy, nil
}

// cluster runs one clustering pass. Every vertex ends up in a cluster
// named by its representative vertex; it returns the representative of
// each vertex and the number of clusters.
func (c *Coarsener) cluster(h *hypergraph.Hypergraph, cons Constraints, rng *rand.Rand) ([]int, int) {
	n := h.NumVertices()
	clusterOf := make([]int, n)
	weight := make([]int64, n)
	fixed := make([]int, n)
	for v := 0; v < n; v++ {
		clusterOf[v] = -1
		weight[v] = h.VertexWeight(v)
		fixed[v] = hypergraph.Unfixed
		if b, ok := h.FixedBlock(v); ok {
			fixed[v] = b
		}
	}

	score := make([]float64, n)
	var touched []int
	numClusters := 0
	for _, u := range rng.Perm(n) {
		if clusterOf[u] != -1 {
			continue
		}

		touched = touched[:0]
		for _, e := range h.IncidentEdges(u) {
			size := h.EdgeSize(e)
			if size < 2 || size > c.opts.MaxEdgeSize {
				continue
			}
			r := float64(h.EdgeWeight(e)) / float64(size-1)
			for _, v := range h.Pins(e) {
				if v == u {
					continue
				}
				target := v
				if clusterOf[v] != -1 {
					target = clusterOf[v]
				}
				if score[target] == 0 {
					touched = append(touched, target)
				}
				score[target] += r
			}
		}

		best, bestScore := -1, 0.0
		for _, t := range touched {
			s := c.opts.Rating.score(score[t], weight[u], weight[t])
			score[t] = 0
			if s <= 0 || !c.compatible(u, t, weight, fixed, cons) {
				continue
			}
			if s > bestScore || (s == bestScore && t < best) {
				best, bestScore = t, s
			}
		}

		if best == -1 {
			clusterOf[u] = u
			numClusters++
			continue
		}
		if clusterOf[best] == -1 {
			clusterOf[best] = best
			numClusters++
		}
		clusterOf[u] = best
		weight[best] += weight[u]
		if fixed[best] == hypergraph.Unfixed {
			fixed[best] = fixed[u]
		}
	}
	return clusterOf, numClusters
}

// compatible reports whether u may join the cluster represented by t.
func (c *Coarsener) compatible(u, t int, weight []int64, fixed []int, cons Constraints) bool {
	if c.opts.MaxNodeWeight > 0 && weight[u]+weight[t] > c.opts.MaxNodeWeight {
		return false
	}
	if cons.Communities != nil && cons.Communities[u] != cons.Communities[t] {
		return false
	}
	if cons.Blocks != nil && cons.Blocks[u] != cons.Blocks[t] {
		return false
	}
	if fixed[u] != hypergraph.Unfixed && fixed[t] != hypergraph.Unfixed && fixed[u] != fixed[t] {
		return false
	}
	return true
}
