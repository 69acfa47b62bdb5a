// Package initial computes a k-way partition of the coarsest hypergraph.
// Several algorithms are run from independent seeds on a bounded pool of
// goroutines and the best candidate is kept.
package initial

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/refinement"
)

// Algorithm selects how a candidate is built.
type Algorithm int

const (
	Pool Algorithm = iota
	GreedyGrowing
	RecursiveBisection
	Random
)

func (a Algorithm) String() string {
	switch a {
	case Pool:
		return "pool"
	case GreedyGrowing:
		return "greedy_growing"
	case RecursiveBisection:
		return "recursive_bisection"
	case Random:
		return "random"
	default:
		return fmt.Sprintf("algorithm(%d)", int(a))
	}
}

// ParseAlgorithm maps a configuration name to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pool", "":
		return Pool, nil
	case "greedy_growing", "greedy":
		return GreedyGrowing, nil
	case "recursive_bisection":
		return RecursiveBisection, nil
	case "random":
		return Random, nil
	}
	return 0, fmt.Errorf("%w: unknown initial partitioning algorithm %q", hypergraph.ErrInvalidInput, name)
}

// pool lists the algorithms Pool cycles through.
var pool = []Algorithm{GreedyGrowing, RecursiveBisection, Random}

const DefaultRestarts = 20

// Options configures initial partitioning.
type Options struct {
	Algorithm  Algorithm
	Restarts   int
	NumWorkers int
	// Refine polishes every candidate with the refiner.
	Refine bool
	Seed   int64
}

// Validate applies defaults for unset values.
func (o *Options) Validate() {
	if o.Restarts <= 0 {
		o.Restarts = DefaultRestarts
	}
	if o.NumWorkers <= 0 {
		o.NumWorkers = runtime.NumCPU()
	}
}

// Result is the selected candidate.
type Result struct {
	Part            []int
	Objective       int64
	Imbalance       float64
	Overload        int64
	BalanceViolated bool
	Algorithm       string
	Run             int
}

// better orders candidates: feasible before infeasible; among feasible
// ones lower objective, then lower imbalance; among infeasible ones lower
// overload, then lower objective. The run index breaks ties.
func (r *Result) better(o *Result) bool {
	if r.BalanceViolated != o.BalanceViolated {
		return !r.BalanceViolated
	}
	if r.BalanceViolated && r.Overload != o.Overload {
		return r.Overload < o.Overload
	}
	if r.Objective != o.Objective {
		return r.Objective < o.Objective
	}
	if r.Imbalance != o.Imbalance {
		return r.Imbalance < o.Imbalance
	}
	return r.Run < o.Run
}

// Partitioner runs the restarts.
type Partitioner struct {
	opts    Options
	refiner refinement.Refiner
	logger  zerolog.Logger
}

// New creates a partitioner. refiner may be nil.
func New(opts Options, refiner refinement.Refiner, logger zerolog.Logger) *Partitioner {
	opts.Validate()
	return &Partitioner{opts: opts, refiner: refiner, logger: logger}
}

// Partition returns the best of Restarts candidates. Fixed vertices of h
// are always placed in their blocks.
func (p *Partitioner) Partition(ctx context.Context, h *hypergraph.Hypergraph, k int, obj metrics.Objective, maxBlockWeight int64) (*Result, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: k = %d, want >= 2", hypergraph.ErrInvalidInput, k)
	}
	return p.PartitionWithBounds(ctx, h, obj, refinement.UniformBounds(k, maxBlockWeight))
}

// PartitionWithBounds is Partition with a separate weight bound for every
// block; k is len(bounds).
func (p *Partitioner) PartitionWithBounds(ctx context.Context, h *hypergraph.Hypergraph, obj metrics.Objective, bounds []int64) (*Result, error) {
	if err := h.CheckUsable(); err != nil {
		return nil, err
	}
	k := len(bounds)
	if k < 2 {
		return nil, fmt.Errorf("%w: k = %d, want >= 2", hypergraph.ErrInvalidInput, k)
	}
	if h.MaxFixedBlock() >= k {
		return nil, fmt.Errorf("%w: vertex fixed to block %d, only %d blocks",
			hypergraph.ErrInvalidInput, h.MaxFixedBlock(), k)
	}

	start := time.Now()
	components := h.ConnectedComponents()
	candidates := make([]*Result, p.opts.Restarts)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.NumWorkers)
	for run := 0; run < p.opts.Restarts; run++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := p.candidate(gctx, h, obj, bounds, run, components)
			if err != nil {
				return fmt.Errorf("initial run %d: %w", run, err)
			}
			candidates[run] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.better(best) {
			best = c
		}
	}

	p.logger.Info().
		Int("vertices", h.NumVertices()).
		Int("k", k).
		Int("restarts", p.opts.Restarts).
		Str("algorithm", best.Algorithm).
		Int("run", best.Run).
		Int64("objective", best.Objective).
		Float64("imbalance", best.Imbalance).
		Bool("balance_violated", best.BalanceViolated).
		Int64("runtime_ms", time.Since(start).Milliseconds()).
		Msg("Initial partitioning completed")
	return best, nil
}

// candidate builds, rebalances and optionally refines one partition. Each
// run owns its RNG.
func (p *Partitioner) candidate(ctx context.Context, h *hypergraph.Hypergraph, obj metrics.Objective, bounds []int64, run int, components [][]int) (*Result, error) {
	rng := rand.New(rand.NewSource(p.opts.Seed + int64(run)))
	algo := p.opts.Algorithm
	if algo == Pool {
		algo = pool[run%len(pool)]
	}

	var part []int
	switch algo {
	case GreedyGrowing:
		part = greedyGrowing(h, bounds, rng, components)
	case RecursiveBisection:
		part = recursiveBisection(h, bounds, rng)
	default:
		part = randomPartition(h, bounds, rng)
	}

	s, err := refinement.NewStateWithBounds(h, part, obj, bounds)
	if err != nil {
		return nil, err
	}
	if !s.IsBalanced() {
		if _, err := refinement.Rebalance(ctx, s, nil); err != nil {
			return nil, err
		}
	}
	if p.opts.Refine && p.refiner != nil {
		if _, err := p.refiner.Refine(ctx, s); err != nil {
			return nil, err
		}
	}

	blockWeights := s.BlockWeights()
	return &Result{
		Part:            s.Part(),
		Objective:       s.Objective(),
		Imbalance:       metrics.Imbalance(blockWeights, h.TotalVertexWeight()),
		Overload:        s.Overload(),
		BalanceViolated: !s.IsBalanced(),
		Algorithm:       algo.String(),
		Run:             run,
	}, nil
}

// placeFixed assigns fixed vertices and returns the partial partition
// (-1 for free vertices) with its block weights.
func placeFixed(h *hypergraph.Hypergraph, k int) ([]int, []int64) {
	part := make([]int, h.NumVertices())
	weights := make([]int64, k)
	for v := range part {
		part[v] = -1
		if b, ok := h.FixedBlock(v); ok {
			part[v] = b
			weights[b] += h.VertexWeight(v)
		}
	}
	return part, weights
}

// roomiest returns the block with the most room left, preferring blocks
// a vertex of weight w fits into.
func roomiest(weights []int64, w int64, bounds []int64) int {
	best, bestFit := -1, -1
	for b, bw := range weights {
		room := bounds[b] - bw
		if best == -1 || room > bounds[best]-weights[best] {
			best = b
		}
		if w <= room && (bestFit == -1 || room > bounds[bestFit]-weights[bestFit]) {
			bestFit = b
		}
	}
	if bestFit != -1 {
		return bestFit
	}
	return best
}
