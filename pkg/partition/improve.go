package partition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/refinement"
)

// ImprovePartition runs up to iterations V-cycles starting from previous.
// Every cycle only contracts vertices of the same block, so the coarsest
// level inherits the objective of the current partition, which is then
// refined while uncoarsening. The best partition seen is returned; it is
// never worse than previous when previous is balanced. previous is not
// modified.
func ImprovePartition(ctx context.Context, h *hypergraph.Hypergraph, k int, epsilon float64, cfg *Context,
	previous []int, iterations int) (*Result, error) {
	if err := validate(h, k, epsilon, cfg); err != nil {
		return nil, err
	}
	if iterations < 1 {
		return nil, fmt.Errorf("%w: iterations = %d, want >= 1", ErrInvalidInput, iterations)
	}
	e, err := newEngine(h, k, epsilon, cfg)
	if err != nil {
		return nil, err
	}
	defer e.close()

	// Also checks length, block range and fixed vertices of previous.
	prev, err := refinement.NewStateWithBounds(h, previous, e.obj, e.bounds)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	runCtx, cancel := e.budget(ctx)
	defer cancel()

	e.logger.Info().
		Int("vertices", h.NumVertices()).
		Int("k", k).
		Int("iterations", iterations).
		Int64("objective", prev.Objective()).
		Int64("overload", prev.Overload()).
		Msg("Starting V-cycles")

	best, bestOverload, bestObjective := prev.Part(), prev.Overload(), prev.Objective()
	var bestLevels []LevelStats
	cons, communities, err := e.constraints(ctx, runCtx, h, nil)
	switch {
	case errors.Is(err, ErrResourceExhausted):
		iterations = 0
	case err != nil:
		return nil, err
	}

	cycles := 0
	for cycle := 0; cycle < iterations; cycle++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if runCtx.Err() != nil {
			break
		}
		cons.Blocks = best
		part, levels, err := e.multilevel(ctx, runCtx, h, cons, best, cfg.Seed()+int64(cycle))
		if errors.Is(err, ErrResourceExhausted) {
			break
		}
		if err != nil {
			return nil, err
		}
		cycles++

		overload := metrics.Overload(metrics.BlockWeights(h, part, k), e.bounds[0])
		objective := metrics.Value(h, part, k, e.obj)
		e.logger.Debug().
			Int("cycle", cycle).
			Int64("objective", objective).
			Int64("overload", overload).
			Msg("V-cycle finished")
		if overload < bestOverload || (overload == bestOverload && objective < bestObjective) {
			best, bestOverload, bestObjective, bestLevels = part, overload, objective, levels
		}
	}
	return e.finish(h, best, bestLevels, communities, cycles, start)
}
