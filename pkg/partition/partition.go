package partition

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/coarsening"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/community"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/initial"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/refinement"
)

// engine holds everything one partition call shares between its phases.
type engine struct {
	cfg      *Context
	logger   zerolog.Logger
	runID    string
	obj      metrics.Objective
	epsilon  float64
	bounds   []int64
	refiner  refinement.Refiner
	// polisher refines initial candidates; most are discarded, so it does
	// not write to the move log.
	polisher refinement.Refiner
	tracker  *refinement.MoveTracker
}

// Partition computes a k-way partition of h whose blocks weigh at most
// floor((1+epsilon) * ceil(W/k)). When no balanced partition is found the
// populated result is returned together with ErrBalanceViolated.
func Partition(ctx context.Context, h *hypergraph.Hypergraph, k int, epsilon float64, cfg *Context) (*Result, error) {
	if err := validate(h, k, epsilon, cfg); err != nil {
		return nil, err
	}
	e, err := newEngine(h, k, epsilon, cfg)
	if err != nil {
		return nil, err
	}
	defer e.close()

	start := time.Now()
	runCtx, cancel := e.budget(ctx)
	defer cancel()

	e.logger.Info().
		Int("vertices", h.NumVertices()).
		Int("edges", h.NumEdges()).
		Int("pins", h.NumPins()).
		Int("k", k).
		Float64("epsilon", epsilon).
		Str("mode", cfg.Mode()).
		Str("objective", e.obj.String()).
		Msg("Starting partitioning")

	var (
		part        []int
		levels      []LevelStats
		communities int
	)
	if cfg.Mode() == ModeRecursiveBisection {
		part, levels, err = e.recursiveBisection(ctx, runCtx, h)
	} else {
		var cons coarsening.Constraints
		cons, communities, err = e.constraints(ctx, runCtx, h, nil)
		if err == nil {
			part, levels, err = e.multilevel(ctx, runCtx, h, cons, nil, cfg.Seed())
		}
	}
	if err != nil {
		return nil, err
	}
	return e.finish(h, part, levels, communities, 0, start)
}

// PartitionRaw builds a hypergraph from CSR arrays, partitions it and
// releases it. Nil weight slices mean unit weights.
func PartitionRaw(ctx context.Context, numVertices, numEdges int, epsilon float64, k int,
	vertexWeights, edgeWeights []int64, offsets, pins []int, cfg *Context) (*Result, error) {
	if len(offsets) != numEdges+1 {
		return nil, fmt.Errorf("%w: %d offsets for %d edges", ErrInvalidInput, len(offsets), numEdges)
	}
	opts := []hypergraph.Option{}
	if vertexWeights != nil {
		opts = append(opts, hypergraph.WithVertexWeights(vertexWeights))
	}
	if edgeWeights != nil {
		opts = append(opts, hypergraph.WithEdgeWeights(edgeWeights))
	}
	h, err := hypergraph.New(numVertices, offsets, pins, opts...)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	return Partition(ctx, h, k, epsilon, cfg)
}

// validate rejects a request before any work is done.
func validate(h *hypergraph.Hypergraph, k int, epsilon float64, cfg *Context) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := h.CheckUsable(); err != nil {
		return err
	}
	if k < 2 {
		return fmt.Errorf("%w: k = %d, want >= 2", ErrInvalidInput, k)
	}
	if math.IsNaN(epsilon) || math.IsInf(epsilon, 0) || epsilon < 0 {
		return fmt.Errorf("%w: epsilon = %v, want a finite value >= 0", ErrInvalidInput, epsilon)
	}
	if b := h.Blocks(); b != 0 && b != k {
		return fmt.Errorf("%w: hypergraph declared for %d blocks, got k = %d", ErrInvalidInput, b, k)
	}
	if h.MaxFixedBlock() >= k {
		return fmt.Errorf("%w: vertex fixed to block %d, only %d blocks", ErrInvalidInput, h.MaxFixedBlock(), k)
	}
	if _, err := metrics.ObjectiveBound(h, k); err != nil {
		return err
	}
	return nil
}

func newEngine(h *hypergraph.Hypergraph, k int, epsilon float64, cfg *Context) (*engine, error) {
	obj, err := cfg.Objective()
	if err != nil {
		return nil, err
	}
	runID := uuid.New().String()
	logger := cfg.CreateLogger().With().Str("run_id", runID).Logger()

	var tracker *refinement.MoveTracker
	if cfg.EnableMoveTracking() {
		tracker, err = refinement.OpenMoveTracker(cfg.TrackingOutputFile())
		if err != nil {
			return nil, fmt.Errorf("opening move log: %w", err)
		}
	}
	refiner, err := refinement.New(cfg.RefinementAlgorithm(), cfg.RefinementOptions(), logger, tracker)
	if err != nil {
		tracker.Close()
		return nil, err
	}
	polisher := refiner
	if tracker != nil {
		polisher, _ = refinement.New(cfg.RefinementAlgorithm(), cfg.RefinementOptions(), logger, nil)
	}

	maxBlockWeight := metrics.MaxBlockWeight(h.TotalVertexWeight(), k, epsilon)
	return &engine{
		cfg:      cfg,
		logger:   logger,
		runID:    runID,
		obj:      obj,
		epsilon:  epsilon,
		bounds:   refinement.UniformBounds(k, maxBlockWeight),
		refiner:  refiner,
		polisher: polisher,
		tracker:  tracker,
	}, nil
}

func (e *engine) close() {
	if err := e.tracker.Close(); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to close move log")
	}
}

// withBounds returns a copy of e that partitions into len(bounds) blocks.
func (e *engine) withBounds(bounds []int64) *engine {
	c := *e
	c.bounds = bounds
	return &c
}

func (e *engine) k() int { return len(e.bounds) }

func (e *engine) minBound() int64 {
	m := e.bounds[0]
	for _, b := range e.bounds[1:] {
		if b < m {
			m = b
		}
	}
	return m
}

// budget derives the context that partition.time_limit applies to.
func (e *engine) budget(ctx context.Context) (context.Context, context.CancelFunc) {
	if limit := e.cfg.TimeLimit(); limit > 0 {
		return context.WithTimeout(ctx, limit)
	}
	return context.WithCancel(ctx)
}

// budgetError turns an expired time budget into ErrResourceExhausted and
// reports cancellation of the caller's context as is.
func budgetError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: time limit reached: %w", ErrResourceExhausted, err)
	}
	return err
}

// constraints computes the coarsening restrictions: blocks (may be nil)
// and, when enabled, communities. The number of communities is returned.
func (e *engine) constraints(ctx, runCtx context.Context, h *hypergraph.Hypergraph, blocks []int) (coarsening.Constraints, int, error) {
	cons := coarsening.Constraints{Blocks: blocks}
	if !e.cfg.UseCommunities() {
		return cons, 0, nil
	}
	detector, err := community.NewDetector(e.cfg.CommunityDetector(), e.cfg.CommunityOptions(), e.logger)
	if err != nil {
		return cons, 0, err
	}
	comms, err := detector.Detect(runCtx, h)
	if err != nil {
		return cons, 0, budgetError(ctx, err)
	}
	cons.Communities = comms
	return cons, community.Count(comms), nil
}

// multilevel coarsens h, partitions the coarsest level (or restricts
// start to it) and refines while projecting back. The returned level
// statistics run from the coarsest level to the input.
func (e *engine) multilevel(ctx, runCtx context.Context, h *hypergraph.Hypergraph, cons coarsening.Constraints, start []int, seed int64) ([]int, []LevelStats, error) {
	opts := e.cfg.CoarseningOptions(e.k(), h.TotalVertexWeight(), e.minBound())
	opts.Seed = seed
	hierarchy, err := coarsening.New(opts, e.logger).Coarsen(runCtx, h, cons)
	if err != nil {
		return nil, nil, budgetError(ctx, err)
	}

	var part []int
	if start == nil {
		iopts := e.cfg.InitialOptions()
		iopts.Seed = seed
		res, err := initial.New(iopts, e.polisher, e.logger).PartitionWithBounds(runCtx, hierarchy.Coarsest(), e.obj, e.bounds)
		if err != nil {
			return nil, nil, budgetError(ctx, err)
		}
		part = res.Part
	} else {
		part = hierarchy.RestrictToCoarsest(start)
	}

	levels := make([]LevelStats, 0, hierarchy.Depth()+1)
	for depth := hierarchy.Depth(); depth >= 0; depth-- {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		levelStart := time.Now()
		if depth < hierarchy.Depth() {
			part = hierarchy.Levels[depth].Project(part)
		}
		hg := hierarchy.At(depth)
		s, err := refinement.NewStateWithBounds(hg, part, e.obj, e.bounds)
		if err != nil {
			return nil, nil, err
		}
		e.tracker.SetLevel(depth)
		moves, err := e.refine(ctx, runCtx, s)
		if err != nil {
			return nil, nil, err
		}
		part = s.Part()
		levels = append(levels, e.levelStats(depth, s, moves, levelStart))
	}
	return part, levels, nil
}

// refine rebalances s if needed and runs the refiner. Once the time
// budget is spent refinement is skipped; rebalancing still runs.
func (e *engine) refine(ctx, runCtx context.Context, s *refinement.State) (int, error) {
	if !s.IsBalanced() {
		if _, err := refinement.Rebalance(ctx, s, e.tracker); err != nil {
			return 0, err
		}
	}
	if runCtx.Err() != nil {
		return 0, ctx.Err()
	}
	stats, err := e.refiner.Refine(runCtx, s)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		e.logger.Debug().Err(err).Msg("Refinement stopped by the time limit")
	}
	return stats.Moves, nil
}

func (e *engine) levelStats(depth int, s *refinement.State, moves int, start time.Time) LevelStats {
	hg := s.Hypergraph()
	stat := LevelStats{
		Level:     depth,
		Vertices:  hg.NumVertices(),
		Edges:     hg.NumEdges(),
		Pins:      hg.NumPins(),
		Objective: s.Objective(),
		Imbalance: metrics.Imbalance(s.BlockWeights(), hg.TotalVertexWeight()),
		Moves:     moves,
		RuntimeMS: time.Since(start).Milliseconds(),
	}
	if e.cfg.EnableProgress() {
		e.logger.Info().
			Int("level", stat.Level).
			Int("vertices", stat.Vertices).
			Int("edges", stat.Edges).
			Int64("objective", stat.Objective).
			Float64("imbalance", stat.Imbalance).
			Int("moves", stat.Moves).
			Int64("runtime_ms", stat.RuntimeMS).
			Msg("Level refined")
	}
	return stat
}

// finish evaluates the final partition of h and builds the result.
func (e *engine) finish(h *hypergraph.Hypergraph, part []int, levels []LevelStats, communities, cycles int, start time.Time) (*Result, error) {
	report, err := metrics.Evaluate(h, part, e.k(), e.epsilon, e.obj)
	if err != nil {
		return nil, err
	}
	res := &Result{
		RunID:           e.runID,
		Mode:            e.cfg.Mode(),
		ObjectiveName:   e.obj.String(),
		Objective:       report.Value,
		Partition:       part,
		BlockWeights:    report.BlockWeights,
		MaxBlockWeight:  report.MaxBlockWeight,
		Imbalance:       report.Imbalance,
		BalanceViolated: !report.Balanced,
		Communities:     communities,
		Cycles:          cycles,
		Levels:          levels,
		RuntimeMS:       time.Since(start).Milliseconds(),
	}

	e.logger.Info().
		Int64("objective", res.Objective).
		Float64("imbalance", res.Imbalance).
		Bool("balance_violated", res.BalanceViolated).
		Int("levels", len(levels)).
		Int64("runtime_ms", res.RuntimeMS).
		Msg("Partitioning completed")

	if res.BalanceViolated {
		return res, fmt.Errorf("%w: heaviest block exceeds %d", ErrBalanceViolated, res.MaxBlockWeight)
	}
	return res, nil
}
