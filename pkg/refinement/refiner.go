package refinement

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
)

const (
	DefaultMaxPasses         = 10
	DefaultMaxFruitlessMoves = 350
	DefaultParallelThreshold = 2048
	DefaultMaxEdgeSize       = 1000
)

// Options configures the refiners.
type Options struct {
	MaxPasses         int
	MaxFruitlessMoves int
	// TimeLimit bounds one Refine call. Zero means unbounded.
	TimeLimit time.Duration
	// Gain initialisation runs in parallel above this many candidates.
	ParallelThreshold int
	NumWorkers        int
	// Edges with more pins only update neighbour gains when a pin count
	// of the moved vertex's blocks crosses 0, 1 or 2.
	MaxEdgeSize int
}

// Validate applies defaults for unset values.
func (o *Options) Validate() {
	if o.MaxPasses <= 0 {
		o.MaxPasses = DefaultMaxPasses
	}
	if o.MaxFruitlessMoves <= 0 {
		o.MaxFruitlessMoves = DefaultMaxFruitlessMoves
	}
	if o.ParallelThreshold <= 0 {
		o.ParallelThreshold = DefaultParallelThreshold
	}
	if o.NumWorkers <= 0 {
		o.NumWorkers = runtime.NumCPU()
	}
	if o.MaxEdgeSize <= 0 {
		o.MaxEdgeSize = DefaultMaxEdgeSize
	}
}

// Stats summarises one Refine call.
type Stats struct {
	Passes           int   `json:"passes"`
	Moves            int   `json:"moves"`
	InitialObjective int64 `json:"initial_objective"`
	FinalObjective   int64 `json:"final_objective"`
	RuntimeMS        int64 `json:"runtime_ms"`
}

// Refiner improves a partition in place. It never moves fixed vertices and
// never makes a balanced state unbalanced.
type Refiner interface {
	Name() string
	Refine(ctx context.Context, s *State) (Stats, error)
}

// New returns the refiner registered under algorithm: "kway_fm",
// "label_propagation" or "none".
func New(algorithm string, opts Options, logger zerolog.Logger, tracker *MoveTracker) (Refiner, error) {
	opts.Validate()
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", "kway_fm", "fm":
		return &KWayFM{opts: opts, logger: logger, tracker: tracker}, nil
	case "label_propagation", "lp":
		return &LabelPropagation{opts: opts, logger: logger, tracker: tracker}, nil
	case "none":
		return noop{}, nil
	}
	return nil, fmt.Errorf("%w: unknown refinement algorithm %q", hypergraph.ErrInvalidInput, algorithm)
}

type noop struct{}

func (noop) Name() string { return "none" }

func (noop) Refine(_ context.Context, s *State) (Stats, error) {
	return Stats{InitialObjective: s.Objective(), FinalObjective: s.Objective()}, nil
}

func deadlineFor(limit time.Duration) time.Time {
	if limit <= 0 {
		return time.Time{}
	}
	return time.Now().Add(limit)
}

func expired(deadline time.Time) bool {
	return !deadline.IsZero() && time.Now().After(deadline)
}
