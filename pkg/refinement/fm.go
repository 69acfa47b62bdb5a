package refinement

import (
	"container/heap"
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// KWayFM is k-way Fiduccia-Mattheyses local search. Each pass moves
// vertices greedily by gain, locking every moved vertex, and finally
// rolls back to the best prefix of the move sequence.
type KWayFM struct {
	opts    Options
	logger  zerolog.Logger
	tracker *MoveTracker
}

// NewKWayFM creates the refiner.
func NewKWayFM(opts Options, logger zerolog.Logger, tracker *MoveTracker) *KWayFM {
	opts.Validate()
	return &KWayFM{opts: opts, logger: logger, tracker: tracker}
}

// Name implements Refiner.
func (f *KWayFM) Name() string { return "kway_fm" }

// quality orders states: less overload first, then lower objective.
type quality struct {
	overload  int64
	objective int64
}

func (q quality) better(o quality) bool {
	if q.overload != o.overload {
		return q.overload < o.overload
	}
	return q.objective < o.objective
}

func qualityOf(s *State) quality {
	return quality{overload: s.Overload(), objective: s.Objective()}
}

type appliedMove struct {
	vertex, from, to int
	gain, objective  int64
}

// Refine implements Refiner.
func (f *KWayFM) Refine(ctx context.Context, s *State) (Stats, error) {
	start := time.Now()
	deadline := deadlineFor(f.opts.TimeLimit)
	stats := Stats{InitialObjective: s.Objective()}

	for pass := 0; pass < f.opts.MaxPasses; pass++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if expired(deadline) {
			f.logger.Debug().Int("pass", pass).Msg("Refinement time limit reached")
			break
		}

		before := qualityOf(s)
		kept, err := f.pass(ctx, s, deadline)
		if err != nil {
			return stats, err
		}
		stats.Passes++
		stats.Moves += kept

		f.logger.Debug().
			Int("pass", pass).
			Int("moves", kept).
			Int64("objective", s.Objective()).
			Int64("overload", s.Overload()).
			Msg("FM pass finished")
		if !qualityOf(s).better(before) {
			break
		}
	}

	stats.FinalObjective = s.Objective()
	stats.RuntimeMS = time.Since(start).Milliseconds()
	return stats, nil
}

// pass runs one FM pass and returns the number of moves kept after
// rollback.
func (f *KWayFM) pass(ctx context.Context, s *State, deadline time.Time) (int, error) {
	initial, err := f.initialCandidates(ctx, s)
	if err != nil {
		return 0, err
	}
	q := moveQueue(initial)
	heap.Init(&q)

	h := s.Hypergraph()
	locked := make([]bool, h.NumVertices())
	var moves []appliedMove
	best := qualityOf(s)
	bestPrefix := 0
	fruitless := 0
	var targets []int

	for q.Len() > 0 && fruitless < f.opts.MaxFruitlessMoves {
		if len(moves)%64 == 63 && expired(deadline) {
			break
		}
		c := q.pop()
		v := c.vertex
		if locked[v] || s.Block(v) == c.block {
			continue
		}
		if g := s.Gain(v, c.block); g != c.gain {
			c.gain = g
			q.push(c)
			continue
		}
		if !s.Fits(v, c.block) {
			continue
		}

		from := s.Block(v)
		s.Move(v, c.block)
		locked[v] = true
		moves = append(moves, appliedMove{vertex: v, from: from, to: c.block, gain: c.gain, objective: s.Objective()})

		if cur := qualityOf(s); cur.better(best) {
			best = cur
			bestPrefix = len(moves)
			fruitless = 0
		} else {
			fruitless++
		}

		for _, e := range h.IncidentEdges(v) {
			if !f.affectsNeighbours(s, e, from, c.block) {
				continue
			}
			for _, u := range h.Pins(e) {
				if locked[u] || !s.Movable(u) {
					continue
				}
				targets = s.AdjacentBlocks(u, targets[:0])
				for _, b := range targets {
					q.push(candidate{vertex: u, block: b, gain: s.Gain(u, b)})
				}
			}
		}
	}

	for i := len(moves) - 1; i >= bestPrefix; i-- {
		s.Move(moves[i].vertex, moves[i].from)
	}
	// Only the kept prefix is logged, so replaying the log reproduces the
	// refined partition.
	for _, m := range moves[:bestPrefix] {
		f.tracker.LogMove(f.Name(), m.vertex, m.from, m.to, m.gain, m.objective)
	}
	return bestPrefix, nil
}

// affectsNeighbours reports whether moving a pin of e from one block to
// another can change the gains of e's other pins. Small edges are always
// revisited; a large edge only when a pin count crosses 0, 1 or 2.
func (f *KWayFM) affectsNeighbours(s *State, e, from, to int) bool {
	if s.Hypergraph().EdgeSize(e) <= f.opts.MaxEdgeSize {
		return true
	}
	return s.PinCount(e, from) <= 1 || s.PinCount(e, to) <= 2
}

// initialCandidates computes the moves of every boundary vertex to each
// adjacent block, plus moves out of overloaded blocks when the state is
// unbalanced. Large candidate sets are scored in parallel; the result
// order does not depend on scheduling.
func (f *KWayFM) initialCandidates(ctx context.Context, s *State) ([]candidate, error) {
	h := s.Hypergraph()
	balanced := s.IsBalanced()
	var vertices []int
	for v := 0; v < h.NumVertices(); v++ {
		if !s.Movable(v) {
			continue
		}
		if s.IsBoundary(v) || (!balanced && s.Overloaded(s.Block(v))) {
			vertices = append(vertices, v)
		}
	}

	score := func(vs []int) []candidate {
		var targets []int
		var cands []candidate
		for _, v := range vs {
			targets = targets[:0]
			if s.IsBoundary(v) {
				targets = s.AdjacentBlocks(v, targets)
			} else {
				for b := 0; b < s.K(); b++ {
					if b != s.Block(v) {
						targets = append(targets, b)
					}
				}
			}
			for _, b := range targets {
				cands = append(cands, candidate{vertex: v, block: b, gain: s.Gain(v, b)})
			}
		}
		return cands
	}

	if len(vertices) <= f.opts.ParallelThreshold || f.opts.NumWorkers <= 1 {
		return score(vertices), nil
	}

	chunks := f.opts.NumWorkers
	size := (len(vertices) + chunks - 1) / chunks
	results := make([][]candidate, chunks)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.NumWorkers)
	for i := 0; i < chunks; i++ {
		lo := i * size
		if lo >= len(vertices) {
			break
		}
		hi := min(lo+size, len(vertices))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = score(vertices[lo:hi])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []candidate
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}
