package refinement

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LabelPropagation repeatedly moves each boundary vertex to the adjacent
// block with the best positive gain that keeps the target within the
// bound. A zero-gain move is taken only when it lowers the heavier of the
// two blocks involved.
type LabelPropagation struct {
	opts    Options
	logger  zerolog.Logger
	tracker *MoveTracker
}

// Name implements Refiner.
func (lp *LabelPropagation) Name() string { return "label_propagation" }

// Refine implements Refiner.
func (lp *LabelPropagation) Refine(ctx context.Context, s *State) (Stats, error) {
	start := time.Now()
	deadline := deadlineFor(lp.opts.TimeLimit)
	stats := Stats{InitialObjective: s.Objective()}
	h := s.Hypergraph()
	var targets []int

	for round := 0; round < lp.opts.MaxPasses; round++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if expired(deadline) {
			break
		}

		moves := 0
		for v := 0; v < h.NumVertices(); v++ {
			if !s.Movable(v) || !s.IsBoundary(v) {
				continue
			}
			from := s.Block(v)
			w := h.VertexWeight(v)

			best, bestGain := -1, int64(0)
			targets = s.AdjacentBlocks(v, targets[:0])
			for _, b := range targets {
				if !s.Fits(v, b) {
					continue
				}
				g := s.Gain(v, b)
				switch {
				case g > bestGain:
					best, bestGain = b, g
				case g == 0 && bestGain == 0 && best == -1 && s.BlockWeight(b)+w < s.BlockWeight(from):
					best = b
				}
			}
			if best == -1 {
				continue
			}
			s.Move(v, best)
			lp.tracker.LogMove(lp.Name(), v, from, best, bestGain, s.Objective())
			moves++
		}

		stats.Passes++
		stats.Moves += moves
		lp.logger.Debug().
			Int("round", round).
			Int("moves", moves).
			Int64("objective", s.Objective()).
			Msg("Label propagation round finished")
		if moves == 0 {
			break
		}
	}

	stats.FinalObjective = s.Objective()
	stats.RuntimeMS = time.Since(start).Milliseconds()
	return stats, nil
}
