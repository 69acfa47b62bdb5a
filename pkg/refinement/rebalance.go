package refinement

import (
	"context"
	"math"
)

// Rebalance moves vertices out of overloaded blocks until every block is
// within the bound. Each step takes the free vertex of an overloaded block
// whose move to the block with the most room that can hold it has the best gain
// (ties: lowest vertex id). It reports whether the state ended balanced.
func Rebalance(ctx context.Context, s *State, tracker *MoveTracker) (bool, error) {
	h := s.Hypergraph()
	for steps := 0; !s.IsBalanced(); steps++ {
		if steps%256 == 0 {
			if err := ctx.Err(); err != nil {
				return false, err
			}
		}

		bestVertex, bestTarget := -1, -1
		bestGain := int64(math.MinInt64)
		for v := 0; v < h.NumVertices(); v++ {
			from := s.Block(v)
			if !s.Overloaded(from) || !s.Movable(v) || h.VertexWeight(v) == 0 {
				continue
			}
			target := roomiestFitting(s, v)
			if target == -1 {
				continue
			}
			if g := s.Gain(v, target); g > bestGain {
				bestVertex, bestTarget, bestGain = v, target, g
			}
		}
		if bestVertex == -1 {
			return false, nil
		}
		from := s.Block(bestVertex)
		s.Move(bestVertex, bestTarget)
		tracker.LogMove("rebalance", bestVertex, from, bestTarget, bestGain, s.Objective())
	}
	return true, nil
}

// roomiestFitting returns the block other than v's own with the most
// room left that can take v, or -1.
func roomiestFitting(s *State, v int) int {
	best := -1
	for b := 0; b < s.K(); b++ {
		if b == s.Block(v) || !s.Fits(v, b) {
			continue
		}
		if best == -1 || s.Bound(b)-s.BlockWeight(b) > s.Bound(best)-s.BlockWeight(best) {
			best = b
		}
	}
	return best
}
