package partition

import (
	"context"
	"math"
	"time"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/refinement"
)

// recursiveBisection splits h into blocks [0,k) by repeated multilevel
// 2-way runs on extracted sub-hypergraphs, then refines the assembled
// k-way partition once against the real bound.
func (e *engine) recursiveBisection(ctx, runCtx context.Context, h *hypergraph.Hypergraph) ([]int, []LevelStats, error) {
	k := e.k()
	depth := math.Ceil(math.Log2(float64(k)))
	subEpsilon := math.Pow(1+e.epsilon, 1/depth) - 1

	part := make([]int, h.NumVertices())
	vertices := make([]int, h.NumVertices())
	for v := range vertices {
		vertices[v] = v
	}
	b := &bisection{e: e, epsilon: subEpsilon, part: part}
	if err := b.split(ctx, runCtx, h, vertices, 0, k); err != nil {
		return nil, nil, err
	}

	levelStart := time.Now()
	s, err := refinement.NewStateWithBounds(h, part, e.obj, e.bounds)
	if err != nil {
		return nil, nil, err
	}
	e.tracker.SetLevel(0)
	moves, err := e.refine(ctx, runCtx, s)
	if err != nil {
		return nil, nil, err
	}
	return s.Part(), []LevelStats{e.levelStats(0, s, moves, levelStart)}, nil
}

type bisection struct {
	e       *engine
	epsilon float64
	part    []int
	calls   int
}

// split assigns vertices of h to blocks [lo,hi).
func (b *bisection) split(ctx, runCtx context.Context, h *hypergraph.Hypergraph, vertices []int, lo, hi int) error {
	if hi-lo == 1 {
		for _, v := range vertices {
			b.part[v] = lo
		}
		return nil
	}
	if len(vertices) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	mid := (lo + hi) / 2

	sub, toParent, err := h.Extract(vertices)
	if err != nil {
		return err
	}
	defer sub.Close()
	if h.HasFixedVertices() {
		fixed := make([]int, len(toParent))
		for i, v := range toParent {
			fixed[i] = hypergraph.Unfixed
			if fb, ok := h.FixedBlock(v); ok {
				fixed[i] = 0
				if fb >= mid {
					fixed[i] = 1
				}
			}
		}
		if err := sub.SetFixedVertices(fixed); err != nil {
			return err
		}
	}

	total := sub.TotalVertexWeight()
	bounds := []int64{
		sideBound(total, mid-lo, hi-lo, b.epsilon),
		sideBound(total, hi-mid, hi-lo, b.epsilon),
	}
	two := b.e.withBounds(bounds)
	cons, _, err := two.constraints(ctx, runCtx, sub, nil)
	if err != nil {
		return err
	}
	seed := b.e.cfg.Seed() + int64(b.calls)
	b.calls++
	subPart, _, err := two.multilevel(ctx, runCtx, sub, cons, nil, seed)
	if err != nil {
		return err
	}

	var left, right []int
	for i, side := range subPart {
		if side == 0 {
			left = append(left, toParent[i])
		} else {
			right = append(right, toParent[i])
		}
	}
	b.e.logger.Debug().
		Int("lo", lo).
		Int("hi", hi).
		Int("left", len(left)).
		Int("right", len(right)).
		Msg("Bisection finished")

	if err := b.split(ctx, runCtx, h, left, lo, mid); err != nil {
		return err
	}
	return b.split(ctx, runCtx, h, right, mid, hi)
}

// sideBound is the weight bound of a side holding blocks out of all
// blocks of a bisection: floor((1+eps) * ceil(total*blocks/all)).
func sideBound(total int64, blocks, all int, epsilon float64) int64 {
	share := int64(math.Ceil(float64(total) * float64(blocks) / float64(all)))
	return int64(math.Floor((1 + epsilon) * float64(share)))
}
