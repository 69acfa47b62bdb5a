package initial

import (
	"container/heap"
	"math/rand"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
)

// recursiveBisection splits the vertex set into halves of blocks
// [lo,mid) and [mid,hi) until every side holds a single block. Each split
// grows the left side from a seed until it reaches its share of the
// weight, proportional to the bounds of its blocks.
func recursiveBisection(h *hypergraph.Hypergraph, bounds []int64, rng *rand.Rand) []int {
	n := h.NumVertices()
	k := len(bounds)
	part, _ := placeFixed(h, k)
	b := &bisector{
		h:      h,
		part:   part,
		bounds: bounds,
		rng:    rng,
		side:   make([]int, n),
		score:  make([]float64, n),
		inSet:  make([]bool, n),
	}
	vertices := make([]int, n)
	for v := range vertices {
		vertices[v] = v
	}
	b.split(vertices, 0, k)
	return part
}

type bisector struct {
	h      *hypergraph.Hypergraph
	part   []int
	bounds []int64
	rng    *rand.Rand
	side   []int // -1 free, 0 left, 1 right
	score  []float64
	inSet  []bool
}

func (b *bisector) capacity(lo, hi int) int64 {
	var c int64
	for _, w := range b.bounds[lo:hi] {
		c += w
	}
	return c
}

func (b *bisector) split(vertices []int, lo, hi int) {
	if hi-lo == 1 {
		for _, v := range vertices {
			b.part[v] = lo
		}
		return
	}
	mid := (lo + hi) / 2
	left, right := b.bisect(vertices, lo, mid, hi)
	b.split(left, lo, mid)
	b.split(right, mid, hi)
}

func (b *bisector) bisect(vertices []int, lo, mid, hi int) ([]int, []int) {
	h := b.h
	var total int64
	for _, v := range vertices {
		total += h.VertexWeight(v)
		b.inSet[v] = true
		b.side[v] = -1
		b.score[v] = 0
	}
	defer func() {
		for _, v := range vertices {
			b.inSet[v] = false
		}
	}()

	capacity := b.capacity(lo, mid)
	target := total * int64(mid-lo) / int64(hi-lo)
	if all := b.capacity(lo, hi); all > 0 {
		target = int64(float64(total) * float64(capacity) / float64(all))
	}
	var q growQueue
	var leftWeight int64

	touch := func(v int) {
		for _, e := range h.IncidentEdges(v) {
			size := h.EdgeSize(e)
			if size < 2 {
				continue
			}
			r := float64(h.EdgeWeight(e)) / float64(size-1)
			for _, u := range h.Pins(e) {
				if !b.inSet[u] || b.side[u] != -1 {
					continue
				}
				b.score[u] += r
				heap.Push(&q, scoredVertex{vertex: u, score: b.score[u]})
			}
		}
	}

	hasLeft := false
	for _, v := range vertices {
		fb, ok := h.FixedBlock(v)
		if !ok {
			continue
		}
		if fb < mid {
			b.side[v] = 0
			leftWeight += h.VertexWeight(v)
			hasLeft = true
		} else {
			b.side[v] = 1
		}
	}
	for _, v := range vertices {
		if b.side[v] == 0 {
			touch(v)
		}
	}

	order := make([]int, len(vertices))
	for i, j := range b.rng.Perm(len(vertices)) {
		order[i] = vertices[j]
	}
	cursor := 0
	next := func() int {
		for q.Len() > 0 {
			top := heap.Pop(&q).(scoredVertex)
			if b.side[top.vertex] == -1 && top.score == b.score[top.vertex] {
				return top.vertex
			}
		}
		for ; cursor < len(order); cursor++ {
			if v := order[cursor]; b.side[v] == -1 {
				return v
			}
		}
		return -1
	}

	for !hasLeft || leftWeight < target {
		v := next()
		if v == -1 {
			break
		}
		w := h.VertexWeight(v)
		if hasLeft && leftWeight+w > capacity {
			b.side[v] = 1
			continue
		}
		b.side[v] = 0
		leftWeight += w
		hasLeft = true
		touch(v)
	}

	var left, right []int
	for _, v := range vertices {
		if b.side[v] == 0 {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}
	return left, right
}
