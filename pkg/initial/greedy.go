package initial

import (
	"container/heap"
	"math/rand"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
)

type scoredVertex struct {
	vertex int
	score  float64
}

// growQueue pops the highest score first, ties to the lowest vertex.
type growQueue []scoredVertex

func (q growQueue) Len() int { return len(q) }
func (q growQueue) Less(i, j int) bool {
	if q[i].score != q[j].score {
		return q[i].score > q[j].score
	}
	return q[i].vertex < q[j].vertex
}
func (q growQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *growQueue) Push(x any)   { *q = append(*q, x.(scoredVertex)) }
func (q *growQueue) Pop() any {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}

// grower grows blocks along incident edges: a free vertex's score for a
// block is the sum of w(e)/(|e|-1) over its edges that already have a pin
// in the block.
type grower struct {
	h      *hypergraph.Hypergraph
	k      int
	part   []int
	score  []float64 // score[v*k+b]
	queues []growQueue
	// order is the fallback visiting order when a block has no frontier.
	order  []int
	cursor int
}

func newGrower(h *hypergraph.Hypergraph, k int, part []int, order []int) *grower {
	return &grower{
		h:      h,
		k:      k,
		part:   part,
		score:  make([]float64, h.NumVertices()*k),
		queues: make([]growQueue, k),
		order:  order,
	}
}

// touch credits the free neighbours of v, which sits in block b.
func (g *grower) touch(v, b int) {
	for _, e := range g.h.IncidentEdges(v) {
		size := g.h.EdgeSize(e)
		if size < 2 {
			continue
		}
		r := float64(g.h.EdgeWeight(e)) / float64(size-1)
		for _, u := range g.h.Pins(e) {
			if g.part[u] != -1 {
				continue
			}
			g.score[u*g.k+b] += r
			heap.Push(&g.queues[b], scoredVertex{vertex: u, score: g.score[u*g.k+b]})
		}
	}
}

// popBest returns the free vertex with the highest score for b, or -1.
func (g *grower) popBest(b int) int {
	for g.queues[b].Len() > 0 {
		top := heap.Pop(&g.queues[b]).(scoredVertex)
		if g.part[top.vertex] != -1 || top.score != g.score[top.vertex*g.k+b] {
			continue
		}
		return top.vertex
	}
	return -1
}

// nextFree returns the next free vertex of the fallback order, or -1.
func (g *grower) nextFree() int {
	for ; g.cursor < len(g.order); g.cursor++ {
		if v := g.order[g.cursor]; g.part[v] == -1 {
			return v
		}
	}
	return -1
}

// greedyGrowing grows all blocks at once, always extending the one with
// the most room left. Fixed vertices are placed first and act as seeds; every other empty
// block gets a random seed. Without a frontier, growth continues from the
// next component in a shuffled component order.
func greedyGrowing(h *hypergraph.Hypergraph, bounds []int64, rng *rand.Rand, components [][]int) []int {
	k := len(bounds)
	part, weights := placeFixed(h, k)
	n := h.NumVertices()

	shuffled := append([][]int(nil), components...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	order := make([]int, 0, n)
	for _, c := range shuffled {
		order = append(order, c...)
	}

	g := newGrower(h, k, part, order)
	assigned := 0
	hasVertex := make([]bool, k)
	for v, b := range part {
		if b != -1 {
			g.touch(v, b)
			hasVertex[b] = true
			assigned++
		}
	}

	assign := func(v, b int) {
		part[v] = b
		weights[b] += h.VertexWeight(v)
		hasVertex[b] = true
		assigned++
		g.touch(v, b)
	}

	for b := 0; b < k && assigned < n; b++ {
		if hasVertex[b] {
			continue
		}
		for _, v := range rng.Perm(n) {
			if part[v] == -1 {
				assign(v, b)
				break
			}
		}
	}

	for assigned < n {
		b := 0
		for c := 1; c < k; c++ {
			if bounds[c]-weights[c] > bounds[b]-weights[b] {
				b = c
			}
		}
		v := g.popBest(b)
		if v == -1 {
			v = g.nextFree()
		}
		if weights[b]+h.VertexWeight(v) > bounds[b] {
			b = roomiest(weights, h.VertexWeight(v), bounds)
		}
		assign(v, b)
	}
	return part
}

// randomPartition assigns free vertices in random order to random blocks,
// falling back to the roomiest block that fits.
func randomPartition(h *hypergraph.Hypergraph, bounds []int64, rng *rand.Rand) []int {
	k := len(bounds)
	part, weights := placeFixed(h, k)
	for _, v := range rng.Perm(h.NumVertices()) {
		if part[v] != -1 {
			continue
		}
		w := h.VertexWeight(v)
		b := rng.Intn(k)
		if weights[b]+w > bounds[b] {
			b = roomiest(weights, w, bounds)
		}
		part[v] = b
		weights[b] += w
	}
	return part
}
