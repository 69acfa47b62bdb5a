package refinement

import "container/heap"

// candidate is a prospective move of vertex to block with its gain.
type candidate struct {
	vertex int
	block  int
	gain   int64
}

// moveQueue pops the highest gain first; ties go to the lower vertex and
// then the lower block.
type moveQueue []candidate

func (q moveQueue) Len() int { return len(q) }

func (q moveQueue) Less(i, j int) bool {
	if q[i].gain != q[j].gain {
		return q[i].gain > q[j].gain
	}
	if q[i].vertex != q[j].vertex {
		return q[i].vertex < q[j].vertex
	}
	return q[i].block < q[j].block
}

func (q moveQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *moveQueue) Push(x any) { *q = append(*q, x.(candidate)) }

func (q *moveQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func (q *moveQueue) push(c candidate) { heap.Push(q, c) }

func (q *moveQueue) pop() candidate { return heap.Pop(q).(candidate) }
