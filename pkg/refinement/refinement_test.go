package refinement

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/metrics"
)

func sample(t *testing.T, opts ...hypergraph.Option) *hypergraph.Hypergraph {
	t.Helper()
	opts = append([]hypergraph.Option{hypergraph.WithEdgeWeights([]int64{1, 1000, 1, 1000})}, opts...)
	h, err := hypergraph.FromEdges(7, [][]int{{0, 2}, {0, 1, 3, 4}, {3, 4, 6}, {2, 5, 6}}, opts...)
	require.NoError(t, err)
	return h
}

func TestStateGainAndMove(t *testing.T) {
	h := sample(t)
	s, err := NewState(h, []int{0, 0, 1, 0, 0, 1, 1}, 2, metrics.Km1, 4)
	require.NoError(t, err)

	assert.Equal(t, int64(2), s.Objective())
	assert.Equal(t, 4, s.PinCount(1, 0))
	assert.Equal(t, 2, s.Connectivity(0))
	assert.Equal(t, []int64{4, 3}, s.BlockWeights())
	assert.True(t, s.IsBalanced())
	assert.True(t, s.IsBoundary(2))
	assert.False(t, s.IsBoundary(1))

	assert.Equal(t, int64(-999), s.Gain(2, 0))
	assert.Equal(t, int64(-999), s.Move(2, 0))
	assert.Equal(t, int64(1001), s.Objective())
	assert.False(t, s.IsBalanced())
	assert.Equal(t, int64(1), s.Overload())

	s.Move(2, 1)
	assert.Equal(t, int64(2), s.Objective())
	assert.Equal(t, []int{0, 0, 1, 0, 0, 1, 1}, s.Part())
}

func TestStateStaysConsistent(t *testing.T) {
	h := sample(t)
	rng := rand.New(rand.NewSource(11))
	for _, obj := range []metrics.Objective{metrics.Cut, metrics.Km1, metrics.Soed} {
		s, err := NewState(h, []int{0, 1, 2, 0, 1, 2, 0}, 3, obj, 100)
		require.NoError(t, err)
		for i := 0; i < 200; i++ {
			s.Move(rng.Intn(7), rng.Intn(3))
			part := s.Part()
			require.Equal(t, metrics.Value(h, part, 3, obj), s.Objective(), "%s after %d moves", obj, i)
			require.Equal(t, metrics.BlockWeights(h, part, 3), s.BlockWeights())
		}
		clone := s.Clone()
		clone.Move(0, (clone.Block(0)+1)%3)
		assert.NotEqual(t, clone.Part(), s.Part())
	}
}

func TestStateWeightOverflow(t *testing.T) {
	h, err := hypergraph.FromEdges(3, [][]int{{0, 1, 2}}, hypergraph.WithEdgeWeights([]int64{math.MaxInt64 / 2}))
	require.NoError(t, err)

	_, err = NewState(h, []int{0, 1, 2}, 3, metrics.Km1, 3)
	require.ErrorIs(t, err, hypergraph.ErrWeightOverflow)
	_, err = NewState(h, []int{0, 0, 1}, 2, metrics.Km1, 3)
	require.NoError(t, err)
}

func TestStateFixedVertices(t *testing.T) {
	h := sample(t, hypergraph.WithFixedVertices([]int{0, -1, -1, -1, -1, -1, 1}))

	_, err := NewState(h, []int{1, 0, 1, 0, 0, 1, 1}, 2, metrics.Km1, 4)
	require.ErrorIs(t, err, hypergraph.ErrInvalidInput)

	s, err := NewState(h, []int{0, 0, 1, 0, 0, 1, 1}, 2, metrics.Km1, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.Move(0, 1))
	assert.Equal(t, 0, s.Block(0))
	assert.False(t, s.Movable(6))
}

func TestStatePerBlockBounds(t *testing.T) {
	h := sample(t)
	s, err := NewStateWithBounds(h, []int{0, 0, 1, 0, 0, 1, 1}, metrics.Km1, []int64{3, 5})
	require.NoError(t, err)

	assert.Equal(t, 2, s.K())
	assert.True(t, s.Overloaded(0))
	assert.False(t, s.IsBalanced())
	assert.Equal(t, int64(1), s.Overload())
	assert.False(t, s.Fits(2, 0))
	assert.True(t, s.Fits(0, 1))

	ok, err := Rebalance(context.Background(), s, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int64{3, 4}, s.BlockWeights())
	assert.Equal(t, []int64{3, 5}, s.Bounds())
}

func TestKWayFMFindsOptimum(t *testing.T) {
	h := sample(t)
	s, err := NewState(h, []int{0, 0, 1, 0, 1, 1, 1}, 2, metrics.Km1, 4)
	require.NoError(t, err)
	require.Equal(t, int64(1002), s.Objective())

	var buf bytes.Buffer
	tracker := NewMoveTracker(&buf)
	r, err := New("kway_fm", Options{}, zerolog.Nop(), tracker)
	require.NoError(t, err)

	stats, err := r.Refine(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 0, 0, 1, 1}, s.Part())
	assert.Equal(t, int64(2), s.Objective())
	assert.Equal(t, int64(1002), stats.InitialObjective)
	assert.Equal(t, int64(2), stats.FinalObjective)
	assert.True(t, s.IsBalanced())

	require.Greater(t, tracker.Moves(), 0)
	first := strings.SplitN(buf.String(), "\n", 2)[0]
	var event MoveEvent
	require.NoError(t, json.Unmarshal([]byte(first), &event))
	assert.Equal(t, "kway_fm", event.Algorithm)
	assert.Equal(t, 4, event.Vertex)
	assert.Equal(t, int64(1000), event.Gain)
}

func randomHypergraph(t *testing.T, rng *rand.Rand, n, m, maxSize int) *hypergraph.Hypergraph {
	t.Helper()
	edges := make([][]int, m)
	for e := range edges {
		size := 2 + rng.Intn(maxSize-1)
		seen := make(map[int]bool, size)
		for len(edges[e]) < size {
			v := rng.Intn(n)
			if !seen[v] {
				seen[v] = true
				edges[e] = append(edges[e], v)
			}
		}
	}
	h, err := hypergraph.FromEdges(n, edges)
	require.NoError(t, err)
	return h
}

func TestKWayFMMoveLogReplays(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	h := randomHypergraph(t, rng, 40, 60, 5)
	for trial := 0; trial < 5; trial++ {
		start := make([]int, 40)
		for v := range start {
			start[v] = v % 3
		}
		rng.Shuffle(len(start), func(i, j int) { start[i], start[j] = start[j], start[i] })
		s, err := NewState(h, start, 3, metrics.Km1, 15)
		require.NoError(t, err)

		var buf bytes.Buffer
		_, err = NewKWayFM(Options{MaxPasses: 4}, zerolog.Nop(), NewMoveTracker(&buf)).Refine(context.Background(), s)
		require.NoError(t, err)

		replay := append([]int(nil), start...)
		dec := json.NewDecoder(&buf)
		for dec.More() {
			var event MoveEvent
			require.NoError(t, dec.Decode(&event))
			require.Equal(t, event.FromBlock, replay[event.Vertex], "move %d", event.MoveNumber)
			replay[event.Vertex] = event.ToBlock
			require.Equal(t, event.Objective, metrics.Value(h, replay, 3, metrics.Km1), "move %d", event.MoveNumber)
		}
		assert.Equal(t, s.Part(), replay, "trial %d", trial)
	}
}

func TestAffectsNeighbours(t *testing.T) {
	big := []int{0, 1, 2, 3, 4, 5, 6, 7}
	h, err := hypergraph.FromEdges(8, [][]int{big, {0, 1}})
	require.NoError(t, err)
	f := NewKWayFM(Options{MaxEdgeSize: 4}, zerolog.Nop(), nil)

	s, err := NewState(h, []int{0, 0, 0, 0, 1, 1, 1, 1}, 2, metrics.Km1, 8)
	require.NoError(t, err)
	assert.True(t, f.affectsNeighbours(s, 1, 0, 1), "small edges are always revisited")
	assert.False(t, f.affectsNeighbours(s, 0, 0, 1), "4 and 4 pins cross no threshold")

	s.Move(0, 1)
	s.Move(1, 1)
	s.Move(2, 1)
	assert.True(t, f.affectsNeighbours(s, 0, 0, 1), "one pin left in the source block")

	s, err = NewState(h, []int{0, 0, 0, 0, 0, 0, 1, 1}, 2, metrics.Km1, 8)
	require.NoError(t, err)
	assert.True(t, f.affectsNeighbours(s, 0, 0, 1), "two pins in the target block")
}

func TestKWayFMLargeEdges(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	h := randomHypergraph(t, rng, 30, 40, 12)
	for _, obj := range []metrics.Objective{metrics.Cut, metrics.Km1, metrics.Soed} {
		part := make([]int, 30)
		for v := range part {
			part[v] = v % 2
		}
		s, err := NewState(h, part, 2, obj, 16)
		require.NoError(t, err)
		before := s.Objective()

		_, err = NewKWayFM(Options{MaxEdgeSize: 3}, zerolog.Nop(), nil).Refine(context.Background(), s)
		require.NoError(t, err)
		assert.LessOrEqual(t, s.Objective(), before, "%s", obj)
		assert.Equal(t, metrics.Value(h, s.Part(), 2, obj), s.Objective(), "%s", obj)
		assert.True(t, s.IsBalanced(), "%s", obj)
	}
}

func TestKWayFMNeverWorsens(t *testing.T) {
	h := sample(t, hypergraph.WithFixedVertices([]int{-1, -1, -1, -1, -1, -1, 0}))
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 20; trial++ {
		part := make([]int, 7)
		for v := range part {
			part[v] = rng.Intn(3)
		}
		part[6] = 0
		s, err := NewState(h, part, 3, metrics.Km1, 3)
		require.NoError(t, err)
		before := s.Objective()
		balanced := s.IsBalanced()

		_, err = NewKWayFM(Options{MaxFruitlessMoves: 10}, zerolog.Nop(), nil).Refine(context.Background(), s)
		require.NoError(t, err)
		if balanced {
			assert.True(t, s.IsBalanced())
			assert.LessOrEqual(t, s.Objective(), before)
		}
		assert.Equal(t, 0, s.Block(6))
		assert.Equal(t, metrics.Km1Value(h, s.Part(), 3), s.Objective())
	}
}

func TestParallelCandidatesMatchSequential(t *testing.T) {
	h := sample(t)
	s, err := NewState(h, []int{0, 1, 2, 0, 1, 2, 0}, 3, metrics.Km1, 3)
	require.NoError(t, err)

	seq := NewKWayFM(Options{ParallelThreshold: 1000, NumWorkers: 1}, zerolog.Nop(), nil)
	par := NewKWayFM(Options{ParallelThreshold: 1, NumWorkers: 3}, zerolog.Nop(), nil)

	want, err := seq.initialCandidates(context.Background(), s)
	require.NoError(t, err)
	got, err := par.initialCandidates(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NotEmpty(t, got)
}

func TestLabelPropagation(t *testing.T) {
	h := sample(t)
	s, err := NewState(h, []int{0, 0, 1, 0, 1, 1, 1}, 2, metrics.Km1, 4)
	require.NoError(t, err)

	r, err := New("label_propagation", Options{}, zerolog.Nop(), nil)
	require.NoError(t, err)
	stats, err := r.Refine(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 0, 0, 1, 1}, s.Part())
	assert.Equal(t, 1, stats.Moves)
	assert.Equal(t, 2, stats.Passes)
}

func TestRebalance(t *testing.T) {
	h := sample(t)
	s, err := NewState(h, []int{0, 0, 0, 0, 0, 0, 1}, 2, metrics.Km1, 4)
	require.NoError(t, err)
	require.False(t, s.IsBalanced())

	ok, err := Rebalance(context.Background(), s, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, s.IsBalanced())
	assert.Equal(t, metrics.Km1Value(h, s.Part(), 2), s.Objective())

	heavy, err := hypergraph.FromEdges(2, [][]int{{0, 1}}, hypergraph.WithVertexWeights([]int64{5, 5}))
	require.NoError(t, err)
	s, err = NewState(heavy, []int{0, 0}, 2, metrics.Km1, 4)
	require.NoError(t, err)
	ok, err = Rebalance(context.Background(), s, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefinerRegistry(t *testing.T) {
	r, err := New("none", Options{}, zerolog.Nop(), nil)
	require.NoError(t, err)
	assert.Equal(t, "none", r.Name())

	_, err = New("simulated_annealing", Options{}, zerolog.Nop(), nil)
	require.ErrorIs(t, err, hypergraph.ErrInvalidInput)
}

func TestRefineCancelled(t *testing.T) {
	h := sample(t)
	s, err := NewState(h, []int{0, 0, 1, 0, 1, 1, 1}, 2, metrics.Km1, 4)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewKWayFM(Options{}, zerolog.Nop(), nil).Refine(ctx, s)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNilMoveTracker(t *testing.T) {
	var mt *MoveTracker
	mt.SetLevel(2)
	mt.LogMove("kway_fm", 1, 0, 1, 5, 10)
	assert.Equal(t, 0, mt.Moves())
	assert.NoError(t, mt.Close())
}
