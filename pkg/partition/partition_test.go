package partition

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/metrics"
)

// sample has two heavy edges, {0,1,3,4} and {2,5,6}; the best bipartition
// keeps both uncut and cuts the two light edges.
func sample(t *testing.T, opts ...hypergraph.Option) *hypergraph.Hypergraph {
	t.Helper()
	opts = append([]hypergraph.Option{hypergraph.WithEdgeWeights([]int64{1, 1000, 1, 1000})}, opts...)
	h, err := hypergraph.FromEdges(7, [][]int{{0, 2}, {0, 1, 3, 4}, {3, 4, 6}, {2, 5, 6}}, opts...)
	require.NoError(t, err)
	return h
}

func chain(t *testing.T, n int) *hypergraph.Hypergraph {
	t.Helper()
	var edges [][]int
	for i := 0; i+1 < n; i++ {
		edges = append(edges, []int{i, i + 1})
	}
	h, err := hypergraph.FromEdges(n, edges)
	require.NoError(t, err)
	return h
}

func assertHeavyEdgesUncut(t *testing.T, part []int) {
	t.Helper()
	assert.Equal(t, part[0], part[1])
	assert.Equal(t, part[0], part[3])
	assert.Equal(t, part[0], part[4])
	assert.Equal(t, part[2], part[5])
	assert.Equal(t, part[2], part[6])
	assert.NotEqual(t, part[0], part[2])
}

func TestPartitionSample(t *testing.T) {
	for _, obj := range []string{"km1", "cut"} {
		t.Run(obj, func(t *testing.T) {
			cfg := NewContext()
			cfg.Set("partition.objective", obj)

			res, err := Partition(context.Background(), sample(t), 2, 0.03, cfg)
			require.NoError(t, err)
			assert.Equal(t, int64(2), res.Objective)
			assert.Equal(t, obj, res.ObjectiveName)
			assert.False(t, res.BalanceViolated)
			assert.Equal(t, int64(4), res.MaxBlockWeight)
			assert.NotEmpty(t, res.RunID)
			assert.NotEmpty(t, res.Levels)
			assertHeavyEdgesUncut(t, res.Partition)
		})
	}
}

func TestPartitionSpanningEdge(t *testing.T) {
	h, err := hypergraph.FromEdges(4, [][]int{{0, 1, 2, 3}})
	require.NoError(t, err)

	res, err := Partition(context.Background(), h, 2, 0, NewContext())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Objective)
	assert.Equal(t, []int64{2, 2}, res.BlockWeights)
}

func TestPartitionAssignmentAndBalance(t *testing.T) {
	h := chain(t, 60)
	for _, k := range []int{2, 3, 5} {
		res, err := Partition(context.Background(), h, k, 0.05, NewContext())
		require.NoError(t, err)
		require.Len(t, res.Partition, 60)
		require.NoError(t, metrics.ValidatePartition(h, res.Partition, k))
		bound := metrics.MaxBlockWeight(60, k, 0.05)
		for _, w := range res.BlockWeights {
			assert.LessOrEqual(t, w, bound)
		}
		assert.Equal(t, metrics.Km1Value(h, res.Partition, k), res.Objective)
	}
}

func TestPartitionFixedVertices(t *testing.T) {
	h := sample(t, hypergraph.WithFixedVertices([]int{1, -1, -1, -1, -1, -1, 0}))

	res, err := Partition(context.Background(), h, 2, 0.03, NewContext())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Partition[0])
	assert.Equal(t, 0, res.Partition[6])
	assert.Equal(t, int64(2), res.Objective)
}

func TestPartitionDeterministic(t *testing.T) {
	h := chain(t, 40)
	a, err := Partition(context.Background(), h, 4, 0.03, NewContext())
	require.NoError(t, err)
	b, err := Partition(context.Background(), h, 4, 0.03, NewContext())
	require.NoError(t, err)
	assert.Equal(t, a.Partition, b.Partition)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestPartitionBalanceViolated(t *testing.T) {
	h, err := hypergraph.FromEdges(3, [][]int{{0, 1, 2}}, hypergraph.WithVertexWeights([]int64{1, 1, 8}))
	require.NoError(t, err)

	res, err := Partition(context.Background(), h, 2, 0, NewContext())
	require.ErrorIs(t, err, ErrBalanceViolated)
	require.NotNil(t, res)
	assert.True(t, res.BalanceViolated)
	assert.Len(t, res.Partition, 3)
}

func TestPartitionRecursiveBisection(t *testing.T) {
	cfg := NewContext()
	cfg.Set("partition.mode", ModeRecursiveBisection)

	res, err := Partition(context.Background(), sample(t), 2, 0.03, cfg)
	require.NoError(t, err)
	assert.Equal(t, ModeRecursiveBisection, res.Mode)
	assert.Equal(t, int64(2), res.Objective)

	h := chain(t, 12)
	res, err = Partition(context.Background(), h, 3, 0, cfg)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 4, 4}, res.BlockWeights)
}

func TestPartitionRecursiveBisectionFixedVertices(t *testing.T) {
	cfg := NewContext()
	cfg.Set("partition.mode", ModeRecursiveBisection)
	fixed := make([]int, 12)
	for v := range fixed {
		fixed[v] = hypergraph.Unfixed
	}
	fixed[0], fixed[11] = 2, 0
	var edges [][]int
	for i := 0; i+1 < 12; i++ {
		edges = append(edges, []int{i, i + 1})
	}
	h, err := hypergraph.FromEdges(12, edges, hypergraph.WithFixedVertices(fixed))
	require.NoError(t, err)

	res, err := Partition(context.Background(), h, 3, 0.1, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Partition[0])
	assert.Equal(t, 0, res.Partition[11])
}

func TestPartitionRaw(t *testing.T) {
	offsets := []int{0, 2, 6, 9, 12}
	pins := []int{0, 2, 0, 1, 3, 4, 3, 4, 6, 2, 5, 6}

	res, err := PartitionRaw(context.Background(), 7, 4, 0.03, 2, nil, []int64{1, 1000, 1, 1000}, offsets, pins, NewContext())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Objective)
	assertHeavyEdgesUncut(t, res.Partition)

	_, err = PartitionRaw(context.Background(), 7, 5, 0.03, 2, nil, nil, offsets, pins, NewContext())
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = PartitionRaw(context.Background(), 7, 4, 0.03, 2, nil, nil, offsets, []int{0, 2, 0, 1, 3, 4, 3, 4, 6, 2, 5, 9}, NewContext())
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestPartitionInvalidInput(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		k       int
		epsilon float64
	}{
		{"k one", 1, 0.03},
		{"k zero", 0, 0.03},
		{"negative epsilon", 2, -0.1},
		{"NaN epsilon", 2, math.NaN()},
		{"infinite epsilon", 2, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Partition(ctx, sample(t), tt.k, tt.epsilon, NewContext())
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	t.Run("fixed block out of range", func(t *testing.T) {
		h := sample(t, hypergraph.WithFixedVertices([]int{2, -1, -1, -1, -1, -1, -1}))
		_, err := Partition(ctx, h, 2, 0.03, NewContext())
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("declared blocks", func(t *testing.T) {
		h := sample(t, hypergraph.WithBlocks(3))
		_, err := Partition(ctx, h, 2, 0.03, NewContext())
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("bad configuration", func(t *testing.T) {
		cfg := NewContext()
		cfg.Set("refinement.algorithm", "simulated_annealing")
		_, err := Partition(ctx, sample(t), 2, 0.03, cfg)
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("nil hypergraph", func(t *testing.T) {
		_, err := Partition(ctx, nil, 2, 0.03, NewContext())
		require.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestPartitionWeightOverflow(t *testing.T) {
	heavy := int64(math.MaxInt64/2 + 10)
	build := func(t *testing.T) *hypergraph.Hypergraph {
		h, err := hypergraph.FromEdges(4, [][]int{{0, 1}, {2, 3}},
			hypergraph.WithEdgeWeights([]int64{heavy, 1}),
			hypergraph.WithFixedVertices([]int{0, 1, -1, -1}))
		require.NoError(t, err)
		return h
	}

	for _, obj := range []string{"cut", "km1", "soed"} {
		t.Run(obj, func(t *testing.T) {
			cfg := NewContext()
			cfg.Set("partition.objective", obj)

			res, err := Partition(context.Background(), build(t), 2, 0.03, cfg)
			require.ErrorIs(t, err, ErrWeightOverflow)
			assert.Nil(t, res)

			res, err = ImprovePartition(context.Background(), build(t), 2, 0.03, cfg, []int{0, 1, 0, 1}, 1)
			require.ErrorIs(t, err, ErrWeightOverflow)
			assert.Nil(t, res)
		})
	}
}

func TestPartitionReleased(t *testing.T) {
	h := sample(t)
	h.Close()
	_, err := Partition(context.Background(), h, 2, 0.03, NewContext())
	require.ErrorIs(t, err, ErrReleased)

	cfg := NewContext()
	cfg.Close()
	_, err = Partition(context.Background(), sample(t), 2, 0.03, cfg)
	require.ErrorIs(t, err, ErrReleased)
	_, err = ImprovePartition(context.Background(), sample(t), 2, 0.03, cfg, []int{0, 0, 1, 0, 0, 1, 1}, 1)
	require.ErrorIs(t, err, ErrReleased)
}

func TestPartitionCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Partition(ctx, chain(t, 30), 2, 0.03, NewContext())
	require.ErrorIs(t, err, context.Canceled)
}

func TestPartitionMoveTracking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moves.jsonl")
	cfg := NewContext()
	cfg.Set("analysis.track_moves", true)
	cfg.Set("analysis.output_file", path)

	_, err := Partition(context.Background(), chain(t, 20), 2, 0.03, cfg)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestImprovePartition(t *testing.T) {
	h := sample(t)
	previous := []int{0, 0, 1, 0, 1, 1, 1}
	before := append([]int(nil), previous...)

	res, err := ImprovePartition(context.Background(), h, 2, 0.03, NewContext(), previous, 2)
	require.NoError(t, err)
	assert.Equal(t, before, previous)
	assert.Equal(t, int64(2), res.Objective)
	assert.Equal(t, 2, res.Cycles)
	assertHeavyEdgesUncut(t, res.Partition)
}

func TestImprovePartitionNeverWorse(t *testing.T) {
	h := chain(t, 50)
	first, err := Partition(context.Background(), h, 4, 0.03, NewContext())
	require.NoError(t, err)

	cfg := NewContext()
	cfg.Set("partition.seed", 7)
	res, err := ImprovePartition(context.Background(), h, 4, 0.03, cfg, first.Partition, 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Objective, first.Objective)
	assert.False(t, res.BalanceViolated)
}

func TestImprovePartitionFixedVertices(t *testing.T) {
	h := sample(t, hypergraph.WithFixedVertices([]int{1, -1, -1, -1, -1, -1, 0}))

	res, err := ImprovePartition(context.Background(), h, 2, 0.03, NewContext(), []int{1, 1, 0, 1, 0, 0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Partition[0])
	assert.Equal(t, 0, res.Partition[6])

	_, err = ImprovePartition(context.Background(), h, 2, 0.03, NewContext(), []int{0, 0, 1, 0, 0, 1, 1}, 2)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestImprovePartitionInvalidInput(t *testing.T) {
	ctx := context.Background()
	h := sample(t)
	good := []int{0, 0, 1, 0, 0, 1, 1}

	_, err := ImprovePartition(ctx, h, 2, 0.03, NewContext(), good, 0)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = ImprovePartition(ctx, h, 2, 0.03, NewContext(), good[:5], 1)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = ImprovePartition(ctx, h, 2, 0.03, NewContext(), []int{0, 0, 2, 0, 0, 1, 1}, 1)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = ImprovePartition(ctx, h, 2, 0.03, NewContext(), []int{0, 0, -1, 0, 0, 1, 1}, 1)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestBudgetError(t *testing.T) {
	err := budgetError(context.Background(), context.DeadlineExceeded)
	require.ErrorIs(t, err, ErrResourceExhausted)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, budgetError(ctx, context.DeadlineExceeded), context.Canceled)
	require.ErrorIs(t, budgetError(context.Background(), ErrInvalidInput), ErrInvalidInput)
}

func TestPartitionTimeLimit(t *testing.T) {
	for _, communities := range []bool{true, false} {
		t.Run(fmt.Sprintf("communities=%v", communities), func(t *testing.T) {
			cfg := NewContext()
			cfg.Set("partition.time_limit", "1ns")
			cfg.Set("coarsening.use_communities", communities)

			res, err := Partition(context.Background(), chain(t, 400), 2, 0.03, cfg)
			require.ErrorIs(t, err, ErrResourceExhausted)
			require.ErrorIs(t, err, context.DeadlineExceeded)
			assert.Nil(t, res)
		})
	}
}

func TestImprovePartitionTimeLimit(t *testing.T) {
	previous := []int{0, 0, 1, 0, 0, 1, 1}
	for _, communities := range []bool{true, false} {
		t.Run(fmt.Sprintf("communities=%v", communities), func(t *testing.T) {
			cfg := NewContext()
			cfg.Set("partition.time_limit", "1ns")
			cfg.Set("coarsening.use_communities", communities)

			res, err := ImprovePartition(context.Background(), sample(t), 2, 0.03, cfg, previous, 5)
			require.NoError(t, err)
			assert.Equal(t, previous, res.Partition)
			assert.Equal(t, 0, res.Cycles)
			assert.Equal(t, int64(2), res.Objective)
		})
	}
}

func TestSideBound(t *testing.T) {
	assert.Equal(t, int64(4), sideBound(12, 1, 3, 0))
	assert.Equal(t, int64(8), sideBound(12, 2, 3, 0))
	assert.Equal(t, int64(5), sideBound(10, 1, 2, 0.1))
}
