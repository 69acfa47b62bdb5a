package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
)

func sample(t *testing.T) *hypergraph.Hypergraph {
	t.Helper()
	h, err := hypergraph.FromEdges(7, [][]int{{0, 2}, {0, 1, 3, 4}, {3, 4, 6}, {2, 5, 6}},
		hypergraph.WithEdgeWeights([]int64{1, 1000, 1, 1000}))
	require.NoError(t, err)
	return h
}

func TestObjectives(t *testing.T) {
	h := sample(t)
	part := []int{0, 0, 1, 0, 0, 1, 1}

	assert.Equal(t, int64(2), CutValue(h, part, 2))
	assert.Equal(t, int64(2), Km1Value(h, part, 2))
	assert.Equal(t, int64(4), SoedValue(h, part, 2))

	// Splitting a heavy edge across three blocks.
	part = []int{0, 1, 2, 0, 0, 2, 2}
	// {0,2}: 2 blocks, {0,1,3,4}: 2 blocks, {3,4,6}: 2 blocks, {2,5,6}: 1 block
	assert.Equal(t, int64(1+1000+1), CutValue(h, part, 3))
	assert.Equal(t, int64(1+1000+1), Km1Value(h, part, 3))

	part = []int{0, 1, 2, 0, 0, 1, 0}
	// {3,4,6} is internal, {2,5,6} spans 3 blocks.
	assert.Equal(t, int64(1+1000+2000), Km1Value(h, part, 3))
	assert.Equal(t, int64(1+1000+1000), CutValue(h, part, 3))
	assert.Equal(t, int64(2+2000+3000), SoedValue(h, part, 3))
}

func TestParseObjective(t *testing.T) {
	for name, want := range map[string]Objective{"km1": Km1, "connectivity": Km1, "CUT": Cut, " soed ": Soed} {
		got, err := ParseObjective(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseObjective("modularity")
	require.ErrorIs(t, err, hypergraph.ErrInvalidInput)
	assert.Equal(t, "km1", Km1.String())
}

func TestBalanceBounds(t *testing.T) {
	assert.Equal(t, int64(4), PerfectBlockWeight(7, 2))
	assert.Equal(t, int64(4), MaxBlockWeight(7, 2, 0.03))
	assert.Equal(t, int64(5), MaxBlockWeight(7, 2, 0.25))
	assert.Equal(t, int64(50), MaxBlockWeight(100, 2, 0))

	assert.InDelta(t, 0.0, Imbalance([]int64{4, 3}, 7), 1e-12)
	assert.InDelta(t, 0.25, Imbalance([]int64{5, 2}, 7), 1e-12)
	assert.True(t, IsBalanced([]int64{4, 3}, 4))
	assert.False(t, IsBalanced([]int64{5, 2}, 4))
	assert.Equal(t, int64(1), Overload([]int64{5, 2}, 4))
}

func TestValidatePartition(t *testing.T) {
	h := sample(t)
	require.NoError(t, ValidatePartition(h, []int{0, 0, 1, 0, 0, 1, 1}, 2))
	require.ErrorIs(t, ValidatePartition(h, []int{0, 0, 1}, 2), hypergraph.ErrInvalidInput)
	require.ErrorIs(t, ValidatePartition(h, []int{0, 0, 1, 0, 0, 1, 2}, 2), hypergraph.ErrInvalidInput)
	require.ErrorIs(t, ValidatePartition(h, []int{0, 0, -1, 0, 0, 1, 1}, 2), hypergraph.ErrInvalidInput)
	require.ErrorIs(t, ValidatePartition(h, []int{0, 0, 0, 0, 0, 0, 0}, 1), hypergraph.ErrInvalidInput)
}

func TestEvaluateIsPure(t *testing.T) {
	h := sample(t)
	part := []int{0, 0, 1, 0, 0, 1, 1}
	before := append([]int(nil), part...)

	first, err := Evaluate(h, part, 2, 0.03, Km1)
	require.NoError(t, err)
	second, err := Evaluate(h, part, 2, 0.03, Km1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, part)

	assert.Equal(t, int64(2), first.Value)
	assert.Equal(t, 2, first.CutEdges)
	assert.Equal(t, []int64{4, 3}, first.BlockWeights)
	assert.Equal(t, int64(4), first.MaxBlockWeight)
	assert.True(t, first.Balanced)
	assert.InDelta(t, 3.5, first.MeanBlockWeight, 1e-12)
	assert.Greater(t, first.StdDevBlockWeight, 0.0)
}

func TestSpanningEdgeAlwaysCut(t *testing.T) {
	h, err := hypergraph.FromEdges(4, [][]int{{0, 1, 2, 3}}, hypergraph.WithEdgeWeights([]int64{7}))
	require.NoError(t, err)

	for _, obj := range []Objective{Cut, Km1} {
		r, err := Evaluate(h, []int{0, 1, 0, 1}, 2, 0, obj)
		require.NoError(t, err)
		assert.Equal(t, int64(7), r.Value, obj.String())
	}
}

func TestObjectiveBound(t *testing.T) {
	bound, err := ObjectiveBound(sample(t), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2+2000+2+2000), bound)

	bound, err = ObjectiveBound(sample(t), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2+3000+3+3000), bound)
}

func TestEvaluateWeightOverflow(t *testing.T) {
	heavy := int64(math.MaxInt64/2 + 10)
	h, err := hypergraph.FromEdges(4, [][]int{{0, 1}, {2, 3}},
		hypergraph.WithEdgeWeights([]int64{heavy, 1}))
	require.NoError(t, err)

	_, err = ObjectiveBound(h, 2)
	require.ErrorIs(t, err, hypergraph.ErrWeightOverflow)

	for _, obj := range []Objective{Cut, Km1, Soed} {
		t.Run(obj.String(), func(t *testing.T) {
			_, err := Evaluate(h, []int{0, 1, 0, 0}, 2, 0.03, obj)
			require.ErrorIs(t, err, hypergraph.ErrWeightOverflow)
		})
	}

	// Uncut, every objective is zero and nothing overflows.
	r, err := Evaluate(h, []int{0, 0, 1, 1}, 2, 0.03, Soed)
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.Value)
}
