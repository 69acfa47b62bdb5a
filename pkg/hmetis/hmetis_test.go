package hmetis

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
)

const sampleFile = `% two heavy nets
4 7 1
1 1 3
1000 1 2 4 5
1 4 5 7
1000 3 6 7
`

func TestRead(t *testing.T) {
	h, err := Read(strings.NewReader(sampleFile))
	require.NoError(t, err)

	assert.Equal(t, 7, h.NumVertices())
	assert.Equal(t, 4, h.NumEdges())
	assert.Equal(t, []int{0, 1, 3, 4}, h.Pins(1))
	assert.Equal(t, []int64{1, 1000, 1, 1000}, h.EdgeWeights())
	assert.Equal(t, int64(7), h.TotalVertexWeight())
}

func TestReadVertexWeights(t *testing.T) {
	h, err := Read(strings.NewReader("2 3 10\n1 2\n2 3\n5\n% middle\n1\n2\n"))
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 1, 2}, h.VertexWeights())
	assert.Equal(t, []int64{1, 1}, h.EdgeWeights())

	h, err = Read(strings.NewReader("1 2 11\n3 1 2\n4\n6\n"))
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, h.EdgeWeights())
	assert.Equal(t, []int64{4, 6}, h.VertexWeights())
}

func TestReadErrors(t *testing.T) {
	tests := map[string]string{
		"empty":           "% nothing\n",
		"short header":    "3\n",
		"bad format":      "1 2 7\n1 2\n",
		"missing edge":    "2 3\n1 2\n",
		"pin zero":        "1 3\n0 1\n",
		"pin too large":   "1 3\n1 4\n",
		"duplicate pin":   "1 3\n1 1\n",
		"bad weight":      "1 3 1\nx 1 2\n",
		"missing weights": "1 2 10\n1 2\n1\n",
		"negative weight": "1 2 1\n-3 1 2\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(input))
			require.ErrorIs(t, err, hypergraph.ErrInvalidInput)
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	h, err := hypergraph.FromEdges(5, [][]int{{0, 1, 2}, {2, 3}, {3, 4, 0}},
		hypergraph.WithEdgeWeights([]int64{2, 1, 7}),
		hypergraph.WithVertexWeights([]int64{1, 1, 3, 1, 1}))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "g.hgr")
	require.NoError(t, WriteFile(path, h))
	got, err := ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, h.Offsets(), got.Offsets())
	assert.Equal(t, h.FlatPins(), got.FlatPins())
	assert.Equal(t, h.EdgeWeights(), got.EdgeWeights())
	assert.Equal(t, h.VertexWeights(), got.VertexWeights())
}

func TestWriteUnweighted(t *testing.T) {
	h, err := hypergraph.FromEdges(3, [][]int{{0, 1}, {1, 2}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, h))
	assert.Equal(t, "2 3\n1 2\n2 3\n", buf.String())
}

func TestPartitionFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g.part.2")
	part := []int{0, 0, 1, 0, 0, 1, 1}
	require.NoError(t, WritePartitionFile(path, part))

	got, err := ReadPartitionFile(path, 7)
	require.NoError(t, err)
	assert.Equal(t, part, got)

	_, err = ReadPartitionFile(path, 8)
	require.ErrorIs(t, err, hypergraph.ErrInvalidInput)
	_, err = ReadPartitionFile(path, 6)
	require.ErrorIs(t, err, hypergraph.ErrInvalidInput)
	_, err = ReadPartition(strings.NewReader("0\n-1\n"), 2)
	require.ErrorIs(t, err, hypergraph.ErrInvalidInput)
}

func TestReadFixed(t *testing.T) {
	fixed, err := ReadFixed(strings.NewReader("1\n-1\n% free\n-1\n0\n"), 4)
	require.NoError(t, err)
	assert.Equal(t, []int{1, -1, -1, 0}, fixed)

	h, err := Read(strings.NewReader(sampleFile), hypergraph.WithFixedVertices([]int{1, -1, -1, -1, -1, -1, 0}))
	require.NoError(t, err)
	b, ok := h.FixedBlock(0)
	assert.True(t, ok)
	assert.Equal(t, 1, b)

	_, err = ReadFixed(strings.NewReader("-2\n"), 1)
	require.ErrorIs(t, err, hypergraph.ErrInvalidInput)
}
