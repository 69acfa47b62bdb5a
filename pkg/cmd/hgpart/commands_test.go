package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hmetis"
)

const sampleHGR = "4 7 1\n1 1 3\n1000 1 2 4 5\n1 4 5 7\n1000 3 6 7\n"

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestPartitionCommand(t *testing.T) {
	input := writeTemp(t, "sample.hgr", sampleHGR)
	output := filepath.Join(t.TempDir(), "sample.part")

	execute(t, "partition", "-f", input, "-k", "2", "-e", "0.03", "--objective", "cut", "-o", output)

	part, err := hmetis.ReadPartitionFile(output, 7)
	require.NoError(t, err)
	assert.Equal(t, part[0], part[1], "heavy edge must stay uncut")
	assert.Equal(t, part[3], part[4])
	assert.Equal(t, part[2], part[5])
	assert.Equal(t, part[5], part[6])
}

func TestEvaluateCommand(t *testing.T) {
	input := writeTemp(t, "sample.hgr", sampleHGR)
	partFile := writeTemp(t, "sample.part", "0\n0\n1\n0\n0\n1\n1\n")

	out := execute(t, "evaluate", "-f", input, "-p", partFile, "-k", "2", "--objective", "km1")

	var report struct {
		ObjectiveName string  `json:"objective_name"`
		Objective     int64   `json:"objective"`
		BlockWeights  []int64 `json:"block_weights"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "km1", report.ObjectiveName)
	assert.Equal(t, int64(2), report.Objective)
	assert.Equal(t, []int64{4, 3}, report.BlockWeights)
}

func TestLoadContextOverrides(t *testing.T) {
	configFile = writeTemp(t, "cfg.yaml", "partition:\n  objective: soed\n  seed: 3\n")
	objective, mode, seed = "", "recursive_bisection", 11
	t.Cleanup(func() { configFile, objective, mode, seed = "", "", "", 0 })

	cfg, err := loadContext()
	require.NoError(t, err)
	assert.Equal(t, "soed", cfg.ObjectiveName())
	assert.Equal(t, "recursive_bisection", cfg.Mode())
	assert.Equal(t, int64(11), cfg.Seed())

	objective = "ratio_cut"
	_, err = loadContext()
	assert.Error(t, err)
}
