package hmetis

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
)

// ReadPartition reads one block per line for n vertices. Entries must be
// >= 0.
func ReadPartition(r io.Reader, n int) ([]int, error) {
	return readBlocks(r, n, 0)
}

// ReadFixed reads a fixed-vertex file: one block or -1 (free) per line.
func ReadFixed(r io.Reader, n int) ([]int, error) {
	return readBlocks(r, n, hypergraph.Unfixed)
}

func readBlocks(r io.Reader, n, lowest int) ([]int, error) {
	lr := newLineReader(r)
	blocks := make([]int, 0, n)
	for {
		fields, err := lr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(blocks) == n {
			return nil, lr.errorf("more than %d entries", n)
		}
		b, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, lr.errorf("bad block %q", fields[0])
		}
		if b < lowest {
			return nil, lr.errorf("block %d below %d", b, lowest)
		}
		blocks = append(blocks, b)
	}
	if len(blocks) != n {
		return nil, fmt.Errorf("%w: %d entries for %d vertices", hypergraph.ErrInvalidInput, len(blocks), n)
	}
	return blocks, nil
}

// ReadPartitionFile reads a partition file.
func ReadPartitionFile(path string, n int) ([]int, error) {
	return readBlocksFile(path, n, ReadPartition)
}

// ReadFixedFile reads a fixed-vertex file.
func ReadFixedFile(path string, n int) ([]int, error) {
	return readBlocksFile(path, n, ReadFixed)
}

func readBlocksFile(path string, n int, read func(io.Reader, int) ([]int, error)) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	blocks, err := read(f, n)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return blocks, nil
}

// WritePartition writes one block per line.
func WritePartition(w io.Writer, part []int) error {
	bw := bufio.NewWriter(w)
	for _, b := range part {
		bw.WriteString(strconv.Itoa(b))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WritePartitionFile writes part to path.
func WritePartitionFile(path string, part []int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePartition(f, part); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
