// Package hmetis reads and writes hypergraphs, partitions and fixed-vertex
// files in the hMetis text formats.
//
// A hypergraph file starts with the header "m n [fmt]" followed by m edge
// lines of 1-indexed pins and, when fmt has vertex weights, n lines with
// one weight each. fmt is 1 (edge weights, written first on every edge
// line), 10 (vertex weights) or 11 (both). Lines starting with '%' are
// comments.
package hmetis

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
)

const maxLineSize = 64 << 20

// lineReader yields the non-empty, non-comment lines of a file.
type lineReader struct {
	scanner *bufio.Scanner
	line    int
}

func newLineReader(r io.Reader) *lineReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &lineReader{scanner: scanner}
}

// next returns the fields of the next content line, or io.EOF.
func (lr *lineReader) next() ([]string, error) {
	for lr.scanner.Scan() {
		lr.line++
		line := strings.TrimSpace(lr.scanner.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		return strings.Fields(line), nil
	}
	if err := lr.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (lr *lineReader) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: line %d: %s", hypergraph.ErrInvalidInput, lr.line, fmt.Sprintf(format, args...))
}

// Read parses a hypergraph. opts are applied after the weights from the
// file, e.g. hypergraph.WithFixedVertices.
func Read(r io.Reader, opts ...hypergraph.Option) (*hypergraph.Hypergraph, error) {
	lr := newLineReader(r)
	header, err := lr.next()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty hypergraph file", hypergraph.ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}
	if len(header) < 2 || len(header) > 3 {
		return nil, lr.errorf("header %q, want \"m n [fmt]\"", strings.Join(header, " "))
	}
	numEdges, err1 := strconv.Atoi(header[0])
	numVertices, err2 := strconv.Atoi(header[1])
	if err1 != nil || err2 != nil || numEdges < 0 || numVertices < 0 {
		return nil, lr.errorf("bad counts in header %q", strings.Join(header, " "))
	}
	hasEdgeWeights, hasVertexWeights := false, false
	if len(header) == 3 {
		switch header[2] {
		case "0", "00":
		case "1", "01":
			hasEdgeWeights = true
		case "10":
			hasVertexWeights = true
		case "11":
			hasEdgeWeights, hasVertexWeights = true, true
		default:
			return nil, lr.errorf("unknown format %q", header[2])
		}
	}

	offsets := make([]int, 1, numEdges+1)
	var pins []int
	var edgeWeights []int64
	if hasEdgeWeights {
		edgeWeights = make([]int64, 0, numEdges)
	}
	for e := 0; e < numEdges; e++ {
		fields, err := lr.next()
		if err == io.EOF {
			return nil, lr.errorf("expected %d edges, found %d", numEdges, e)
		}
		if err != nil {
			return nil, err
		}
		if hasEdgeWeights {
			w, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return nil, lr.errorf("bad edge weight %q", fields[0])
			}
			edgeWeights = append(edgeWeights, w)
			fields = fields[1:]
		}
		for _, f := range fields {
			p, err := strconv.Atoi(f)
			if err != nil {
				return nil, lr.errorf("bad pin %q", f)
			}
			if p < 1 || p > numVertices {
				return nil, lr.errorf("pin %d outside [1,%d]", p, numVertices)
			}
			pins = append(pins, p-1)
		}
		offsets = append(offsets, len(pins))
	}

	var vertexWeights []int64
	if hasVertexWeights {
		vertexWeights = make([]int64, numVertices)
		for v := range vertexWeights {
			fields, err := lr.next()
			if err == io.EOF {
				return nil, lr.errorf("expected %d vertex weights, found %d", numVertices, v)
			}
			if err != nil {
				return nil, err
			}
			w, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return nil, lr.errorf("bad vertex weight %q", fields[0])
			}
			vertexWeights[v] = w
		}
	}

	var all []hypergraph.Option
	if edgeWeights != nil {
		all = append(all, hypergraph.WithEdgeWeights(edgeWeights))
	}
	if vertexWeights != nil {
		all = append(all, hypergraph.WithVertexWeights(vertexWeights))
	}
	return hypergraph.New(numVertices, offsets, pins, append(all, opts...)...)
}

// ReadFile reads a hypergraph file.
func ReadFile(path string, opts ...hypergraph.Option) (*hypergraph.Hypergraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, err := Read(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return h, nil
}

// Write writes h in hMetis format. Weights are written only when some
// weight differs from 1.
func Write(w io.Writer, h *hypergraph.Hypergraph) error {
	if err := h.CheckUsable(); err != nil {
		return err
	}
	edgeWeights := !allUnit(h.EdgeWeights())
	vertexWeights := !allUnit(h.VertexWeights())

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d", h.NumEdges(), h.NumVertices())
	switch {
	case edgeWeights && vertexWeights:
		bw.WriteString(" 11")
	case vertexWeights:
		bw.WriteString(" 10")
	case edgeWeights:
		bw.WriteString(" 1")
	}
	bw.WriteByte('\n')

	for e := 0; e < h.NumEdges(); e++ {
		var fields []string
		if edgeWeights {
			fields = append(fields, strconv.FormatInt(h.EdgeWeight(e), 10))
		}
		for _, p := range h.Pins(e) {
			fields = append(fields, strconv.Itoa(p+1))
		}
		bw.WriteString(strings.Join(fields, " "))
		bw.WriteByte('\n')
	}
	if vertexWeights {
		for v := 0; v < h.NumVertices(); v++ {
			bw.WriteString(strconv.FormatInt(h.VertexWeight(v), 10))
			bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}

// WriteFile writes h to path.
func WriteFile(path string, h *hypergraph.Hypergraph) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, h); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func allUnit(weights []int64) bool {
	for _, w := range weights {
		if w != 1 {
			return false
		}
	}
	return true
}
