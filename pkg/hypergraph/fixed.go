package hypergraph

// SetFixedVertices pins vertices to blocks. blocks[v] == Unfixed leaves v
// free. Fixed vertices may be set only once per hypergraph, and not while
// a partition call is reading it.
func (h *Hypergraph) SetFixedVertices(blocks []int) error {
	if err := h.CheckUsable(); err != nil {
		return err
	}
	if h.fixedSet {
		return ErrFixedVerticesSet
	}
	if len(blocks) != h.numVertices {
		return invalidf("%d fixed-vertex entries for %d vertices", len(blocks), h.numVertices)
	}

	fixed := make([]int, h.numVertices)
	count := 0
	for v, b := range blocks {
		switch {
		case b == Unfixed:
		case b < 0:
			return invalidf("vertex %d has fixed block %d", v, b)
		case h.blocks > 0 && b >= h.blocks:
			return invalidf("vertex %d fixed to block %d, only %d blocks", v, b, h.blocks)
		default:
			count++
		}
		fixed[v] = b
	}

	h.fixedSet = true
	if count > 0 {
		h.fixed = fixed
		h.numFixed = count
	}
	return nil
}

// FixedBlock returns the block v is fixed to.
func (h *Hypergraph) FixedBlock(v int) (int, bool) {
	if h.fixed == nil || h.fixed[v] == Unfixed {
		return Unfixed, false
	}
	return h.fixed[v], true
}

// IsFixed reports whether v is fixed.
func (h *Hypergraph) IsFixed(v int) bool {
	return h.fixed != nil && h.fixed[v] != Unfixed
}

// HasFixedVertices reports whether at least one vertex is fixed.
func (h *Hypergraph) HasFixedVertices() bool { return h.numFixed > 0 }

// NumFixedVertices returns the number of fixed vertices.
func (h *Hypergraph) NumFixedVertices() int { return h.numFixed }

// FixedVertices returns a copy of the fixed-block array, Unfixed for free
// vertices.
func (h *Hypergraph) FixedVertices() []int {
	out := make([]int, h.numVertices)
	if h.fixed == nil {
		for v := range out {
			out[v] = Unfixed
		}
		return out
	}
	copy(out, h.fixed)
	return out
}

// MaxFixedBlock returns the highest fixed block id, or -1.
func (h *Hypergraph) MaxFixedBlock() int {
	highest := -1
	for _, b := range h.fixed {
		if b > highest {
			highest = b
		}
	}
	return highest
}
