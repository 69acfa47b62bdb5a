// Package coarsening builds the contraction hierarchy of the multilevel
// partitioner: vertices are clustered by a heavy-edge rating, clusters are
// contracted into coarse vertices, and partitions are projected back down.
package coarsening

import (
	"fmt"
	"strings"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
)

// Rating scores a candidate pair of vertices.
type Rating int

const (
	// HeavyEdge sums w(e)/(|e|-1) over shared edges.
	HeavyEdge Rating = iota
	// HeavyEdgePenalty divides the heavy-edge score by the product of the
	// two cluster weights.
	HeavyEdgePenalty
)

func (r Rating) String() string {
	switch r {
	case HeavyEdge:
		return "heavy_edge"
	case HeavyEdgePenalty:
		return "heavy_edge_penalty"
	default:
		return fmt.Sprintf("rating(%d)", int(r))
	}
}

// ParseRating maps a configuration name to a Rating.
func ParseRating(name string) (Rating, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "heavy_edge", "":
		return HeavyEdge, nil
	case "heavy_edge_penalty":
		return HeavyEdgePenalty, nil
	}
	return 0, fmt.Errorf("%w: unknown rating %q", hypergraph.ErrInvalidInput, name)
}

// score applies the rating to an accumulated heavy-edge value.
func (r Rating) score(heavy float64, weightU, weightTarget int64) float64 {
	if r != HeavyEdgePenalty {
		return heavy
	}
	product := float64(weightU) * float64(weightTarget)
	if product <= 0 {
		return heavy
	}
	return heavy / product
}
