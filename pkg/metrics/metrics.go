// Package metrics scores partitions: cut, connectivity (km1) and sum of
// external degrees objectives, block weights and imbalance. All functions
// are pure.
package metrics

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
)

// Objective selects the quantity the partitioner minimises.
type Objective int

const (
	// Km1 is the connectivity metric: sum over edges of w(e) * (lambda(e) - 1).
	Km1 Objective = iota
	// Cut is the total weight of edges spanning more than one block.
	Cut
	// Soed is the sum of external degrees: sum over cut edges of w(e) * lambda(e).
	Soed
)

func (o Objective) String() string {
	switch o {
	case Km1:
		return "km1"
	case Cut:
		return "cut"
	case Soed:
		return "soed"
	default:
		return fmt.Sprintf("objective(%d)", int(o))
	}
}

// ParseObjective maps a configuration name to an Objective.
func ParseObjective(name string) (Objective, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "km1", "connectivity":
		return Km1, nil
	case "cut":
		return Cut, nil
	case "soed":
		return Soed, nil
	}
	return 0, fmt.Errorf("%w: unknown objective %q", hypergraph.ErrInvalidInput, name)
}

// Penalty is the contribution of one unit of edge weight for an edge that
// spans connectivity blocks.
func (o Objective) Penalty(connectivity int) int64 {
	switch o {
	case Cut:
		if connectivity > 1 {
			return 1
		}
		return 0
	case Soed:
		if connectivity > 1 {
			return int64(connectivity)
		}
		return 0
	default:
		if connectivity > 1 {
			return int64(connectivity - 1)
		}
		return 0
	}
}

// Connectivity returns the number of distinct blocks among the pins of e.
// seen is scratch space of length k, all false on entry and on return.
func Connectivity(h *hypergraph.Hypergraph, part []int, e int, seen []bool) int {
	lambda := 0
	pins := h.Pins(e)
	for _, v := range pins {
		if b := part[v]; !seen[b] {
			seen[b] = true
			lambda++
		}
	}
	for _, v := range pins {
		seen[part[v]] = false
	}
	return lambda
}

// Value computes the objective of part. part must be a valid k-way
// partition (see ValidatePartition).
func Value(h *hypergraph.Hypergraph, part []int, k int, obj Objective) int64 {
	seen := make([]bool, k)
	var total int64
	for e := 0; e < h.NumEdges(); e++ {
		if h.EdgeSize(e) < 2 {
			continue
		}
		total += h.EdgeWeight(e) * obj.Penalty(Connectivity(h, part, e, seen))
	}
	return total
}

// ObjectiveBound returns sum over edges of w(e) * min(|e|, k), an upper
// bound of every objective of every k-way partition of h. It fails with
// ErrWeightOverflow when the bound does not fit in int64; otherwise no
// objective or gain computed on h or its contractions can overflow.
func ObjectiveBound(h *hypergraph.Hypergraph, k int) (int64, error) {
	var bound int64
	for e := 0; e < h.NumEdges(); e++ {
		size := h.EdgeSize(e)
		if size < 2 {
			continue
		}
		term, err := hypergraph.MulWeight(h.EdgeWeight(e), int64(min(size, k)))
		if err != nil {
			return 0, fmt.Errorf("objective bound of edge %d: %w", e, err)
		}
		if bound, err = hypergraph.AddWeight(bound, term); err != nil {
			return 0, fmt.Errorf("objective bound: %w", err)
		}
	}
	return bound, nil
}

// CutValue returns the cut objective.
func CutValue(h *hypergraph.Hypergraph, part []int, k int) int64 { return Value(h, part, k, Cut) }

// Km1Value returns the connectivity objective.
func Km1Value(h *hypergraph.Hypergraph, part []int, k int) int64 { return Value(h, part, k, Km1) }

// SoedValue returns the sum of external degrees.
func SoedValue(h *hypergraph.Hypergraph, part []int, k int) int64 { return Value(h, part, k, Soed) }

// BlockWeights sums vertex weights per block.
func BlockWeights(h *hypergraph.Hypergraph, part []int, k int) []int64 {
	weights := make([]int64, k)
	for v, b := range part {
		weights[b] += h.VertexWeight(v)
	}
	return weights
}

// PerfectBlockWeight returns ceil(total / k).
func PerfectBlockWeight(total int64, k int) int64 {
	if k <= 0 {
		return total
	}
	return (total + int64(k) - 1) / int64(k)
}

// MaxBlockWeight returns floor((1+epsilon) * ceil(total / k)), the largest
// block weight a balanced partition may have.
func MaxBlockWeight(total int64, k int, epsilon float64) int64 {
	perfect := PerfectBlockWeight(total, k)
	bound := math.Floor((1 + epsilon) * float64(perfect))
	if bound >= math.MaxInt64 {
		return math.MaxInt64
	}
	if int64(bound) < perfect {
		return perfect
	}
	return int64(bound)
}

// Imbalance returns max_b w_b / ceil(W/k) - 1.
func Imbalance(blockWeights []int64, total int64) float64 {
	perfect := PerfectBlockWeight(total, len(blockWeights))
	if perfect == 0 {
		return 0
	}
	var heaviest int64
	for _, w := range blockWeights {
		if w > heaviest {
			heaviest = w
		}
	}
	return float64(heaviest)/float64(perfect) - 1
}

// IsBalanced reports whether every block weight is within the bound.
func IsBalanced(blockWeights []int64, maxBlockWeight int64) bool {
	for _, w := range blockWeights {
		if w > maxBlockWeight {
			return false
		}
	}
	return true
}

// Overload returns the total weight above maxBlockWeight over all blocks.
func Overload(blockWeights []int64, maxBlockWeight int64) int64 {
	var over int64
	for _, w := range blockWeights {
		if w > maxBlockWeight {
			over += w - maxBlockWeight
		}
	}
	return over
}

// ValidatePartition checks length and block range of part.
func ValidatePartition(h *hypergraph.Hypergraph, part []int, k int) error {
	if k < 2 {
		return fmt.Errorf("%w: k = %d, want >= 2", hypergraph.ErrInvalidInput, k)
	}
	if len(part) != h.NumVertices() {
		return fmt.Errorf("%w: partition has %d entries for %d vertices",
			hypergraph.ErrInvalidInput, len(part), h.NumVertices())
	}
	for v, b := range part {
		if b < 0 || b >= k {
			return fmt.Errorf("%w: vertex %d assigned to block %d outside [0,%d)",
				hypergraph.ErrInvalidInput, v, b, k)
		}
	}
	return nil
}

// Report is the full evaluation of a partition.
type Report struct {
	Objective          Objective `json:"-"`
	ObjectiveName      string    `json:"objective_name"`
	Value              int64     `json:"objective"`
	Cut                int64     `json:"cut"`
	Km1                int64     `json:"km1"`
	Soed               int64     `json:"soed"`
	BlockWeights       []int64   `json:"block_weights"`
	PerfectBlockWeight int64     `json:"perfect_block_weight"`
	MaxBlockWeight     int64     `json:"max_block_weight"`
	Imbalance          float64   `json:"imbalance"`
	Balanced           bool      `json:"balanced"`
	MeanBlockWeight    float64   `json:"mean_block_weight"`
	StdDevBlockWeight  float64   `json:"stddev_block_weight"`
	CutEdges           int       `json:"cut_edges"`
}

// Evaluate validates part and computes a Report for the given epsilon.
func Evaluate(h *hypergraph.Hypergraph, part []int, k int, epsilon float64, obj Objective) (Report, error) {
	if err := ValidatePartition(h, part, k); err != nil {
		return Report{}, err
	}

	r := Report{Objective: obj, ObjectiveName: obj.String()}
	seen := make([]bool, k)
	for e := 0; e < h.NumEdges(); e++ {
		if h.EdgeSize(e) < 2 {
			continue
		}
		lambda := Connectivity(h, part, e, seen)
		if lambda < 2 {
			continue
		}
		w := h.EdgeWeight(e)
		var err error
		if r.Cut, err = accumulate(r.Cut, w, Cut.Penalty(lambda)); err != nil {
			return Report{}, err
		}
		if r.Km1, err = accumulate(r.Km1, w, Km1.Penalty(lambda)); err != nil {
			return Report{}, err
		}
		if r.Soed, err = accumulate(r.Soed, w, Soed.Penalty(lambda)); err != nil {
			return Report{}, err
		}
		r.CutEdges++
	}
	switch obj {
	case Cut:
		r.Value = r.Cut
	case Soed:
		r.Value = r.Soed
	default:
		r.Value = r.Km1
	}

	total := h.TotalVertexWeight()
	r.BlockWeights = BlockWeights(h, part, k)
	r.PerfectBlockWeight = PerfectBlockWeight(total, k)
	r.MaxBlockWeight = MaxBlockWeight(total, k, epsilon)
	r.Imbalance = Imbalance(r.BlockWeights, total)
	r.Balanced = IsBalanced(r.BlockWeights, r.MaxBlockWeight)

	asFloat := make([]float64, k)
	for b, w := range r.BlockWeights {
		asFloat[b] = float64(w)
	}
	r.MeanBlockWeight, r.StdDevBlockWeight = stat.MeanStdDev(asFloat, nil)
	if floats.Sum(asFloat) == 0 {
		r.StdDevBlockWeight = 0
	}
	return r, nil
}

// accumulate returns total + w*penalty, failing on overflow.
func accumulate(total, w, penalty int64) (int64, error) {
	term, err := hypergraph.MulWeight(w, penalty)
	if err != nil {
		return 0, err
	}
	return hypergraph.AddWeight(total, term)
}
