// Package hypergraph holds the immutable, array-backed hypergraph store used by
// every stage of the partitioner.
//
// Errors:
//
//	ErrInvalidInput      - malformed incidence data, weights or fixed blocks.
//	ErrWeightOverflow    - a weight sum does not fit in int64.
//	ErrReleased          - the hypergraph was released with Close.
//	ErrFixedVerticesSet  - fixed vertices were already assigned once.
package hypergraph

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidInput indicates malformed construction data or parameters.
	ErrInvalidInput = errors.New("hypergraph: invalid input")

	// ErrWeightOverflow indicates that a sum of weights exceeds the int64 range.
	ErrWeightOverflow = errors.New("hypergraph: weight overflow")

	// ErrReleased indicates an operation on a hypergraph after Close.
	ErrReleased = errors.New("hypergraph: released")

	// ErrFixedVerticesSet indicates a second SetFixedVertices call.
	ErrFixedVerticesSet = errors.New("hypergraph: fixed vertices already set")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// AddWeight returns a+b or ErrWeightOverflow. Weights are non-negative.
func AddWeight(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, fmt.Errorf("%w: %d + %d", ErrWeightOverflow, a, b)
	}
	return a + b, nil
}

// MulWeight returns a*b or ErrWeightOverflow. Both factors are non-negative.
func MulWeight(a, b int64) (int64, error) {
	if a != 0 && b > math.MaxInt64/a {
		return 0, fmt.Errorf("%w: %d * %d", ErrWeightOverflow, a, b)
	}
	return a * b, nil
}
