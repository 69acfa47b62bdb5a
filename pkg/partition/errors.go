// Package partition is the entry point of the partitioner: it validates a
// request, runs coarsening, initial partitioning and refinement, and
// reports the result.
//
// Errors:
//
//	ErrInvalidInput       - bad k, epsilon, partition or configuration (alias of hypergraph.ErrInvalidInput).
//	ErrReleased           - a released hypergraph or context was used (alias of hypergraph.ErrReleased).
//	ErrWeightOverflow     - an objective of h may not fit in int64 (alias of hypergraph.ErrWeightOverflow).
//	ErrBalanceViolated    - no balanced partition was found; the result is still returned.
//	ErrResourceExhausted  - partition.time_limit expired before any partition existed.
package partition

import (
	"errors"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
)

var (
	ErrInvalidInput   = hypergraph.ErrInvalidInput
	ErrReleased       = hypergraph.ErrReleased
	ErrWeightOverflow = hypergraph.ErrWeightOverflow

	// ErrBalanceViolated accompanies a populated Result whose blocks exceed
	// the weight bound.
	ErrBalanceViolated = errors.New("partition: balance constraint violated")

	// ErrResourceExhausted indicates the time budget ran out.
	ErrResourceExhausted = errors.New("partition: resource exhausted")
)
