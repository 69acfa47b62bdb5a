package server

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hmetis"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
)

// requestValidate checks the validate tags of request bodies.
var requestValidate = validator.New()

// HypergraphPayload describes a hypergraph either as hMetis text or as an
// edge list with optional weights. Fixed applies to both forms.
type HypergraphPayload struct {
	HMetis        string  `json:"hmetis,omitempty"`
	NumVertices   int     `json:"num_vertices" validate:"required_without=HMetis,gte=0"`
	Edges         [][]int `json:"edges,omitempty" validate:"omitempty,dive,dive,gte=0"`
	EdgeWeights   []int64 `json:"edge_weights,omitempty" validate:"omitempty,dive,gte=0"`
	VertexWeights []int64 `json:"vertex_weights,omitempty" validate:"omitempty,dive,gte=0"`
	Fixed         []int   `json:"fixed,omitempty" validate:"omitempty,dive,gte=-1"`
}

// Build creates the hypergraph. The caller closes it.
func (p *HypergraphPayload) Build() (*hypergraph.Hypergraph, error) {
	var opts []hypergraph.Option
	if p.Fixed != nil {
		opts = append(opts, hypergraph.WithFixedVertices(p.Fixed))
	}
	if p.HMetis != "" {
		return hmetis.Read(strings.NewReader(p.HMetis), opts...)
	}
	if p.EdgeWeights != nil {
		opts = append(opts, hypergraph.WithEdgeWeights(p.EdgeWeights))
	}
	if p.VertexWeights != nil {
		opts = append(opts, hypergraph.WithVertexWeights(p.VertexWeights))
	}
	return hypergraph.FromEdges(p.NumVertices, p.Edges, opts...)
}

// PartitionRequest is the body of POST /api/v1/partition. Config holds
// configuration overrides such as {"partition.objective": "cut"}.
type PartitionRequest struct {
	Hypergraph HypergraphPayload      `json:"hypergraph"`
	K          int                    `json:"k" validate:"required,gte=2,lte=4096"`
	Epsilon    float64                `json:"epsilon" validate:"gte=0"`
	Config     map[string]interface{} `json:"config,omitempty"`
}

// Validate checks the request fields.
func (r *PartitionRequest) Validate() error {
	return requestValidate.Struct(r)
}

// ImproveRequest is the body of POST /api/v1/improve.
type ImproveRequest struct {
	PartitionRequest
	Previous   []int `json:"previous" validate:"required,dive,gte=0"`
	Iterations int   `json:"iterations" validate:"required,gte=1,lte=1000"`
}

// Validate checks the request fields.
func (r *ImproveRequest) Validate() error {
	return requestValidate.Struct(r)
}

// EvaluateRequest is the body of POST /api/v1/evaluate.
type EvaluateRequest struct {
	Hypergraph HypergraphPayload `json:"hypergraph"`
	K          int               `json:"k" validate:"required,gte=2,lte=4096"`
	Epsilon    float64           `json:"epsilon" validate:"gte=0"`
	Partition  []int             `json:"partition" validate:"required,dive,gte=0"`
	Objective  string            `json:"objective,omitempty" validate:"omitempty,oneof=cut km1 soed"`
}

// Validate checks the request fields.
func (r *EvaluateRequest) Validate() error {
	return requestValidate.Struct(r)
}
