package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/partition"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 256 << 20

// Handlers contains HTTP request handlers
type Handlers struct {
	configFile string
	timeout    time.Duration
	started    time.Time
}

// NewHandlers creates the handlers. configFile, when set, provides the
// base configuration of every request; timeout bounds one partition call
// (zero means no bound).
func NewHandlers(configFile string, timeout time.Duration) *Handlers {
	return &Handlers{configFile: configFile, timeout: timeout, started: time.Now()}
}

// newContext builds the configuration of one request: defaults, the
// server's config file, then the request overrides.
func (h *Handlers) newContext(overrides map[string]interface{}) (*partition.Context, error) {
	cfg := partition.NewContext()
	if h.configFile != "" {
		if err := cfg.LoadFromFile(h.configFile); err != nil {
			return nil, err
		}
	}
	for key, value := range overrides {
		if strings.HasPrefix(strings.ToLower(key), "analysis.") {
			return nil, fmt.Errorf("%w: %s cannot be set per request", partition.ErrInvalidInput, key)
		}
		cfg.Set(key, value)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (h *Handlers) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout > 0 {
		return context.WithTimeout(r.Context(), h.timeout)
	}
	return context.WithCancel(r.Context())
}

// decode reads and validates a JSON body; on failure the response has
// already been written.
func decode(w http.ResponseWriter, r *http.Request, req interface{ Validate() error }) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		log.Error().Err(err).Str("request_id", RequestID(r)).Msg("Invalid request body")
		WriteErrorResponse(w, r, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := req.Validate(); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
			WriteValidationErrorResponse(w, r, "Invalid request", fields)
			return false
		}
		WriteErrorResponse(w, r, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

// writePartitionError maps partition errors to status codes.
func writePartitionError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := http.StatusInternalServerError, "Partitioning failed"
	switch {
	case errors.Is(err, partition.ErrInvalidInput), errors.Is(err, hypergraph.ErrWeightOverflow),
		errors.Is(err, hypergraph.ErrFixedVerticesSet):
		status, message = http.StatusBadRequest, "Invalid input"
	case errors.Is(err, partition.ErrResourceExhausted), errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusServiceUnavailable, "Time limit reached"
	}
	log.Error().Err(err).Str("request_id", RequestID(r)).Int("status", status).Msg(message)
	WriteErrorResponse(w, r, status, message, err)
}

// Partition handles POST /api/v1/partition.
func (h *Handlers) Partition(w http.ResponseWriter, r *http.Request) {
	var req PartitionRequest
	if !decode(w, r, &req) {
		return
	}
	cfg, err := h.newContext(req.Config)
	if err != nil {
		writePartitionError(w, r, err)
		return
	}
	defer cfg.Close()
	hg, err := req.Hypergraph.Build()
	if err != nil {
		writePartitionError(w, r, err)
		return
	}
	defer hg.Close()

	log.Info().
		Str("request_id", RequestID(r)).
		Int("vertices", hg.NumVertices()).
		Int("edges", hg.NumEdges()).
		Int("k", req.K).
		Float64("epsilon", req.Epsilon).
		Msg("Partition request received")

	ctx, cancel := h.requestContext(r)
	defer cancel()
	res, err := partition.Partition(ctx, hg, req.K, req.Epsilon, cfg)
	h.writeResult(w, r, "partition", res, err)
}

// Improve handles POST /api/v1/improve.
func (h *Handlers) Improve(w http.ResponseWriter, r *http.Request) {
	var req ImproveRequest
	if !decode(w, r, &req) {
		return
	}
	cfg, err := h.newContext(req.Config)
	if err != nil {
		writePartitionError(w, r, err)
		return
	}
	defer cfg.Close()
	hg, err := req.Hypergraph.Build()
	if err != nil {
		writePartitionError(w, r, err)
		return
	}
	defer hg.Close()

	ctx, cancel := h.requestContext(r)
	defer cancel()
	res, err := partition.ImprovePartition(ctx, hg, req.K, req.Epsilon, cfg, req.Previous, req.Iterations)
	h.writeResult(w, r, "improve", res, err)
}

// writeResult reports a partition result. A balance violation still
// returns 200 with balance_violated set.
func (h *Handlers) writeResult(w http.ResponseWriter, r *http.Request, operation string, res *partition.Result, err error) {
	if res != nil {
		observeResult(operation, res)
	}
	switch {
	case errors.Is(err, partition.ErrBalanceViolated) && res != nil:
		log.Warn().Str("request_id", RequestID(r)).Str("run_id", res.RunID).Msg("Balance constraint violated")
		WriteSuccessResponse(w, r, "Partition computed, balance constraint violated", res)
	case err != nil:
		writePartitionError(w, r, err)
	default:
		log.Info().
			Str("request_id", RequestID(r)).
			Str("run_id", res.RunID).
			Int64("objective", res.Objective).
			Int64("runtime_ms", res.RuntimeMS).
			Msg("Partition computed")
		WriteSuccessResponse(w, r, "Partition computed", res)
	}
}

// Evaluate handles POST /api/v1/evaluate.
func (h *Handlers) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !decode(w, r, &req) {
		return
	}
	hg, err := req.Hypergraph.Build()
	if err != nil {
		writePartitionError(w, r, err)
		return
	}
	defer hg.Close()

	name := req.Objective
	if name == "" {
		cfg, err := h.newContext(nil)
		if err != nil {
			writePartitionError(w, r, err)
			return
		}
		name = cfg.ObjectiveName()
	}
	obj, err := metrics.ParseObjective(name)
	if err != nil {
		writePartitionError(w, r, err)
		return
	}
	report, err := metrics.Evaluate(hg, req.Partition, req.K, req.Epsilon, obj)
	if err != nil {
		writePartitionError(w, r, err)
		return
	}
	WriteSuccessResponse(w, r, "Partition evaluated", report)
}

// HealthCheck handles GET /api/v1/health.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteSuccessResponse(w, r, "Service is healthy", map[string]interface{}{
		"status": "ok",
		"uptime": fmt.Sprint(time.Since(h.started).Round(time.Second)),
	})
}

// ConfigDefaults handles GET /api/v1/config/defaults.
func (h *Handlers) ConfigDefaults(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.newContext(nil)
	if err != nil {
		WriteErrorResponse(w, r, http.StatusInternalServerError, "Failed to load configuration", err)
		return
	}
	WriteSuccessResponse(w, r, "Configuration retrieved", cfg.Settings())
}
