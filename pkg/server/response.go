package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// APIResponse is the envelope of every response.
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// WriteSuccessResponse writes a 200 JSON response.
func WriteSuccessResponse(w http.ResponseWriter, r *http.Request, message string, data interface{}) {
	writeJSONResponse(w, http.StatusOK, APIResponse{
		Success:   true,
		Message:   message,
		RequestID: RequestID(r),
		Data:      data,
	})
}

// WriteErrorResponse writes an error JSON response.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	response := APIResponse{
		Success:   false,
		Message:   message,
		RequestID: RequestID(r),
	}
	if err != nil {
		response.Error = err.Error()
	}
	writeJSONResponse(w, statusCode, response)
}

// WriteValidationErrorResponse writes a 400 response listing the failed
// field rules.
func WriteValidationErrorResponse(w http.ResponseWriter, r *http.Request, message string, errors map[string]string) {
	writeJSONResponse(w, http.StatusBadRequest, APIResponse{
		Success:   false,
		Message:   message,
		RequestID: RequestID(r),
		Data:      map[string]interface{}{"validation_errors": errors},
		Error:     "validation failed",
	})
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().
			Err(err).
			Int("status_code", statusCode).
			Msg("Failed to encode JSON response")
	}
}
