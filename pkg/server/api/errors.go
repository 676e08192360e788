package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fluxgate/fluxgate/pkg/engine"
	"github.com/fluxgate/fluxgate/pkg/tasks"
)

// ErrorResponse represents a standard JSON error response.
// Used consistently across all API endpoints for error responses.
//
// Example:
//
//	{
//	  "error": "Not Found",
//	  "code": "TASK_NOT_FOUND",
//	  "message": "task \"a1b2\" not found"
//	}
type ErrorResponse struct {
	Error   string `json:"error"`             // Short error type (e.g., "Not Found", "Internal Server Error")
	Code    string `json:"code,omitempty"`    // Machine-readable error code (e.g., "TASK_NOT_FOUND", "INVALID_INPUT")
	Message string `json:"message,omitempty"` // Detailed error message (optional)

	// Status carries the task's current lifecycle state on TASK_NOT_READY
	// responses so pollers can branch without a second request.
	Status string `json:"status,omitempty"`
}

// WriteError writes a standard JSON error response to the client.
// It automatically determines the HTTP status code based on error type:
//   - tasks.NotFoundError → 404 Not Found
//   - tasks.NotReadyError → 409 Conflict (with the task's current status)
//   - engine.InitError → 503 Service Unavailable
//   - engine.GenerateError → 500 Internal Server Error
//   - All other errors → 500 Internal Server Error
//
// It also logs the error with structured logging for observability.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var statusCode int
	var errorType string
	var errorCode string
	var taskStatus string

	var notFoundErr *tasks.NotFoundError
	var notReadyErr *tasks.NotReadyError
	var initErr *engine.InitError
	var genErr *engine.GenerateError

	switch {
	case errors.As(err, &notFoundErr):
		statusCode = http.StatusNotFound
		errorType = "Not Found"
		errorCode = "TASK_NOT_FOUND"
	case errors.As(err, &notReadyErr):
		statusCode = http.StatusConflict
		errorType = "Conflict"
		errorCode = "TASK_NOT_READY"
		taskStatus = notReadyErr.Status.String()
	case errors.As(err, &initErr):
		statusCode = http.StatusServiceUnavailable
		errorType = "Service Unavailable"
		errorCode = "ENGINE_INIT_FAILED"
	case errors.As(err, &genErr):
		statusCode = http.StatusInternalServerError
		errorType = "Internal Server Error"
		errorCode = "GENERATION_FAILED"
	default:
		statusCode = http.StatusInternalServerError
		errorType = "Internal Server Error"
		errorCode = "INTERNAL_ERROR"
	}

	logEvent := log.Error().
		Str("component", "api").
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", statusCode).
		Str("error_code", errorCode).
		Err(err)

	if statusCode == http.StatusNotFound {
		logEvent.Msg("Resource not found")
	} else if statusCode >= 500 {
		logEvent.Msg("Internal server error")
	} else {
		logEvent.Msg("Client error")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   errorType,
		Code:    errorCode,
		Message: err.Error(),
		Status:  taskStatus,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().
			Str("component", "api").
			Err(err).
			Msg("Failed to encode error response")
	}
}

// WriteJSONError writes a custom JSON error response with a specific status
// code. Use this when you need fine-grained control over the error response.
//
// Example:
//
//	WriteJSONError(w, http.StatusBadRequest, "Bad Request", "PROMPT_REQUIRED", "prompt must not be empty")
func WriteJSONError(w http.ResponseWriter, statusCode int, errorType, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   errorType,
		Code:    errorCode,
		Message: message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().
			Str("component", "api").
			Err(err).
			Msg("Failed to encode error response")
	}
}

// WriteJSON writes a JSON response to the client.
// Use this for successful API responses.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().
			Str("component", "api").
			Err(err).
			Msg("Failed to encode JSON response")
	}
}
