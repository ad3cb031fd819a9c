package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-compat/internal/engine"
	"github.com/nerrad567/gray-logic-compat/internal/export"
	"github.com/nerrad567/gray-logic-compat/internal/worker"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeNotLoaded    = "not_loaded"
	ErrCodeLoadFailed   = "load_failed"
	ErrCodeUnavailable  = "unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// classifyError maps a catalogue error to its HTTP status and code.
func classifyError(err error) (int, string) {
	var badPayload badPayloadError
	switch {
	case errors.As(err, &badPayload):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, engine.ErrNotLoaded):
		return http.StatusConflict, ErrCodeNotLoaded
	case errors.Is(err, engine.ErrLoadFailed):
		return http.StatusBadGateway, ErrCodeLoadFailed
	case errors.Is(err, engine.ErrUnknownColumn),
		errors.Is(err, engine.ErrInvalidInput),
		errors.Is(err, export.ErrInvalidSpec),
		errors.Is(err, worker.ErrNoSource):
		return http.StatusBadRequest, ErrCodeValidation
	case errors.Is(err, worker.ErrStopped):
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// writeCatalogError writes err with the status classifyError assigns.
// Internal errors are logged and their detail withheld from the client.
func (s *Server) writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("catalogue request failed",
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
		writeInternalError(w, "internal server error")
		return
	}
	writeError(w, status, code, err.Error())
}
