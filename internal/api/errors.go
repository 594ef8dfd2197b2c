package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/iedsim/internal/register"
	"github.com/nerrad567/iedsim/internal/snapshot"
	"github.com/nerrad567/iedsim/internal/variables"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeOutOfRange      = "out_of_range"
	ErrCodeInvalidValue    = "invalid_value"
	ErrCodeNotFound        = "not_found"
	ErrCodeInvalidSnapshot = "invalid_snapshot"
	ErrCodeInternal        = "internal_error"
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

// writeBadRequest writes a 400 invalid_request response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeCoreError maps an error from the register, variables or snapshot
// packages onto a response. Unknown errors are logged and answered with 500.
func (s *Server) writeCoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, snapshot.ErrInvalidSnapshot), errors.Is(err, snapshot.ErrUnknownFormat):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidSnapshot, err.Error())
	case errors.Is(err, register.ErrOutOfRange):
		writeError(w, http.StatusBadRequest, ErrCodeOutOfRange, err.Error())
	case errors.Is(err, register.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidValue, err.Error())
	case errors.Is(err, register.ErrUnknownBank), errors.Is(err, variables.ErrInvalidName):
		writeBadRequest(w, err.Error())
	case errors.Is(err, variables.ErrNotFound):
		writeNotFound(w, err.Error())
	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID(r),
			"error", err,
		)
		writeInternalError(w, "internal server error")
	}
}
