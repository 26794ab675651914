package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/nest-unify/internal/bridges/entitybus"
	"github.com/nerrad567/nest-unify/internal/climate"
	"github.com/nerrad567/nest-unify/internal/pairing"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeUnavailable    = "sources_unavailable"
	ErrCodeUpstreamFailed = "upstream_failed"
	ErrCodeTimeout        = "upstream_timeout"
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

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps domain errors to HTTP responses.
//
// Validation failures (bad names, out-of-range setpoints) are client errors.
// Upstream failures map to gateway statuses so callers can distinguish "you
// asked for something impossible" from "the thermostat did not respond".
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pairing.ErrPairNotFound),
		errors.Is(err, climate.ErrInstanceNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, pairing.ErrDuplicatePair),
		errors.Is(err, climate.ErrInstanceExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, pairing.ErrInvalidName),
		errors.Is(err, pairing.ErrInvalidEntity),
		errors.Is(err, climate.ErrCommandRejected):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, climate.ErrAllSourcesUnavailable),
		errors.Is(err, climate.ErrSourceUnavailable):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	case errors.Is(err, entitybus.ErrCommandTimeout):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, err.Error())
	case errors.Is(err, entitybus.ErrCommandFailed),
		errors.Is(err, entitybus.ErrNotConnected):
		writeError(w, http.StatusBadGateway, ErrCodeUpstreamFailed, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
