package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/homiewatch/internal/homie"
)

// Error is the structured error response body.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeNotFound           = "not_found"
	ErrCodeConflict           = "conflict"
	ErrCodeInternal           = "internal_error"
	ErrCodeValidation         = "validation_error"
	ErrCodeServiceUnavailable = "service_unavailable"
)

// writeJSON encodes v before writing the header, so an unencodable value
// becomes a 500 instead of a truncated 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if v != nil {
		if err := json.NewEncoder(&buf).Encode(v); err != nil {
			buf.Reset()
			//nolint:errcheck // Error is always encodable
			json.NewEncoder(&buf).Encode(Error{
				Status:  http.StatusInternalServerError,
				Code:    ErrCodeInternal,
				Message: "failed to encode response",
			})
			status = http.StatusInternalServerError
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(buf.Bytes())
}

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

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

func writeServiceUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

// writeTreeError maps discovery tree errors to responses.
func writeTreeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, homie.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, homie.ErrNodeNotFound):
		writeNotFound(w, "node not found")
	case errors.Is(err, homie.ErrPropertyNotFound):
		writeNotFound(w, "property not found")
	case errors.Is(err, homie.ErrNotSettable):
		writeError(w, http.StatusConflict, ErrCodeConflict, "property is not settable")
	case errors.Is(err, homie.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		writeInternalError(w, "internal server error")
	}
}
