// Package response provides JSON encoding and decoding helpers for HTTP
// handlers using json/v2.
package response

import (
	"encoding/json/v2"
	"log/slog"
	"net/http"
)

// errorBody is the JSON shape of transport-level error responses.
type errorBody struct {
	Error string `json:"error"`
}

// JSON writes v as the response body with the given status code.
//
// Bodies are written verbatim: the drain and stats endpoints have an
// exact wire contract, so no envelope is added.
func JSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.MarshalWrite(w, v); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// OK writes v with a 200 status.
func OK(w http.ResponseWriter, v any, logger *slog.Logger) {
	JSON(w, http.StatusOK, v, logger)
}

// Error writes an error response with the given status code.
func Error(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	JSON(w, status, errorBody{Error: message}, logger)
}

// BadRequest writes a 400 Bad Request response.
func BadRequest(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusBadRequest, message, logger)
}

// TooManyRequests writes a 429 Too Many Requests response.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusTooManyRequests, message, logger)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusInternalServerError, message, logger)
}

// Decode reads the request body into v. A decode failure is the caller's
// cue to reply 400.
func Decode(r *http.Request, v any) error {
	return json.UnmarshalRead(r.Body, v)
}
