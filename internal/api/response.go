package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/graaaaa/roomcheck/internal/auth"
	"github.com/graaaaa/roomcheck/internal/domain"
	"github.com/graaaaa/roomcheck/internal/lib/logger/sl"
)

// maxBodyBytes limits JSON request bodies.
const maxBodyBytes = 1 << 20

// messageResponse is the body of every error and of plain acknowledgements.
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON encodes v as JSON and writes it to the response.
// It buffers the encoding to detect errors before writing headers.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("json encode failed", sl.Err(err))
		writeErrorFallback(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Debug("write response failed", sl.Err(err))
	}
}

// writeMessage writes {"message": msg}.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// writeError writes a JSON error response with consistent format.
// For 5xx errors the cause is logged and clients see a generic message.
func writeError(w http.ResponseWriter, r *http.Request, status int, public string, err error) {
	if public == "" {
		public = http.StatusText(status)
	}
	if status >= 500 && err != nil {
		loggerFrom(r).Error("request failed", "status", status, sl.Err(err))
	}
	writeMessage(w, status, public)
}

// writeDomainError maps an error to a status by its domain kind.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		writeError(w, r, status, "internal error", err)
		return
	}
	writeError(w, r, status, err.Error(), nil)
}

func statusFor(err error) int {
	if errors.Is(err, auth.ErrInvalidCredentials) ||
		errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrTokenExpired) ||
		errors.Is(err, auth.ErrInvalidScope) {
		return http.StatusUnauthorized
	}
	switch domain.Kind(err) {
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrPreconditionFailed, domain.ErrValidationFailed, domain.ErrConflict:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeErrorFallback writes a plain text error when JSON encoding fails.
func writeErrorFallback(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(message))
}

// decodeJSON strictly decodes a size-limited request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Validation("request body is empty")
		}
		return domain.Validation("invalid request body")
	}
	return nil
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validation(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}
