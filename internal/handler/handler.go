// Package handler provides HTTP request handlers. Handlers decode and
// validate input, delegate to exactly one service operation and render the
// result; domain errors are mapped to statuses in writeServiceError.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/stacklane/stacklane/internal/handler/dto"
	"github.com/stacklane/stacklane/internal/repository"
)

// Version is reported by the root endpoint.
const Version = "0.1.0"

// Handler serves the informational and fallback endpoints.
type Handler struct {
	name string
}

// New creates a new Handler instance.
func New(name string) *Handler {
	return &Handler{name: name}
}

// Info describes the running service.
// GET /
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    h.name,
		"version": Version,
		"docs":    "/openapi.yaml",
	})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, codeNotFound, "Resource not found", "")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", "")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message, field string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code, Field: field})
}

// decodeJSON decodes the body into dst and runs struct validation.
// It writes the error response itself and reports whether to continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", "")
			return false
		}
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "Invalid request body", "")
		return false
	}
	if err := dto.Validate(dst); err != nil {
		writeServiceError(w, r, logger, err)
		return false
	}
	return true
}

// pageParams reads ?skip and ?limit. Values are clamped by the service;
// non-integers are rejected.
func pageParams(r *http.Request) (repository.Page, error) {
	skip, err := intParam(r, "skip", 0)
	if err != nil {
		return repository.Page{}, err
	}
	limit, err := intParam(r, "limit", repository.DefaultLimit)
	if err != nil {
		return repository.Page{}, err
	}
	return repository.NormalizePage(skip, limit), nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam(name)
	}
	return n, nil
}
