// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/usersapi/usersapi/internal/handler/dto"
	"github.com/usersapi/usersapi/internal/middleware"
	"github.com/usersapi/usersapi/internal/model"
	"github.com/usersapi/usersapi/internal/service"
)

// Version is reported by the service info endpoint.
const Version = "1.0.0"

// Handler serves the service-level endpoints.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// Hello describes the service.
// GET /
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "usersapi",
		"version": Version,
		"apis":    []string{"/v1/users", "/v2/users"},
		"openapi": "/openapi.yaml",
	})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// writeJSON writes a JSON response with the given status code. A nil
// data value is written as the JSON literal null.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}

func writeFieldErrors(w http.ResponseWriter, fields model.FieldErrors) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Error:  "Request body failed validation",
		Code:   "VALIDATION_FAILED",
		Fields: fields,
	})
}

// writeDecodeError answers a body that could not be bound.
func writeDecodeError(w http.ResponseWriter, err error) {
	if middleware.IsBodyTooLarge(err) {
		writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
}

// parseUserID reads the {id} path parameter.
func parseUserID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// handleServiceError maps service errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	var fields model.FieldErrors
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, service.ErrInvalidUser) && errors.As(err, &fields):
		writeFieldErrors(w, fields)
	default:
		logger.ErrorContext(r.Context(), "internal_error",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
