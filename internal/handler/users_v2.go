package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/usersapi/usersapi/internal/handler/dto"
	"github.com/usersapi/usersapi/internal/metrics"
	"github.com/usersapi/usersapi/internal/middleware"
	"github.com/usersapi/usersapi/internal/service"
)

// UserV2Handler serves the validated /v2/users API.
type UserV2Handler struct {
	service *service.UserService
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewUserV2Handler creates a new UserV2Handler.
func NewUserV2Handler(svc *service.UserService, recorder metrics.Recorder, logger *slog.Logger) *UserV2Handler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &UserV2Handler{service: svc, metrics: recorder, logger: logger}
}

// Register mounts the user routes on r.
func (h *UserV2Handler) Register(r chi.Router) {
	r.Get("/users", h.List)
	r.Post("/users", h.Create)
	r.Get("/users/{id}", h.Get)
	r.Put("/users/{id}", h.Update)
	r.Delete("/users/{id}", h.Delete)
}

// List handles GET /v2/users?state=.
func (h *UserV2Handler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("state") {
		writeError(w, http.StatusBadRequest, "MISSING_STATE", "Query parameter state is required")
		return
	}

	users, err := h.service.ListByState(r.Context(), query.Get("state"))
	if err != nil {
		handleServiceError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// Get handles GET /v2/users/{id}.
func (h *UserV2Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "User id must be an integer")
		return
	}

	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Create handles POST /v2/users.
func (h *UserV2Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, fields, err := dto.DecodeValidatedUser(r.Body)
	if err != nil {
		h.metrics.IncValidationFailed()
		writeDecodeError(w, err)
		return
	}
	if fields != nil {
		h.metrics.IncValidationFailed()
		writeFieldErrors(w, fields)
		return
	}

	created, err := h.service.Create(ctx, user)
	if err != nil {
		handleServiceError(w, h.logger, r, err)
		return
	}

	h.logger.InfoContext(ctx, "user_created",
		slog.Int64("user_id", created.ID),
		slog.String("request_id", middleware.GetRequestID(ctx)),
	)

	w.Header().Set("Location", "/v2/users/"+strconv.FormatInt(created.ID, 10))
	writeJSON(w, http.StatusCreated, created)
}

// Update handles PUT /v2/users/{id}. An unknown id is reported before the
// body is looked at.
func (h *UserV2Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := parseUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "User id must be an integer")
		return
	}

	if _, err := h.service.Get(ctx, id); err != nil {
		handleServiceError(w, h.logger, r, err)
		return
	}

	user, fields, err := dto.DecodeValidatedUser(r.Body)
	if err != nil {
		h.metrics.IncValidationFailed()
		writeDecodeError(w, err)
		return
	}
	if fields != nil {
		h.metrics.IncValidationFailed()
		writeFieldErrors(w, fields)
		return
	}

	updated, err := h.service.Replace(ctx, id, user)
	if err != nil {
		handleServiceError(w, h.logger, r, err)
		return
	}

	h.logger.InfoContext(ctx, "user_updated",
		slog.Int64("user_id", updated.ID),
		slog.String("request_id", middleware.GetRequestID(ctx)),
	)

	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /v2/users/{id}.
func (h *UserV2Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := parseUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "User id must be an integer")
		return
	}

	if err := h.service.Delete(ctx, id); err != nil {
		handleServiceError(w, h.logger, r, err)
		return
	}

	h.logger.InfoContext(ctx, "user_deleted",
		slog.Int64("user_id", id),
		slog.String("request_id", middleware.GetRequestID(ctx)),
	)

	w.WriteHeader(http.StatusOK)
}
