package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/usersapi/usersapi/internal/handler/dto"
	"github.com/usersapi/usersapi/internal/middleware"
	"github.com/usersapi/usersapi/internal/model"
	"github.com/usersapi/usersapi/internal/service"
)

// UserV1Handler serves the legacy /v1/users API. It binds bodies leniently
// and answers 200 for every outcome that is not a malformed request.
type UserV1Handler struct {
	service *service.UserService
	logger  *slog.Logger
}

// NewUserV1Handler creates a new UserV1Handler.
func NewUserV1Handler(svc *service.UserService, logger *slog.Logger) *UserV1Handler {
	return &UserV1Handler{service: svc, logger: logger}
}

// Register mounts the user routes on r.
func (h *UserV1Handler) Register(r chi.Router) {
	r.Get("/users", h.List)
	r.Post("/users", h.Create)
	r.Get("/users/{id}", h.Get)
	r.Put("/users/{id}", h.Update)
	r.Delete("/users/{id}", h.Delete)
}

// List handles GET /v1/users. A state parameter, even an empty one,
// switches to an exact-match filter.
func (h *UserV1Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var (
		users []*model.User
		err   error
	)
	if query.Has("state") {
		users, err = h.service.ListByState(ctx, query.Get("state"))
	} else {
		users, err = h.service.List(ctx)
	}
	if err != nil {
		handleServiceError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// Get handles GET /v1/users/{id}. An unknown id yields 200 with null.
func (h *UserV1Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "User id must be an integer")
		return
	}

	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		handleServiceError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Create handles POST /v1/users. The body is saved as-is, including any
// client-supplied id.
func (h *UserV1Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := dto.DecodeUser(r.Body)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "user_received",
		slog.Int64("id", user.ID),
		slog.String("first_name", user.FirstName),
		slog.String("last_name", user.LastName),
		slog.String("state", user.State),
		slog.String("request_id", middleware.GetRequestID(ctx)),
	)

	saved, err := h.service.Save(ctx, user)
	if err != nil {
		handleServiceError(w, h.logger, r, err)
		return
	}

	h.logger.InfoContext(ctx, "user_saved", slog.Int64("user_id", saved.ID))
	writeJSON(w, http.StatusOK, saved)
}

// Update handles PUT /v1/users/{id}. The path id wins over the body id and
// an unknown id is inserted.
func (h *UserV1Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := parseUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "User id must be an integer")
		return
	}

	user, err := dto.DecodeUser(r.Body)
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	user.ID = id

	saved, err := h.service.Save(ctx, user)
	if err != nil {
		handleServiceError(w, h.logger, r, err)
		return
	}

	h.logger.InfoContext(ctx, "user_saved", slog.Int64("user_id", saved.ID))
	writeJSON(w, http.StatusOK, saved)
}

// Delete handles DELETE /v1/users/{id}. Deleting an unknown id succeeds.
func (h *UserV1Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "User id must be an integer")
		return
	}

	if err := h.service.DeleteIfExists(r.Context(), id); err != nil {
		handleServiceError(w, h.logger, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
