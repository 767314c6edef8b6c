package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/usersapi/usersapi/internal/auth"
	"github.com/usersapi/usersapi/internal/model"
	"github.com/usersapi/usersapi/internal/repository"
)

// APIKeyStore persists API keys.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*model.APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// KeyRevoker tells authenticators that a key is no longer valid so cached
// auth contexts stop being honored.
type KeyRevoker interface {
	MarkKeyRevoked(ctx context.Context, keyID string) error
}

// APIKeyHandler handles API key administration endpoints.
type APIKeyHandler struct {
	logger  *slog.Logger
	store   APIKeyStore
	revoker KeyRevoker
	params  auth.Params
}

// NewAPIKeyHandler creates a new APIKeyHandler. revoker may be nil.
func NewAPIKeyHandler(logger *slog.Logger, store APIKeyStore, revoker KeyRevoker, params auth.Params) *APIKeyHandler {
	return &APIKeyHandler{
		logger:  logger,
		store:   store,
		revoker: revoker,
		params:  params,
	}
}

// APIKeyCreateRequest is the body of POST /admin/keys.
type APIKeyCreateRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

// APIKeyCreateResponse carries the plaintext key. It is returned once.
type APIKeyCreateResponse struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name,omitempty"`
	KeyPrefix string    `json:"key_prefix"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"created_at"`
}

// Register mounts the key routes on r.
func (h *APIKeyHandler) Register(r chi.Router) {
	r.Get("/keys", h.ListAPIKeys)
	r.Post("/keys", h.CreateAPIKey)
	r.Delete("/keys/{keyID}", h.RevokeAPIKey)
}

// CreateAPIKey handles POST /admin/keys
func (h *APIKeyHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req APIKeyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	// Default to read scope if none provided
	scopes := []string{model.ScopeRead}
	if len(req.Scopes) > 0 {
		parsed, err := model.ParseScopes(strings.Join(req.Scopes, ","))
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_SCOPE",
				"Invalid scope. Valid scopes: "+strings.Join(model.ValidScopes, ", "))
			return
		}
		scopes = parsed
	}

	generated, err := auth.GenerateKey(auth.EnvLive, h.params)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate API key")
		return
	}

	key := &model.APIKey{
		ID:        ulid.Make().String(),
		Name:      req.Name,
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		Scopes:    scopes,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.store.CreateAPIKey(ctx, key); err != nil {
		h.logger.ErrorContext(ctx, "failed to create API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create API key")
		return
	}

	h.logger.InfoContext(ctx, "api_key_created",
		slog.String("key_id", key.ID),
		slog.String("key_prefix", key.KeyPrefix),
		slog.String("created_by", auth.KeyIDFromContext(ctx)),
	)

	writeJSON(w, http.StatusCreated, APIKeyCreateResponse{
		ID:        key.ID,
		Key:       generated.Plaintext,
		Name:      key.Name,
		KeyPrefix: key.KeyPrefix,
		Scopes:    key.Scopes,
		CreatedAt: key.CreatedAt,
	})
}

// ListAPIKeys handles GET /admin/keys
func (h *APIKeyHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAPIKeys(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

// RevokeAPIKey handles DELETE /admin/keys/{keyID}
func (h *APIKeyHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	keyID := chi.URLParam(r, "keyID")

	if err := h.store.RevokeAPIKey(ctx, keyID); err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			// Not found and already revoked look the same.
			writeError(w, http.StatusNotFound, "KEY_NOT_FOUND", "API key not found or already revoked")
			return
		}
		handleServiceError(w, h.logger, r, err)
		return
	}

	if h.revoker != nil {
		if err := h.revoker.MarkKeyRevoked(ctx, keyID); err != nil {
			h.logger.WarnContext(ctx, "failed to mark key revoked in cache",
				slog.String("key_id", keyID),
				slog.String("error", err.Error()),
			)
		}
	}

	h.logger.InfoContext(ctx, "api_key_revoked",
		slog.String("key_id", keyID),
		slog.String("revoked_by", auth.KeyIDFromContext(ctx)),
	)

	w.WriteHeader(http.StatusNoContent)
}
