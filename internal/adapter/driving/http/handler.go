package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/ingestgate/internal/application"
	"github.com/ericfisherdev/ingestgate/internal/domain/port/driven"
	"github.com/ericfisherdev/ingestgate/internal/logging"
)

const (
	maxBodyBytes  = 1 << 20
	healthTimeout = 2 * time.Second
)

// Handler is the HTTP driving adapter that serves the admin API.
type Handler struct {
	issuer     *application.CredentialIssuer
	adminToken string
	logger     *slog.Logger
}

// NewHandler creates a Handler. When adminToken is non-empty the user
// endpoints require it as a bearer token.
func NewHandler(issuer *application.CredentialIssuer, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{
		issuer:     issuer,
		adminToken: strings.TrimSpace(adminToken),
		logger:     logger,
	}
}

// NewServeMux creates an http.Handler with the admin routes registered and
// wrapped with request-id, logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /create-user", requireBearer(h.adminToken, http.HandlerFunc(h.CreateUser)))
	mux.Handle("GET /user/{id}", requireBearer(h.adminToken, http.HandlerFunc(h.GetUser)))
	mux.HandleFunc("GET /api/v1/health", h.Health)

	return wrap(mux, logger)
}

// wrap applies the shared middleware chain. Recovery innermost so panics are
// caught before logging.
func wrap(next http.Handler, logger *slog.Logger) http.Handler {
	wrapped := recoveryMiddleware(logger, next)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = requestIDMiddleware(wrapped)
	return wrapped
}

// CreateUser issues a stream credential for a new identity.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cred, err := h.issuer.Issue(r.Context(), req.identity())
	if err != nil {
		h.writeServiceError(r.Context(), w, "failed to create user", err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(cred))
}

// GetUser returns a previously issued record by its id.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "user id required")
		return
	}

	cred, err := h.issuer.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(r.Context(), w, "failed to get user", err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(cred))
}

// Health reports whether the credential store is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339)
	if err := h.issuer.Ping(ctx); err != nil {
		logging.WithContext(r.Context(), h.logger).Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Time: now})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Time: now})
}

// writeServiceError maps issuer errors onto status codes.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, driven.ErrAlreadyExists):
		writeError(w, http.StatusBadRequest, driven.ErrAlreadyExists.Error())
	case errors.Is(err, application.ErrInvalidIdentity):
		writeError(w, http.StatusBadRequest, application.ErrInvalidIdentity.Error())
	case errors.Is(err, driven.ErrNotFound):
		writeError(w, http.StatusNotFound, driven.ErrNotFound.Error())
	case errors.Is(err, driven.ErrStoreUnavailable):
		logging.WithContext(ctx, h.logger).Error(msg, "error", err)
		writeError(w, http.StatusServiceUnavailable, "credential store unavailable")
	default:
		logging.WithContext(ctx, h.logger).Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
