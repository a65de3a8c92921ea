package devserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dropDatabas3/rbacadm/internal/api"
	"github.com/dropDatabas3/rbacadm/internal/observability/logger"
)

// handleLogin maneja POST /auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("handler"), logger.Op("handleLogin"))

	var req api.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		WriteError(w, ErrInvalidJSON)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		WriteError(w, ErrValidation.WithDetail(err.Error()))
		return
	}

	user, token, err := s.store.Authenticate(req.Email, req.Password)
	if err != nil {
		// Mismo error para email inexistente y password incorrecto.
		WriteError(w, ErrUnauthorized.WithDetail("credenciales inválidas"))
		return
	}

	log.Info("login ok", logger.UserID(user.ID))
	writeJSON(w, http.StatusOK, api.LoginResponse{Token: token, User: user})
}

// handleGetProfile maneja GET /auth/profile: la identidad canónica de la
// sesión, usada para re-verificar permisos después de una anomalía.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		WriteError(w, ErrUnauthorized)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, actor)
}

// handleUpdateProfile maneja PUT /auth/profile.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("handler"), logger.Op("handleUpdateProfile"))

	actor, ok := actorFrom(ctx)
	if !ok {
		WriteError(w, ErrUnauthorized)
		return
	}

	var req api.ProfileUpdateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		WriteError(w, ErrInvalidJSON)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		WriteError(w, ErrValidation.WithDetail(err.Error()))
		return
	}
	if req.NewPassword != "" && req.CurrentPassword == "" {
		WriteError(w, ErrValidation.WithDetail("currentPassword requerido para cambiar el password"))
		return
	}

	updated, err := s.store.UpdateProfile(actor.ID, req.Name, req.Email, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadCredentials):
			WriteError(w, ErrValidation.WithDetail("el password actual es incorrecto"))
		case errors.Is(err, ErrUserNotFound):
			WriteError(w, ErrNotFound)
		default:
			log.Error("update profile failed", logger.Err(err))
			WriteError(w, ErrInternal.WithCause(err))
		}
		return
	}

	log.Info("profile updated", logger.UserID(actor.ID))
	writeJSON(w, http.StatusOK, updated)
}
