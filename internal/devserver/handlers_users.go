package devserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/rbacadm/internal/api"
	"github.com/dropDatabas3/rbacadm/internal/observability/logger"
	"github.com/dropDatabas3/rbacadm/internal/rbac"
)

// canManageUsers replica la regla del cliente: admin implica manage_users.
func canManageUsers(actor rbac.User) bool {
	return actor.Role.IsAdmin() || actor.Role.HasPermission(rbac.PermManageUsers)
}

// handleListUsers maneja GET /users.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		WriteError(w, ErrUnauthorized)
		return
	}
	if !canManageUsers(actor) {
		WriteError(w, ErrForbidden)
		return
	}
	writeJSON(w, http.StatusOK, s.store.ListUsers())
}

// handleDeleteUser maneja DELETE /users/{id}.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("handler"), logger.Op("handleDeleteUser"))

	actor, ok := actorFrom(ctx)
	if !ok {
		WriteError(w, ErrUnauthorized)
		return
	}
	if !canManageUsers(actor) {
		WriteError(w, ErrForbidden)
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.store.DeleteUser(id); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			WriteError(w, ErrNotFound)
			return
		}
		log.Error("delete user failed", logger.Err(err))
		WriteError(w, ErrInternal.WithCause(err))
		return
	}

	log.Info("user deleted", logger.UserID(actor.ID), logger.TargetID(id))
	writeJSON(w, http.StatusNoContent, nil)
}

// handleAssignRole maneja POST /users/assign-role. Un usuario o rol
// inexistente responde 404: así el cliente distingue "id viejo" de "sin
// permiso".
func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("handler"), logger.Op("handleAssignRole"))

	actor, ok := actorFrom(ctx)
	if !ok {
		WriteError(w, ErrUnauthorized)
		return
	}

	var req api.AssignRoleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		WriteError(w, ErrInvalidJSON)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		WriteError(w, ErrValidation.WithDetail(err.Error()))
		return
	}

	// El cambio sobre uno mismo siempre está permitido; sobre terceros
	// exige gestión de usuarios. El server re-verifica aunque el cliente
	// ya haya decidido: la autorización nunca se delega al frontend.
	if req.UserID != actor.ID && !canManageUsers(actor) {
		WriteError(w, ErrForbidden)
		return
	}

	updated, err := s.store.AssignRole(req.UserID, req.RoleID)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrRoleNotFound):
			WriteError(w, ErrNotFound)
		default:
			log.Error("assign role failed", logger.Err(err))
			WriteError(w, ErrInternal.WithCause(err))
		}
		return
	}

	log.Info("role assigned",
		logger.UserID(actor.ID),
		logger.TargetID(req.UserID),
		logger.RoleID(req.RoleID),
	)
	writeJSON(w, http.StatusOK, updated)
}
