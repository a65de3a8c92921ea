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

func canManageRoles(actor rbac.User) bool {
	return actor.Role.IsAdmin() || actor.Role.HasPermission(rbac.PermManageRoles)
}

// handleListRoles maneja GET /roles. Cualquier sesión autenticada puede
// listar roles: el catálogo se necesita para resolver nombres en pantalla.
func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFrom(r.Context()); !ok {
		WriteError(w, ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, s.store.ListRoles())
}

// handleCreateRole maneja POST /roles.
func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("handler"), logger.Op("handleCreateRole"))

	actor, ok := actorFrom(ctx)
	if !ok {
		WriteError(w, ErrUnauthorized)
		return
	}
	if !canManageRoles(actor) {
		WriteError(w, ErrForbidden)
		return
	}

	var req api.RoleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		WriteError(w, ErrInvalidJSON)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		WriteError(w, ErrValidation.WithDetail(err.Error()))
		return
	}

	role, err := s.store.CreateRole(req.Name, req.Permissions)
	if err != nil {
		if errors.Is(err, ErrDuplicateRole) {
			WriteError(w, ErrConflict.WithDetail("ya existe un rol con ese nombre"))
			return
		}
		log.Error("create role failed", logger.Err(err))
		WriteError(w, ErrInternal.WithCause(err))
		return
	}

	log.Info("role created", logger.UserID(actor.ID), logger.RoleName(role.Name))
	writeJSON(w, http.StatusCreated, role)
}

// handleUpdateRole maneja PUT /roles/{id}.
func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("handler"), logger.Op("handleUpdateRole"))

	actor, ok := actorFrom(ctx)
	if !ok {
		WriteError(w, ErrUnauthorized)
		return
	}
	if !canManageRoles(actor) {
		WriteError(w, ErrForbidden)
		return
	}

	var req api.RoleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		WriteError(w, ErrInvalidJSON)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		WriteError(w, ErrValidation.WithDetail(err.Error()))
		return
	}

	id := chi.URLParam(r, "id")
	role, err := s.store.UpdateRole(id, req.Name, req.Permissions)
	if err != nil {
		switch {
		case errors.Is(err, ErrRoleNotFound):
			WriteError(w, ErrNotFound)
		case errors.Is(err, ErrDuplicateRole):
			WriteError(w, ErrConflict.WithDetail("ya existe un rol con ese nombre"))
		default:
			log.Error("update role failed", logger.Err(err))
			WriteError(w, ErrInternal.WithCause(err))
		}
		return
	}

	log.Info("role updated", logger.UserID(actor.ID), logger.RoleID(id))
	writeJSON(w, http.StatusOK, role)
}

// handleDeleteRole maneja DELETE /roles/{id}. Los usuarios que tenían el rol
// quedan con la referencia degradada (solo el nombre) hasta reasignación.
func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("handler"), logger.Op("handleDeleteRole"))

	actor, ok := actorFrom(ctx)
	if !ok {
		WriteError(w, ErrUnauthorized)
		return
	}
	if !canManageRoles(actor) {
		WriteError(w, ErrForbidden)
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.store.DeleteRole(id); err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			WriteError(w, ErrNotFound)
			return
		}
		log.Error("delete role failed", logger.Err(err))
		WriteError(w, ErrInternal.WithCause(err))
		return
	}

	log.Info("role deleted", logger.UserID(actor.ID), logger.RoleID(id))
	writeJSON(w, http.StatusNoContent, nil)
}
