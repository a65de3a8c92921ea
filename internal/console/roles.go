package console

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/rbacadm/internal/rbac"
)

// ErrRolesForbidden: la gestión de roles está reservada a administradores.
var ErrRolesForbidden = errors.New("you do not have permission to manage roles")

// Roles arma la vista del catálogo de roles. Listar está abierto a cualquier
// sesión autenticada; mutar exige admin.
func (s *Service) Roles(ctx context.Context) (rbac.RoleList, error) {
	if err := s.requireAuth(); err != nil {
		return nil, err
	}
	return s.roles(ctx)
}

// validatePermissions rechaza tokens fuera del catálogo conocido antes de
// tocar el backend.
func validatePermissions(permissions []string) error {
	known := make(map[string]struct{}, len(rbac.KnownPermissions()))
	for _, p := range rbac.KnownPermissions() {
		known[p] = struct{}{}
	}
	for _, p := range permissions {
		if _, ok := known[p]; !ok {
			return fmt.Errorf("unknown permission %q", p)
		}
	}
	return nil
}

func (s *Service) requireRoleAdmin() error {
	if err := s.requireAuth(); err != nil {
		return err
	}
	if !s.session.IsAdmin() {
		return ErrRolesForbidden
	}
	return nil
}

// CreateRole crea un rol nuevo. El snapshot de roles se invalida sólo en
// éxito.
func (s *Service) CreateRole(ctx context.Context, name string, permissions []string) (Notification, error) {
	if err := s.requireRoleAdmin(); err != nil {
		return notifyErr(err), err
	}
	if err := validatePermissions(permissions); err != nil {
		return notifyErr(err), err
	}

	role, err := s.backend.CreateRole(ctx, name, permissions)
	if err != nil {
		return notifyErr(err), err
	}
	s.snap.InvalidateRoles()
	return notifyOK("role " + role.Name + " created"), nil
}

// UpdateRole reemplaza nombre y permisos de un rol.
func (s *Service) UpdateRole(ctx context.Context, id, name string, permissions []string) (Notification, error) {
	if err := s.requireRoleAdmin(); err != nil {
		return notifyErr(err), err
	}
	if err := validatePermissions(permissions); err != nil {
		return notifyErr(err), err
	}

	role, err := s.backend.UpdateRole(ctx, id, name, permissions)
	if err != nil {
		return notifyErr(err), err
	}
	s.snap.InvalidateRoles()
	s.snap.InvalidateUsers()
	return notifyOK("role " + role.Name + " updated"), nil
}

// DeleteRole elimina un rol. Los usuarios que lo tenían quedan con la
// referencia degradada hasta reasignación, que es lo que la próxima lista
// confirmada va a mostrar.
func (s *Service) DeleteRole(ctx context.Context, id string) (Notification, error) {
	if err := s.requireRoleAdmin(); err != nil {
		return notifyErr(err), err
	}

	if err := s.backend.DeleteRole(ctx, id); err != nil {
		return notifyErr(err), err
	}
	s.snap.InvalidateRoles()
	s.snap.InvalidateUsers()
	return notifyOK("role deleted"), nil
}
