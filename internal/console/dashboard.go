package console

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/rbacadm/internal/rbac"
)

// Texto fijo para la variante degradada: el rol tiene nombre pero el set de
// permisos no está disponible.
const PermissionsUnavailableText = "Permissions information not available"

// AdminDashboard son los contadores que ve un administrador.
type AdminDashboard struct {
	UserCount int
	RoleCount int
}

// UserDashboard es la variante de un usuario regular: su identidad y sus
// permisos, o el aviso de que no están disponibles.
type UserDashboard struct {
	Name     string
	Email    string
	RoleName string
	// Permissions es nil cuando el rol está degradado o ausente; en ese caso
	// PermissionsUnavailable es true y la vista muestra el texto fijo.
	Permissions            []rbac.Permission
	PermissionsUnavailable bool
}

// Dashboard es una de dos variantes según el rol del actor.
type Dashboard struct {
	Admin *AdminDashboard
	User  *UserDashboard
}

// Dashboard arma la vista de inicio. La variante admin junta /users y /roles
// en paralelo y recién renderiza cuando ambas respuestas llegaron; un fallo
// de cualquiera de las dos aborta la vista completa.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	if err := s.requireAuth(); err != nil {
		return nil, err
	}

	if !s.session.IsAdmin() {
		role := s.session.Role
		return &Dashboard{User: &UserDashboard{
			Name:                   s.session.Name,
			Email:                  s.session.Email,
			RoleName:               role.Name(),
			Permissions:            role.Permissions(),
			PermissionsUnavailable: role.Missing() || role.Degraded(),
		}}, nil
	}

	var (
		users []rbac.User
		roles rbac.RoleList
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.backend.ListUsers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = s.backend.ListRoles(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.snap.SetUsers(users)
	s.snap.SetRoles(roles)

	return &Dashboard{Admin: &AdminDashboard{
		UserCount: len(users),
		RoleCount: len(roles),
	}}, nil
}
