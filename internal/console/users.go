package console

import (
	"context"
	"errors"

	"github.com/dropDatabas3/rbacadm/internal/observability/logger"
	"github.com/dropDatabas3/rbacadm/internal/rbac"
)

// ErrUsersForbidden: la sesión no tiene acceso a la vista de usuarios.
var ErrUsersForbidden = errors.New(rbac.ReasonNoPermission)

// UserRow es una fila de la lista de usuarios, con el flag de edición
// resuelto contra la sesión actuante.
type UserRow struct {
	User rbac.User
	// Editable: la consola habilita el selector de rol para esta fila. El
	// actor siempre puede editar su propia fila; las demás exigen
	// manage_users.
	Editable bool
}

// Users arma la vista de usuarios. Gate: IsAdmin() || manage_users.
func (s *Service) Users(ctx context.Context) ([]UserRow, error) {
	if err := s.requireAuth(); err != nil {
		return nil, err
	}
	if !s.session.CanManageUsers() {
		return nil, ErrUsersForbidden
	}

	users, err := s.users(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]UserRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, UserRow{
			User:     u,
			Editable: s.session.CanEditRow(u.ID),
		})
	}
	return rows, nil
}

// RoleChange es el resultado de proponer una reasignación de rol. Cuando
// Pending no es nil, el cambio sigue vivo y espera Confirm/Cancel/Apply;
// cuando lo es, la propuesta fue denegada y Notification dice por qué.
type RoleChange struct {
	Evaluation   rbac.Evaluation
	Notification *Notification
}

// ProposeRoleChange evalúa "poner el rol roleID al usuario targetID" contra
// la sesión y la lista de roles vigente. Una denegación garantiza cero
// llamadas de mutación al backend.
func (s *Service) ProposeRoleChange(ctx context.Context, targetID, roleID string) (RoleChange, error) {
	if err := s.requireAuth(); err != nil {
		return RoleChange{}, err
	}

	roles, err := s.roles(ctx)
	if err != nil {
		return RoleChange{}, err
	}

	ev := s.guard.Propose(targetID, roleID, roles)
	if ev.Outcome == rbac.OutcomeDenied {
		n := notifyErr(errors.New(ev.Reason))
		return RoleChange{Evaluation: ev, Notification: &n}, nil
	}
	return RoleChange{Evaluation: ev}, nil
}

// ConfirmRoleChange confirma una auto-democión pendiente.
func (s *Service) ConfirmRoleChange(p *rbac.PendingRoleChange) error {
	return s.guard.Confirm(p)
}

// CancelRoleChange descarta un cambio pendiente. Sesión, snapshot y backend
// quedan exactamente como estaban; la única salida es la notificación.
func (s *Service) CancelRoleChange(p *rbac.PendingRoleChange) Notification {
	s.guard.Cancel(p)
	return notifyOK("role change cancelled")
}

// RoleChangeResult es la salida de aplicar un cambio de rol.
type RoleChangeResult struct {
	Notification Notification
	// RedirectToLogin: el actor se quitó sus propios privilegios de admin; la
	// sesión ya fue invalidada y la credencial persistida borrada.
	RedirectToLogin bool
}

// ApplyRoleChange ejecuta el cambio contra el backend, exactamente una vez.
// En éxito invalida el snapshot de usuarios (la próxima vista lee la lista
// confirmada); en fallo no muta nada y la notificación única lleva la causa.
func (s *Service) ApplyRoleChange(ctx context.Context, p *rbac.PendingRoleChange) (RoleChangeResult, error) {
	log := logger.From(ctx).With(logger.Layer("console"), logger.Op("ApplyRoleChange"))

	result, err := s.guard.Apply(ctx, s.backend, p)
	if err != nil {
		return RoleChangeResult{Notification: notifyErr(err)}, err
	}

	s.snap.InvalidateUsers()

	if result.TeardownRequired {
		s.session.Teardown()
		if cerr := s.creds.Clear(ctx); cerr != nil {
			log.Warn("could not clear persisted session", logger.Err(cerr))
		}
		return RoleChangeResult{
			Notification:    notifyWarn("your role changed to " + result.Role.Name + ", please log in again"),
			RedirectToLogin: true,
		}, nil
	}

	return RoleChangeResult{Notification: notifyOK("role updated to " + result.Role.Name)}, nil
}

// DeleteUser elimina un usuario. En éxito invalida el snapshot de usuarios.
func (s *Service) DeleteUser(ctx context.Context, id string) (Notification, error) {
	if err := s.requireAuth(); err != nil {
		return notifyErr(err), err
	}
	if !s.session.CanManageUsers() {
		return notifyErr(ErrUsersForbidden), ErrUsersForbidden
	}

	if err := s.backend.DeleteUser(ctx, id); err != nil {
		return notifyErr(err), err
	}
	s.snap.InvalidateUsers()
	return notifyOK("user deleted"), nil
}
