// Package console es la capa de servicio de la consola de administración:
// orquesta sesión, guard, cliente del backend, snapshot y credencial
// persistida. No sabe de terminales; produce valores que cualquier frontend
// puede renderizar, lo que la hace testeable sin TTY.
package console

import (
	"context"
	"errors"

	"github.com/dropDatabas3/rbacadm/internal/api"
	"github.com/dropDatabas3/rbacadm/internal/cache"
	"github.com/dropDatabas3/rbacadm/internal/observability/logger"
	"github.com/dropDatabas3/rbacadm/internal/rbac"
	"github.com/dropDatabas3/rbacadm/internal/tokenstore"
)

// ErrNotAuthenticated: la operación requiere una sesión con credencial.
var ErrNotAuthenticated = errors.New("not authenticated, run login first")

// Backend es el contrato del colaborador REST que la consola consume.
// *api.Client lo implementa; los tests usan un fake.
type Backend interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	Profile(ctx context.Context) (rbac.User, error)
	UpdateProfile(ctx context.Context, patch rbac.ProfilePatch) (rbac.User, error)
	ListUsers(ctx context.Context) ([]rbac.User, error)
	DeleteUser(ctx context.Context, id string) error
	AssignRole(ctx context.Context, userID, roleID string) error
	ListRoles(ctx context.Context) (rbac.RoleList, error)
	CreateRole(ctx context.Context, name string, permissions []string) (rbac.Role, error)
	UpdateRole(ctx context.Context, id, name string, permissions []string) (rbac.Role, error)
	DeleteRole(ctx context.Context, id string) error
}

// Level clasifica una notificación para el frontend.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notification es el único mensaje visible que una acción produce. Una
// acción, una notificación: nunca cero, nunca dos.
type Notification struct {
	Level   Level
	Message string
}

func notifyOK(msg string) Notification { return Notification{Level: LevelInfo, Message: msg} }

func notifyWarn(msg string) Notification { return Notification{Level: LevelWarn, Message: msg} }

func notifyErr(err error) Notification { return Notification{Level: LevelError, Message: err.Error()} }

// Service ata la sesión actuante con sus colaboradores.
type Service struct {
	session *rbac.Session
	guard   *rbac.Guard
	backend Backend
	snap    *cache.Snapshot
	creds   tokenstore.Store
}

// New crea la capa de servicio sobre una sesión (posiblemente vacía, antes
// del login).
func New(session *rbac.Session, backend Backend, snap *cache.Snapshot, creds tokenstore.Store) *Service {
	return &Service{
		session: session,
		guard:   rbac.NewGuard(session),
		backend: backend,
		snap:    snap,
		creds:   creds,
	}
}

// Session expone la sesión actuante.
func (s *Service) Session() *rbac.Session {
	return s.session
}

// Login autentica contra el backend y persiste la credencial resultante.
func (s *Service) Login(ctx context.Context, email, password string) (Notification, error) {
	log := logger.From(ctx).With(logger.Layer("console"), logger.Op("Login"))

	resp, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return notifyErr(err), err
	}

	s.session.ActorID = resp.User.ID
	s.session.Name = resp.User.Name
	s.session.Email = resp.User.Email
	s.session.Role = resp.User.Role
	s.session.Token = resp.Token

	if err := s.creds.Save(ctx, s.session); err != nil {
		// La sesión es usable en memoria aunque no se haya podido persistir.
		log.Warn("could not persist session", logger.Err(err))
		return notifyWarn("logged in, but the session could not be saved for later runs"), nil
	}

	log.Info("login ok", logger.UserID(s.session.ActorID), logger.RoleName(s.session.Role.Name()))
	return notifyOK("welcome, " + s.session.Name), nil
}

// Logout invalida la sesión y borra la credencial persistida. Idempotente.
func (s *Service) Logout(ctx context.Context) (Notification, error) {
	s.session.Teardown()
	if err := s.creds.Clear(ctx); err != nil {
		return notifyErr(err), err
	}
	return notifyOK("logged out"), nil
}

// requireAuth corta las operaciones que necesitan credencial.
func (s *Service) requireAuth() error {
	if !s.session.Authenticated() {
		return ErrNotAuthenticated
	}
	return nil
}

// roles retorna la lista de roles vigente: snapshot si sigue fresco, backend
// si no. El snapshot sólo se escribe con la respuesta confirmada.
func (s *Service) roles(ctx context.Context) (rbac.RoleList, error) {
	if roles, ok := s.snap.Roles(); ok {
		return roles, nil
	}
	roles, err := s.backend.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	s.snap.SetRoles(roles)
	return roles, nil
}

// users ídem para la lista de usuarios.
func (s *Service) users(ctx context.Context) ([]rbac.User, error) {
	if users, ok := s.snap.Users(); ok {
		return users, nil
	}
	users, err := s.backend.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	s.snap.SetUsers(users)
	return users, nil
}
