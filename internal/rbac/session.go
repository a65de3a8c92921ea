package rbac

import (
	"context"
	"errors"
	"strings"
)

// Errores de validación del cambio de perfil. Se detectan antes de tocar la
// red: un patch inválido nunca genera una llamada al backend.
var (
	ErrPasswordMismatch        = errors.New("new passwords do not match")
	ErrCurrentPasswordRequired = errors.New("current password is required to set a new password")
	ErrNameRequired            = errors.New("name is required")
	ErrEmailRequired           = errors.New("email is required")
)

// Session es el actor autenticado durante la vida de una sesión de consola.
// Es un objeto explícito que se pasa por referencia a cada componente que lo
// necesita; no hay estado global de proceso.
type Session struct {
	ActorID string  `json:"actor_id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Role    RoleRef `json:"role"`
	// Token es la credencial bearer opaca. Vive exactamente lo que vive la
	// sesión: se crea en login y se destruye en Teardown.
	Token string `json:"token"`
}

// Authenticated retorna true si la sesión tiene credencial vigente.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

// IsAdmin retorna true si el nombre del rol de la sesión, case-insensitive,
// es "admin". Es el atajo OR que usa toda la consola: un admin bypasea los
// checks granulares de permisos.
func (s *Session) IsAdmin() bool {
	if s == nil {
		return false
	}
	return s.Role.IsAdmin()
}

// HasPermission retorna true si el token está en el set de permisos del rol
// de la sesión. Nunca falla: sin rol o con rol degradado retorna false.
func (s *Session) HasPermission(token string) bool {
	if s == nil {
		return false
	}
	return s.Role.HasPermission(token)
}

// CanManageUsers es el gate de la vista de usuarios y del guard:
// IsAdmin() implica manage_users.
func (s *Session) CanManageUsers() bool {
	return s.IsAdmin() || s.HasPermission(PermManageUsers)
}

// CanManageRoles es el gate de la vista de roles.
func (s *Session) CanManageRoles() bool {
	return s.IsAdmin() || s.HasPermission(PermManageRoles)
}

// CanEditRow decide si la consola habilita el selector de rol para una fila
// de la lista de usuarios. Compara el id de la fila iterada contra el actor,
// no un identificador contra sí mismo: un actor siempre puede editarse a sí
// mismo; para editar a otros necesita manage_users.
func (s *Session) CanEditRow(rowID string) bool {
	if s == nil {
		return false
	}
	if rowID == s.ActorID {
		return true
	}
	return s.CanManageUsers()
}

// Teardown invalida la credencial y limpia la identidad de la sesión.
// Es idempotente. La remoción de la credencial persistida queda a cargo del
// caller (la capa de consola, que conoce el tokenstore).
func (s *Session) Teardown() {
	if s == nil {
		return
	}
	*s = Session{}
}

// ProfilePatch son los cambios propuestos sobre el perfil del actor.
// Los campos de password sólo participan del único intento al que pertenecen;
// nunca se retienen después, haya éxito o fallo.
type ProfilePatch struct {
	Name            string
	Email           string
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// WantsPasswordChange retorna true si el patch incluye cambio de password.
func (p ProfilePatch) WantsPasswordChange() bool {
	return p.NewPassword != ""
}

// Validate chequea el patch localmente antes de cualquier llamada de red.
func (p ProfilePatch) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrNameRequired
	}
	if strings.TrimSpace(p.Email) == "" {
		return ErrEmailRequired
	}
	if p.WantsPasswordChange() {
		if p.NewPassword != p.ConfirmPassword {
			return ErrPasswordMismatch
		}
		if p.CurrentPassword == "" {
			return ErrCurrentPasswordRequired
		}
	}
	return nil
}

// ProfileUpdater es el colaborador backend que aplica el cambio de perfil.
// El chequeo real del password actual vive del otro lado.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, patch ProfilePatch) (User, error)
}

// UpdateProfile aplica un patch de perfil sobre la sesión.
//
// La validación local corta antes de tocar la red. En éxito la sesión
// refleja la identidad canónica que retornó el backend y se retorna la
// sesión actualizada; en fallo la sesión queda intacta.
func (s *Session) UpdateProfile(ctx context.Context, backend ProfileUpdater, patch ProfilePatch) (*Session, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	updated, err := backend.UpdateProfile(ctx, patch)
	if err != nil {
		return nil, err
	}

	s.Name = updated.Name
	s.Email = updated.Email
	if !updated.Role.Missing() {
		s.Role = updated.Role
	}
	return s, nil
}
