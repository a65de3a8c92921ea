// Package rbac contiene el modelo de sesión y la lógica de decisión de la
// consola: capacidades del actor (IsAdmin / HasPermission) y el guard que
// evalúa reasignaciones de rol.
//
// Los tipos de este paquete normalizan las dos formas que el backend usó
// históricamente para representar permisos y roles: permisos como string
// pelado o como objeto {name}, y el rol de una sesión como objeto completo o
// como nombre pelado. La normalización ocurre acá, en el borde de ingestión;
// ningún consumidor tiene que conocer las formas legacy.
package rbac

import (
	"encoding/json"
	"strings"
)

// AdminRoleName es el rol distinguido que bypasea los checks granulares.
// La comparación es siempre case-insensitive.
const AdminRoleName = "admin"

// Tokens de permiso conocidos por el sistema.
const (
	PermViewDashboard = "view_dashboard"
	PermEditProfile   = "edit_profile"
	PermManageUsers   = "manage_users"
	PermManageRoles   = "manage_roles"
	PermViewReports   = "view_reports"
)

// KnownPermissions lista los tokens que la consola ofrece al crear/editar roles.
func KnownPermissions() []string {
	return []string{
		PermViewDashboard,
		PermEditProfile,
		PermManageUsers,
		PermManageRoles,
		PermViewReports,
	}
}

// Permission es un token de capacidad (ej: "manage_users").
//
// En el wire acepta tanto "manage_users" como {"name":"manage_users"};
// ambas formas se normalizan al token string.
type Permission string

func (p *Permission) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = Permission(s)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*p = Permission(obj.Name)
	return nil
}

// Role es un paquete nombrado de permisos. El ID lo asigna el backend y es
// inmutable una vez creado; el nombre es único en el sistema.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
}

// IsAdmin retorna true si el nombre del rol es el rol distinguido "admin".
func (r Role) IsAdmin() bool {
	return strings.EqualFold(r.Name, AdminRoleName)
}

// HasPermission retorna true si el token está presente en el set de permisos.
func (r Role) HasPermission(token string) bool {
	for _, p := range r.Permissions {
		if string(p) == token {
			return true
		}
	}
	return false
}

// RoleList es la lista de roles ya cargada desde el backend.
type RoleList []Role

// FindByID busca un rol por id. Retorna false si el id no matchea ningún
// rol cargado (rol desconocido o lista desactualizada).
func (l RoleList) FindByID(id string) (Role, bool) {
	for _, r := range l {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

// RoleRef es la referencia de rol de una sesión o de un usuario listado.
//
// Puede ser un Role completo o, en el caso degradado/legacy, solo un nombre.
// En el caso degradado el nombre se conoce pero los permisos no: los
// consumidores ven un set vacío, nunca adivinamos.
type RoleRef struct {
	role *Role
	name string
}

// RoleRefOf crea una referencia a un rol completo.
func RoleRefOf(r Role) RoleRef {
	return RoleRef{role: &r}
}

// DegradedRoleRef crea una referencia degradada: solo el nombre es conocido.
func DegradedRoleRef(name string) RoleRef {
	return RoleRef{name: name}
}

func (r *RoleRef) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "null" {
		*r = RoleRef{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = RoleRef{name: s}
		return nil
	}
	var role Role
	if err := json.Unmarshal(b, &role); err != nil {
		return err
	}
	*r = RoleRef{role: &role}
	return nil
}

func (r RoleRef) MarshalJSON() ([]byte, error) {
	switch {
	case r.role != nil:
		return json.Marshal(r.role)
	case r.name != "":
		return json.Marshal(r.name)
	default:
		return []byte("null"), nil
	}
}

// Missing retorna true cuando no hay rol asignado.
func (r RoleRef) Missing() bool {
	return r.role == nil && r.name == ""
}

// Degraded retorna true cuando solo conocemos el nombre del rol.
// Los permisos no están disponibles en este estado.
func (r RoleRef) Degraded() bool {
	return r.role == nil && r.name != ""
}

// Name retorna el nombre del rol, o "" si no hay rol.
func (r RoleRef) Name() string {
	if r.role != nil {
		return r.role.Name
	}
	return r.name
}

// ID retorna el id del rol, o "" si no hay rol completo.
func (r RoleRef) ID() string {
	if r.role != nil {
		return r.role.ID
	}
	return ""
}

// Role retorna el rol completo si está disponible.
func (r RoleRef) Role() (Role, bool) {
	if r.role == nil {
		return Role{}, false
	}
	return *r.role, true
}

// Permissions retorna el set de permisos normalizado. Retorna nil en el
// estado degradado o sin rol: "permissions unavailable" es explícito, no un
// set adivinado.
func (r RoleRef) Permissions() []Permission {
	if r.role == nil {
		return nil
	}
	return r.role.Permissions
}

// IsAdmin compara el nombre del rol, case-insensitive, contra "admin".
// Funciona también en el estado degradado (el nombre sí se conoce).
func (r RoleRef) IsAdmin() bool {
	return strings.EqualFold(r.Name(), AdminRoleName)
}

// HasPermission retorna true si el token está en el set de permisos.
// Nunca falla: sin rol, rol degradado o set vacío retornan false.
func (r RoleRef) HasPermission(token string) bool {
	if r.role == nil {
		return false
	}
	return r.role.HasPermission(token)
}

// User es una fila de GET /users: identidad más su rol actual.
type User struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Role  RoleRef `json:"role"`
}
