package devserver

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/rbacadm/internal/rbac"
)

// Errores del store. Los handlers los traducen a AppError.
var (
	ErrUserNotFound   = errors.New("devserver: user not found")
	ErrRoleNotFound   = errors.New("devserver: role not found")
	ErrBadCredentials = errors.New("devserver: bad credentials")
	ErrDuplicateRole  = errors.New("devserver: role name already exists")
)

// storedUser es la representación interna de un usuario.
type storedUser struct {
	ID           string
	Name         string
	Email        string
	PasswordHash []byte

	// RoleID referencia el rol vigente. Si el rol fue borrado mientras
	// seguía asignado, RoleID queda vacío y degradedRole conserva el
	// nombre: es el caso legacy que los clientes deben tolerar.
	RoleID       string
	degradedRole string
}

// Store es el estado en memoria del backend de referencia.
type Store struct {
	mu     sync.RWMutex
	users  map[string]*storedUser
	roles  map[string]*rbac.Role
	tokens map[string]string // token opaco → userID
}

// NewStore crea el store y lo siembra con el rol admin y el usuario admin
// inicial. El password se guarda siempre como hash bcrypt.
func NewStore(adminEmail, adminPassword string) (*Store, error) {
	s := &Store{
		users:  make(map[string]*storedUser),
		roles:  make(map[string]*rbac.Role),
		tokens: make(map[string]string),
	}

	adminRole := &rbac.Role{
		ID:   uuid.NewString(),
		Name: rbac.AdminRoleName,
	}
	for _, p := range rbac.KnownPermissions() {
		adminRole.Permissions = append(adminRole.Permissions, rbac.Permission(p))
	}
	s.roles[adminRole.ID] = adminRole

	viewerRole := &rbac.Role{
		ID:          uuid.NewString(),
		Name:        "viewer",
		Permissions: []rbac.Permission{rbac.PermViewDashboard, rbac.PermEditProfile},
	}
	s.roles[viewerRole.ID] = viewerRole

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	admin := &storedUser{
		ID:           uuid.NewString(),
		Name:         "Administrator",
		Email:        adminEmail,
		PasswordHash: hash,
		RoleID:       adminRole.ID,
	}
	s.users[admin.ID] = admin

	return s, nil
}

// view construye la representación wire de un usuario, incluyendo el estado
// degradado del rol.
func (s *Store) view(u *storedUser) rbac.User {
	out := rbac.User{ID: u.ID, Name: u.Name, Email: u.Email}
	if role, ok := s.roles[u.RoleID]; ok {
		out.Role = rbac.RoleRefOf(*role)
	} else if u.degradedRole != "" {
		out.Role = rbac.DegradedRoleRef(u.degradedRole)
	}
	return out
}

// ─── Auth ───

// Authenticate valida credenciales y emite un token opaco nuevo.
func (s *Store) Authenticate(email, password string) (rbac.User, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
				return rbac.User{}, "", ErrBadCredentials
			}
			token := uuid.NewString()
			s.tokens[token] = u.ID
			return s.view(u), token, nil
		}
	}
	return rbac.User{}, "", ErrBadCredentials
}

// UserByToken resuelve la credencial bearer a un usuario.
func (s *Store) UserByToken(token string) (rbac.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.tokens[token]
	if !ok {
		return rbac.User{}, false
	}
	u, ok := s.users[userID]
	if !ok {
		return rbac.User{}, false
	}
	return s.view(u), true
}

// UpdateProfile aplica cambios de perfil. El chequeo del password actual
// ocurre acá, del lado servidor.
func (s *Store) UpdateProfile(userID, name, email, currentPassword, newPassword string) (rbac.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return rbac.User{}, ErrUserNotFound
	}

	if newPassword != "" {
		if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(currentPassword)) != nil {
			return rbac.User{}, ErrBadCredentials
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return rbac.User{}, err
		}
		u.PasswordHash = hash
	}

	u.Name = name
	u.Email = email
	return s.view(u), nil
}

// ─── Users ───

// CreateUser registra un usuario nuevo con el rol dado. Lo usa el seed y
// los tests; el contrato HTTP no expone registro.
func (s *Store) CreateUser(name, email, password, roleID string) (rbac.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if roleID != "" {
		if _, ok := s.roles[roleID]; !ok {
			return rbac.User{}, ErrRoleNotFound
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return rbac.User{}, err
	}
	u := &storedUser{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		RoleID:       roleID,
	}
	s.users[u.ID] = u
	return s.view(u), nil
}

// ListUsers retorna todos los usuarios.
func (s *Store) ListUsers() []rbac.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]rbac.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, s.view(u))
	}
	return out
}

// DeleteUser elimina un usuario y revoca sus tokens.
func (s *Store) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, id)
	for tok, uid := range s.tokens {
		if uid == id {
			delete(s.tokens, tok)
		}
	}
	return nil
}

// AssignRole reasigna el rol de un usuario. Ids desactualizados → not found.
func (s *Store) AssignRole(userID, roleID string) (rbac.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return rbac.User{}, ErrUserNotFound
	}
	if _, ok := s.roles[roleID]; !ok {
		return rbac.User{}, ErrRoleNotFound
	}
	u.RoleID = roleID
	u.degradedRole = ""
	return s.view(u), nil
}

// ─── Roles ───

// ListRoles retorna todos los roles.
func (s *Store) ListRoles() rbac.RoleList {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(rbac.RoleList, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, *r)
	}
	return out
}

// CreateRole crea un rol. El nombre es único, case-insensitive.
func (s *Store) CreateRole(name string, permissions []string) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.roles {
		if strings.EqualFold(r.Name, name) {
			return rbac.Role{}, ErrDuplicateRole
		}
	}
	role := &rbac.Role{ID: uuid.NewString(), Name: name}
	for _, p := range permissions {
		role.Permissions = append(role.Permissions, rbac.Permission(p))
	}
	s.roles[role.ID] = role
	return *role, nil
}

// UpdateRole reemplaza nombre y permisos de un rol existente.
func (s *Store) UpdateRole(id, name string, permissions []string) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[id]
	if !ok {
		return rbac.Role{}, ErrRoleNotFound
	}
	for _, r := range s.roles {
		if r.ID != id && strings.EqualFold(r.Name, name) {
			return rbac.Role{}, ErrDuplicateRole
		}
	}
	role.Name = name
	role.Permissions = nil
	for _, p := range permissions {
		role.Permissions = append(role.Permissions, rbac.Permission(p))
	}
	return *role, nil
}

// DeleteRole elimina un rol. Los usuarios que lo tenían asignado quedan en
// el estado degradado: conservan el nombre del rol, pierden los permisos.
func (s *Store) DeleteRole(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[id]
	if !ok {
		return ErrRoleNotFound
	}
	delete(s.roles, id)
	for _, u := range s.users {
		if u.RoleID == id {
			u.RoleID = ""
			u.degradedRole = role.Name
		}
	}
	return nil
}

// RoleByID busca un rol por id.
func (s *Store) RoleByID(id string) (rbac.Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	if !ok {
		return rbac.Role{}, false
	}
	return *r, true
}
