// Package cache guarda el último snapshot de listas confirmado por el
// backend (usuarios y roles) con un TTL corto.
//
// Regla: el snapshot se muta únicamente desde respuestas confirmadas del
// servidor, nunca de forma especulativa. Una acción fallida deja el snapshot
// exactamente como estaba.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/rbacadm/internal/rbac"
)

const (
	keyUsers = "users"
	keyRoles = "roles"
)

// Snapshot es el cache local de una sesión de consola. Privado a un proceso;
// no hay estado compartido entre actores concurrentes.
type Snapshot struct {
	c *gocache.Cache
}

// NewSnapshot crea un snapshot con el TTL dado.
func NewSnapshot(ttl time.Duration) *Snapshot {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Snapshot{c: gocache.New(ttl, time.Minute)}
}

// SetUsers reemplaza la lista de usuarios con una respuesta confirmada.
func (s *Snapshot) SetUsers(users []rbac.User) {
	s.c.Set(keyUsers, users, gocache.DefaultExpiration)
}

// Users retorna la última lista de usuarios confirmada, si sigue vigente.
func (s *Snapshot) Users() ([]rbac.User, bool) {
	v, ok := s.c.Get(keyUsers)
	if !ok {
		return nil, false
	}
	users, _ := v.([]rbac.User)
	return users, true
}

// SetRoles reemplaza la lista de roles con una respuesta confirmada.
func (s *Snapshot) SetRoles(roles rbac.RoleList) {
	s.c.Set(keyRoles, roles, gocache.DefaultExpiration)
}

// Roles retorna la última lista de roles confirmada, si sigue vigente.
func (s *Snapshot) Roles() (rbac.RoleList, bool) {
	v, ok := s.c.Get(keyRoles)
	if !ok {
		return nil, false
	}
	roles, _ := v.(rbac.RoleList)
	return roles, true
}

// InvalidateUsers descarta la lista de usuarios cacheada.
func (s *Snapshot) InvalidateUsers() {
	s.c.Delete(keyUsers)
}

// InvalidateRoles descarta la lista de roles cacheada.
func (s *Snapshot) InvalidateRoles() {
	s.c.Delete(keyRoles)
}
