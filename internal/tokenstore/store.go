// Package tokenstore persiste la sesión autenticada entre invocaciones de la
// CLI.
//
// Soporta:
//   - File (default: la consola corre en una sola máquina)
//   - Memory (testing)
//   - Redis (workstations compartidas / sesiones efímeras con TTL)
//
// El store guarda exactamente una sesión: la del actor actual. Clear es
// idempotente, igual que el Teardown de la sesión que lo acompaña.
package tokenstore

import (
	"context"

	"github.com/dropDatabas3/rbacadm/internal/rbac"
)

// Store define las operaciones sobre la sesión persistida.
type Store interface {
	// Load retorna la sesión guardada. Retorna ErrNoSession si no hay.
	Load(ctx context.Context) (*rbac.Session, error)

	// Save guarda la sesión, reemplazando la anterior si existe.
	Save(ctx context.Context, s *rbac.Session) error

	// Clear elimina la sesión guardada. Idempotente.
	Clear(ctx context.Context) error

	// Close libera recursos del driver.
	Close() error
}

// Config configuración para crear un store.
type Config struct {
	Driver string // "file" | "memory" | "redis"

	// File driver
	FilePath string

	// Redis driver
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Errores del store.
var (
	ErrNoSession = errNoSession{}
)

type errNoSession struct{}

func (e errNoSession) Error() string { return "tokenstore: no stored session" }

// IsNoSession verifica si el error es por ausencia de sesión guardada.
func IsNoSession(err error) bool {
	_, ok := err.(errNoSession)
	return ok
}

// New crea un store según la configuración.
func New(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	case "memory":
		return NewMemory(), nil
	case "file", "":
		return NewFile(cfg.FilePath), nil
	default:
		return NewFile(cfg.FilePath), nil
	}
}
