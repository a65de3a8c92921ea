package tokenstore

import (
	"context"
	"sync"

	"github.com/dropDatabas3/rbacadm/internal/rbac"
)

// memoryStore implementa Store en memoria. Útil para testing.
type memoryStore struct {
	mu      sync.RWMutex
	session *rbac.Session
}

// NewMemory crea un store en memoria.
func NewMemory() *memoryStore {
	return &memoryStore{}
}

func (m *memoryStore) Load(ctx context.Context) (*rbac.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, ErrNoSession
	}
	cp := *m.session
	return &cp, nil
}

func (m *memoryStore) Save(ctx context.Context, s *rbac.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.session = &cp
	return nil
}

func (m *memoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func (m *memoryStore) Close() error { return nil }
