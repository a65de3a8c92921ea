package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dropDatabas3/rbacadm/internal/rbac"
)

// fileStore implementa Store sobre un archivo JSON.
// Escritura atómica (tmp + rename) y permisos 0600: el archivo contiene la
// credencial bearer.
type fileStore struct {
	path string
}

// NewFile crea un store sobre el archivo dado.
func NewFile(path string) *fileStore {
	return &fileStore{path: path}
}

func (f *fileStore) Load(ctx context.Context) (*rbac.Session, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("tokenstore: read %s: %w", f.path, err)
	}
	var s rbac.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("tokenstore: parse %s: %w", f.path, err)
	}
	if !s.Authenticated() {
		return nil, ErrNoSession
	}
	return &s, nil
}

func (f *fileStore) Save(ctx context.Context, s *rbac.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("tokenstore: marshal session: %w", err)
	}
	return atomicWriteFile(f.path, b, 0o600)
}

func (f *fileStore) Clear(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("tokenstore: remove %s: %w", f.path, err)
	}
	return nil
}

func (f *fileStore) Close() error { return nil }

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("tokenstore: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("tokenstore: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("tokenstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("tokenstore: fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenstore: close temp: %w", err)
	}
	_ = os.Chmod(tmpPath, perm)
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tokenstore: rename: %w", err)
	}
	return nil
}
