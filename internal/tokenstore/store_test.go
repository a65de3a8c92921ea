package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/rbacadm/internal/rbac"
)

func sampleSession() *rbac.Session {
	return &rbac.Session{
		ActorID: "u1",
		Name:    "Ada",
		Email:   "ada@example.com",
		Role:    rbac.RoleRefOf(rbac.Role{ID: "r1", Name: "admin", Permissions: []rbac.Permission{rbac.PermManageUsers}}),
		Token:   "tok-abc",
	}
}

// roundTrip ejercita el contrato común a todos los drivers.
func roundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx)
	require.True(t, IsNoSession(err), "empty store must report no session, got %v", err)

	require.NoError(t, s.Save(ctx, sampleSession()))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "u1", got.ActorID)
	require.Equal(t, "tok-abc", got.Token)
	require.True(t, got.Role.HasPermission(rbac.PermManageUsers), "role must survive the round trip")

	require.NoError(t, s.Clear(ctx))
	_, err = s.Load(ctx)
	require.True(t, IsNoSession(err))

	// Clear es idempotente.
	require.NoError(t, s.Clear(ctx))
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	roundTrip(t, NewFile(path))
}

func TestFileStore_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := NewFile(path)
	require.NoError(t, s.Save(context.Background(), sampleSession()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "session file holds the bearer credential")
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFile(path).Load(context.Background())
	require.Error(t, err)
	require.False(t, IsNoSession(err), "corrupt file is an error, not an empty store")
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	roundTrip(t, NewMemory())
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleSession()))

	first, err := s.Load(ctx)
	require.NoError(t, err)
	first.Teardown() // mutar la copia no toca lo guardado

	second, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "tok-abc", second.Token)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	s, err := NewRedis(Config{
		RedisHost:   mr.Host(),
		RedisPort:   port,
		RedisPrefix: "rbacadm-test",
	})
	require.NoError(t, err)
	defer s.Close()

	roundTrip(t, s)
}

func TestNew_DriverSwitch(t *testing.T) {
	st, err := New(Config{Driver: "memory"})
	require.NoError(t, err)
	require.IsType(t, &memoryStore{}, st)

	st, err = New(Config{Driver: "file", FilePath: filepath.Join(t.TempDir(), "s.json")})
	require.NoError(t, err)
	require.IsType(t, &fileStore{}, st)

	// Driver desconocido cae a file.
	st, err = New(Config{Driver: "whatever", FilePath: filepath.Join(t.TempDir(), "s.json")})
	require.NoError(t, err)
	require.IsType(t, &fileStore{}, st)
}
