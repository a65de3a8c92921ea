package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/rbacadm/internal/rbac"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, func() string { return "tok-test" })
}

func TestClient_BearerHeader(t *testing.T) {
	var got string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode([]rbac.User{})
	}))

	_, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-test", got)
}

func TestClient_ListUsers_MixedRoleShapes(t *testing.T) {
	// El backend puede mandar el rol como objeto completo o como nombre
	// pelado; el cliente normaliza ambos.
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"u1","name":"Ada","email":"ada@x.com","role":{"id":"r1","name":"admin","permissions":["manage_users",{"name":"manage_roles"}]}},
			{"id":"u2","name":"Eva","email":"eva@x.com","role":"viewer"},
			{"id":"u3","name":"Bob","email":"bob@x.com","role":null}
		]`))
	}))

	users, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)

	require.True(t, users[0].Role.IsAdmin())
	require.True(t, users[0].Role.HasPermission(rbac.PermManageRoles))

	require.True(t, users[1].Role.Degraded())
	require.Equal(t, "viewer", users[1].Role.Name())
	require.Nil(t, users[1].Role.Permissions())

	require.True(t, users[2].Role.Missing())
}

func TestClient_StructuredErrorPayload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":"FORBIDDEN","message":"no permission to list users"}`))
	}))

	_, err := c.ListUsers(context.Background())
	require.Error(t, err)
	require.True(t, IsPermissionDenied(err))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "FORBIDDEN", apiErr.Code)
	require.Contains(t, apiErr.Message, "no permission")
	require.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestClient_UnparseableErrorBodyFallsBack(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<html>nope</html>`))
	}))

	_, err := c.ListRoles(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, KindConflictOrUnknown, apiErr.Kind)
	require.NotEmpty(t, apiErr.Message, "fallback message must be human readable")
}

func TestClient_StatusTaxonomy(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
	}{
		{http.StatusForbidden, KindPermissionDenied},
		{http.StatusUnauthorized, KindPermissionDenied},
		{http.StatusNotFound, KindNotFound},
		{http.StatusBadRequest, KindValidation},
		{http.StatusConflict, KindConflictOrUnknown},
		{http.StatusBadGateway, KindConflictOrUnknown},
	}
	for _, tc := range cases {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		err := c.AssignRole(context.Background(), "u1", "r1")
		require.True(t, IsKind(err, tc.kind), "status %d must map to %s, got %v", tc.status, tc.kind, err)
	}
}

func TestClient_NetworkErrorKind(t *testing.T) {
	// Puerto cerrado: el request no puede completarse.
	c := NewClient("http://127.0.0.1:1", 500*time.Millisecond, nil)
	_, err := c.ListUsers(context.Background())
	require.True(t, IsKind(err, KindNetwork), "got %v", err)
}

func TestClient_CreateRole_RoundTrip(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RoleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		perms := make([]rbac.Permission, 0, len(req.Permissions))
		for _, p := range req.Permissions {
			perms = append(perms, rbac.Permission(p))
		}
		_ = json.NewEncoder(w).Encode(rbac.Role{ID: "r-new", Name: req.Name, Permissions: perms})
	}))

	role, err := c.CreateRole(context.Background(), "auditor", []string{rbac.PermManageUsers, rbac.PermViewDashboard})
	require.NoError(t, err)
	require.Equal(t, "r-new", role.ID)
	// Igualdad como set, sin importar el orden.
	require.ElementsMatch(t,
		[]rbac.Permission{rbac.PermManageUsers, rbac.PermViewDashboard},
		role.Permissions,
	)
}

func TestClient_UpdateProfile_OmitsPasswordFieldsWhenUnchanged(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(rbac.User{ID: "u1", Name: "Ada", Email: "ada@x.com"})
	}))

	_, err := c.UpdateProfile(context.Background(), rbac.ProfilePatch{Name: "Ada", Email: "ada@x.com"})
	require.NoError(t, err)
	require.NotContains(t, body, "currentPassword")
	require.NotContains(t, body, "newPassword")
}
