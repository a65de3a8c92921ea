package devserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/rbacadm/internal/api"
	"github.com/dropDatabas3/rbacadm/internal/rbac"
)

type testEnv struct {
	t      *testing.T
	srv    *Server
	ts     *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	opts := Options{
		AdminEmail:    "admin@test.local",
		AdminPassword: "sup3rsecret",
		LoginLimit:    1000, // los tests de login no deben chocar con el rate limit
		LoginWindow:   time.Minute,
	}
	srv, err := New(opts)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler(opts))
	t.Cleanup(ts.Close)

	return &testEnv{t: t, srv: srv, ts: ts, client: ts.Client()}
}

// do ejecuta un request JSON con token bearer opcional.
func (e *testEnv) do(method, path, token string, body any) *http.Response {
	e.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	require.NoError(e.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.client.Do(req)
	require.NoError(e.t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) login(email, password string) api.LoginResponse {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/auth/login", "", api.LoginRequest{Email: email, Password: password})
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	out := decode[api.LoginResponse](e.t, resp)
	require.NotEmpty(e.t, out.Token)
	return out
}

// viewerUser crea un usuario con el rol viewer sembrado y retorna sus
// credenciales ya logueadas.
func (e *testEnv) viewerUser(email string) api.LoginResponse {
	e.t.Helper()
	var viewerID string
	for _, role := range e.srv.Store().ListRoles() {
		if role.Name == "viewer" {
			viewerID = role.ID
		}
	}
	require.NotEmpty(e.t, viewerID, "seeded viewer role must exist")

	_, err := e.srv.Store().CreateUser("Vera Vista", email, "password1", viewerID)
	require.NoError(e.t, err)
	return e.login(email, "password1")
}

func TestLoginBadCredentials(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(http.MethodPost, "/auth/login", "", api.LoginRequest{
		Email: "admin@test.local", Password: "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	payload := decode[map[string]string](t, resp)
	require.Equal(t, "UNAUTHORIZED", payload["code"])
	require.NotEmpty(t, payload["message"])
}

func TestRequestWithoutTokenIsRejected(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(http.MethodGet, "/users", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestProfileRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	sess := e.login("admin@test.local", "sup3rsecret")

	resp := e.do(http.MethodGet, "/auth/profile", sess.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[rbac.User](t, resp)
	require.Equal(t, "admin@test.local", me.Email)
	require.True(t, me.Role.IsAdmin())

	resp = e.do(http.MethodPut, "/auth/profile", sess.Token, api.ProfileUpdateRequest{
		Name: "Root Admin", Email: "admin@test.local",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[rbac.User](t, resp)
	require.Equal(t, "Root Admin", updated.Name)
}

func TestProfilePasswordChangeRequiresCurrent(t *testing.T) {
	e := newTestEnv(t)
	sess := e.login("admin@test.local", "sup3rsecret")

	resp := e.do(http.MethodPut, "/auth/profile", sess.Token, api.ProfileUpdateRequest{
		Name: "Root", Email: "admin@test.local",
		CurrentPassword: "wrong", NewPassword: "newpassword",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// El password original sigue vigente.
	e.login("admin@test.local", "sup3rsecret")
}

func TestListUsersRequiresManagePermission(t *testing.T) {
	e := newTestEnv(t)
	viewer := e.viewerUser("vera@test.local")

	resp := e.do(http.MethodGet, "/users", viewer.Token, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	payload := decode[map[string]string](t, resp)
	require.Equal(t, "FORBIDDEN", payload["code"])
}

func TestAssignRoleStaleIDsReturn404(t *testing.T) {
	e := newTestEnv(t)
	admin := e.login("admin@test.local", "sup3rsecret")

	resp := e.do(http.MethodPost, "/users/assign-role", admin.Token, api.AssignRoleRequest{
		UserID: admin.User.ID, RoleID: "r-gone",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(http.MethodPost, "/users/assign-role", admin.Token, api.AssignRoleRequest{
		UserID: "u-gone", RoleID: admin.User.Role.ID(),
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAssignRoleOnOthersRequiresManagePermission(t *testing.T) {
	e := newTestEnv(t)
	admin := e.login("admin@test.local", "sup3rsecret")
	viewer := e.viewerUser("vera@test.local")

	resp := e.do(http.MethodPost, "/users/assign-role", viewer.Token, api.AssignRoleRequest{
		UserID: admin.User.ID, RoleID: viewer.User.Role.ID(),
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestDeleteRoleDegradesAssignedUsers(t *testing.T) {
	e := newTestEnv(t)
	admin := e.login("admin@test.local", "sup3rsecret")
	viewer := e.viewerUser("vera@test.local")
	viewerRoleID := viewer.User.Role.ID()

	resp := e.do(http.MethodDelete, "/roles/"+viewerRoleID, admin.Token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(http.MethodGet, "/users", admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	users := decode[[]rbac.User](t, resp)

	var vera rbac.User
	for _, u := range users {
		if u.Email == "vera@test.local" {
			vera = u
		}
	}
	require.NotEmpty(t, vera.ID)
	require.True(t, vera.Role.Degraded(), "user keeps only the role name after deletion")
	require.Equal(t, "viewer", vera.Role.Name())
	require.Nil(t, vera.Role.Permissions())
}

func TestCreateRoleDuplicateNameConflicts(t *testing.T) {
	e := newTestEnv(t)
	admin := e.login("admin@test.local", "sup3rsecret")

	resp := e.do(http.MethodPost, "/roles", admin.Token, api.RoleRequest{
		Name: "auditor", Permissions: []string{rbac.PermViewReports},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(http.MethodPost, "/roles", admin.Token, api.RoleRequest{
		Name: "Auditor", Permissions: nil,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestDeleteUserRevokesSessions(t *testing.T) {
	e := newTestEnv(t)
	admin := e.login("admin@test.local", "sup3rsecret")
	viewer := e.viewerUser("vera@test.local")

	resp := e.do(http.MethodDelete, "/users/"+viewer.User.ID, admin.Token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(http.MethodGet, "/auth/profile", viewer.Token, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestMetricsEndpointExposed(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
