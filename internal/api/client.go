// Package api es el cliente del colaborador REST: el backend RBAC real.
// La consola consume el backend únicamente a través de este cliente; todo
// non-2xx sale traducido a la taxonomía de errores (errors.go), nunca crudo.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/rbacadm/internal/rbac"
)

// TokenSource provee la credencial bearer vigente. La sesión es la dueña del
// token; el cliente sólo lo lee al momento de cada request.
type TokenSource func() string

// Client habla el contrato del backend RBAC.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
}

// NewClient crea un cliente para el backend en baseURL.
func NewClient(baseURL string, timeout time.Duration, token TokenSource) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		token:   token,
	}
}

// do ejecuta un request y decodifica la respuesta en out (si out != nil).
// Fallos de transporte salen como KindNetwork; non-2xx se leen como payload
// estructurado con fallback a un mensaje genérico.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return netError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.readError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{
			Kind:    KindConflictOrUnknown,
			Message: "unexpected response from server",
			Status:  resp.StatusCode,
			cause:   err,
		}
	}
	return nil
}

// readError traduce un non-2xx a la taxonomía. El body puede no ser un
// payload estructurado (o no existir): en ese caso cae al mensaje genérico.
func (c *Client) readError(resp *http.Response) error {
	kind := kindFromStatus(resp.StatusCode)

	apiErr := &Error{
		Kind:    kind,
		Message: genericMessage(kind),
		Status:  resp.StatusCode,
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(b) == 0 {
		return apiErr
	}
	var payload errorPayload
	if json.Unmarshal(b, &payload) == nil && payload.Message != "" {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
		if payload.Detail != "" {
			apiErr.Message = payload.Message + ": " + payload.Detail
		}
	}
	return apiErr
}

func genericMessage(kind Kind) string {
	switch kind {
	case KindPermissionDenied:
		return "access denied, please contact your administrator"
	case KindNotFound:
		return "resource not found, it may have been deleted"
	case KindValidation:
		return "the request was rejected as invalid"
	default:
		return "the server returned an unexpected error"
	}
}

// ─── Auth ───

// Login autentica al actor y retorna la credencial opaca más su identidad.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile retorna la identidad canónica de la sesión actual. Se usa para
// re-verificar el estado de permisos después de una anomalía.
func (c *Client) Profile(ctx context.Context) (rbac.User, error) {
	var out rbac.User
	if err := c.do(ctx, http.MethodGet, "/auth/profile", nil, &out); err != nil {
		return rbac.User{}, err
	}
	return out, nil
}

// UpdateProfile aplica un cambio de perfil. Implementa rbac.ProfileUpdater.
// El chequeo del password actual lo hace el backend.
func (c *Client) UpdateProfile(ctx context.Context, patch rbac.ProfilePatch) (rbac.User, error) {
	req := ProfileUpdateRequest{
		Name:  patch.Name,
		Email: patch.Email,
	}
	if patch.WantsPasswordChange() {
		req.CurrentPassword = patch.CurrentPassword
		req.NewPassword = patch.NewPassword
	}
	var out rbac.User
	if err := c.do(ctx, http.MethodPut, "/auth/profile", req, &out); err != nil {
		return rbac.User{}, err
	}
	return out, nil
}

// ─── Users ───

// ListUsers retorna la lista de usuarios. 403 sin manage_users/admin.
func (c *Client) ListUsers(ctx context.Context) ([]rbac.User, error) {
	var out []rbac.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteUser elimina un usuario por id.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+id, nil, nil)
}

// AssignRole reasigna el rol de un usuario. Implementa rbac.Assigner.
// 403 sin permiso; 404 con ids desactualizados.
func (c *Client) AssignRole(ctx context.Context, userID, roleID string) error {
	return c.do(ctx, http.MethodPost, "/users/assign-role", AssignRoleRequest{UserID: userID, RoleID: roleID}, nil)
}

// ─── Roles ───

// ListRoles retorna todos los roles.
func (c *Client) ListRoles(ctx context.Context) (rbac.RoleList, error) {
	var out rbac.RoleList
	if err := c.do(ctx, http.MethodGet, "/roles", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateRole crea un rol con el set de permisos dado.
func (c *Client) CreateRole(ctx context.Context, name string, permissions []string) (rbac.Role, error) {
	var out rbac.Role
	if err := c.do(ctx, http.MethodPost, "/roles", RoleRequest{Name: name, Permissions: permissions}, &out); err != nil {
		return rbac.Role{}, err
	}
	return out, nil
}

// UpdateRole reemplaza nombre y permisos de un rol existente.
func (c *Client) UpdateRole(ctx context.Context, id, name string, permissions []string) (rbac.Role, error) {
	var out rbac.Role
	if err := c.do(ctx, http.MethodPut, "/roles/"+id, RoleRequest{Name: name, Permissions: permissions}, &out); err != nil {
		return rbac.Role{}, err
	}
	return out, nil
}

// DeleteRole elimina un rol por id.
func (c *Client) DeleteRole(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/roles/"+id, nil, nil)
}
