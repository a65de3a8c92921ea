package api

import "github.com/dropDatabas3/rbacadm/internal/rbac"

// LoginRequest es el payload de POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse es la respuesta de POST /auth/login: credencial opaca más la
// identidad del actor.
type LoginResponse struct {
	Token string    `json:"token"`
	User  rbac.User `json:"user"`
}

// ProfileUpdateRequest es el payload de PUT /auth/profile. Los campos de
// password sólo viajan cuando hay cambio de password.
type ProfileUpdateRequest struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	CurrentPassword string `json:"currentPassword,omitempty"`
	NewPassword     string `json:"newPassword,omitempty"`
}

// RoleRequest es el payload de POST /roles y PUT /roles/{id}.
type RoleRequest struct {
	Name        string   `json:"name" validate:"required"`
	Permissions []string `json:"permissions"`
}

// AssignRoleRequest es el payload de POST /users/assign-role.
type AssignRoleRequest struct {
	UserID string `json:"userId" validate:"required"`
	RoleID string `json:"roleId" validate:"required"`
}

// errorPayload es la forma estructurada que el backend usa para non-2xx.
// El campo message es el único garantizado legible; code y detail son
// opcionales y un body no parseable cae a un mensaje genérico.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
