package rbac

import (
	"context"
	"errors"
	"testing"
)

func adminSession() *Session {
	return &Session{
		ActorID: "u-admin",
		Name:    "Ada",
		Email:   "ada@example.com",
		Role:    RoleRefOf(Role{ID: "r-admin", Name: "Admin", Permissions: []Permission{PermManageUsers, PermManageRoles}}),
		Token:   "tok-1",
	}
}

func editorSession() *Session {
	return &Session{
		ActorID: "u-editor",
		Name:    "Eva",
		Email:   "eva@example.com",
		Role:    RoleRefOf(Role{ID: "r-editor", Name: "editor", Permissions: []Permission{PermEditProfile, PermViewDashboard}}),
		Token:   "tok-2",
	}
}

func TestSession_IsAdmin(t *testing.T) {
	if !adminSession().IsAdmin() {
		t.Fatal("Admin (mixed case) must be admin")
	}
	if editorSession().IsAdmin() {
		t.Fatal("editor must not be admin")
	}
	s := &Session{Role: DegradedRoleRef("admin")}
	if !s.IsAdmin() {
		t.Fatal("degraded admin role must still be admin by name")
	}
}

func TestSession_HasPermission(t *testing.T) {
	s := editorSession()
	if !s.HasPermission(PermEditProfile) {
		t.Fatal("expected edit_profile")
	}
	if s.HasPermission(PermManageUsers) {
		t.Fatal("absent token must be false")
	}

	empty := &Session{Role: RoleRefOf(Role{ID: "r0", Name: "none"})}
	if empty.HasPermission(PermViewDashboard) {
		t.Fatal("zero-permission role must be false for any token")
	}

	var nilSession *Session
	if nilSession.HasPermission(PermViewDashboard) || nilSession.IsAdmin() {
		t.Fatal("nil session grants nothing")
	}
}

func TestSession_CanManageUsers_AdminImplies(t *testing.T) {
	// El rol admin no lleva manage_users explícito y aun así pasa el gate.
	s := &Session{ActorID: "a", Role: RoleRefOf(Role{ID: "r", Name: "admin"})}
	if !s.CanManageUsers() {
		t.Fatal("admin implies manage_users")
	}
}

func TestSession_CanEditRow(t *testing.T) {
	s := editorSession() // sin manage_users
	if !s.CanEditRow(s.ActorID) {
		t.Fatal("an actor can always act on itself")
	}
	// La comparación es contra el id de la fila iterada, no contra sí mismo:
	// sin manage_users las filas ajenas quedan deshabilitadas.
	if s.CanEditRow("u-other") {
		t.Fatal("editor must not edit other rows without manage_users")
	}
	if !adminSession().CanEditRow("u-other") {
		t.Fatal("admin edits any row")
	}
}

func TestSession_TeardownIdempotent(t *testing.T) {
	s := adminSession()
	s.Teardown()
	if s.Authenticated() || s.ActorID != "" || !s.Role.Missing() {
		t.Fatalf("teardown must clear the session: %+v", s)
	}
	s.Teardown() // segunda vez: no-op
	if s.Authenticated() {
		t.Fatal("teardown must be idempotent")
	}
}

// fakeProfileBackend cuenta llamadas y permite forzar fallos.
type fakeProfileBackend struct {
	calls  int
	fail   error
	result User
}

func (f *fakeProfileBackend) UpdateProfile(ctx context.Context, patch ProfilePatch) (User, error) {
	f.calls++
	if f.fail != nil {
		return User{}, f.fail
	}
	return f.result, nil
}

func TestProfilePatch_Validate(t *testing.T) {
	base := ProfilePatch{Name: "Ada", Email: "ada@example.com"}

	if err := base.Validate(); err != nil {
		t.Fatalf("plain name/email patch must validate: %v", err)
	}

	p := base
	p.NewPassword = "s3cret-new"
	p.ConfirmPassword = "different"
	if err := p.Validate(); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("want ErrPasswordMismatch, got %v", err)
	}

	p.ConfirmPassword = p.NewPassword
	if err := p.Validate(); !errors.Is(err, ErrCurrentPasswordRequired) {
		t.Fatalf("want ErrCurrentPasswordRequired, got %v", err)
	}

	p.CurrentPassword = "s3cret-old"
	if err := p.Validate(); err != nil {
		t.Fatalf("complete password patch must validate: %v", err)
	}
}

func TestSession_UpdateProfile_InvalidPatchSkipsBackend(t *testing.T) {
	s := adminSession()
	backend := &fakeProfileBackend{}

	_, err := s.UpdateProfile(context.Background(), backend, ProfilePatch{
		Name: "Ada", Email: "ada@example.com",
		NewPassword: "a", ConfirmPassword: "b",
	})
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("want ErrPasswordMismatch, got %v", err)
	}
	if backend.calls != 0 {
		t.Fatal("invalid patch must not reach the backend")
	}
	if s.Name != "Ada" {
		t.Fatal("failed update must leave the session intact")
	}
}

func TestSession_UpdateProfile_Success(t *testing.T) {
	s := adminSession()
	backend := &fakeProfileBackend{
		result: User{ID: s.ActorID, Name: "Ada L.", Email: "ada@new.example.com", Role: s.Role},
	}

	updated, err := s.UpdateProfile(context.Background(), backend, ProfilePatch{
		Name: "Ada L.", Email: "ada@new.example.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	if backend.calls != 1 {
		t.Fatalf("want exactly one backend call, got %d", backend.calls)
	}
	if updated.Name != "Ada L." || updated.Email != "ada@new.example.com" {
		t.Fatalf("session not updated: %+v", updated)
	}
}

func TestSession_UpdateProfile_BackendFailureLeavesSessionIntact(t *testing.T) {
	s := adminSession()
	backend := &fakeProfileBackend{fail: errors.New("current password is wrong")}

	_, err := s.UpdateProfile(context.Background(), backend, ProfilePatch{
		Name: "Other", Email: "other@example.com",
		CurrentPassword: "bad", NewPassword: "n1", ConfirmPassword: "n1",
	})
	if err == nil {
		t.Fatal("expected backend error")
	}
	if s.Name != "Ada" || s.Email != "ada@example.com" {
		t.Fatalf("failed update must not mutate the session: %+v", s)
	}
}
