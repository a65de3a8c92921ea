package rbac

import (
	"encoding/json"
	"testing"
)

func TestPermission_UnmarshalBothShapes(t *testing.T) {
	// El backend histórico mandó permisos como string pelado y como
	// objeto {name}; ambos deben normalizar al mismo token.
	cases := []struct {
		in   string
		want string
	}{
		{`"manage_users"`, "manage_users"},
		{`{"name":"manage_users"}`, "manage_users"},
		{`{"name":"view_reports","description":"x"}`, "view_reports"},
	}
	for _, c := range cases {
		var p Permission
		if err := json.Unmarshal([]byte(c.in), &p); err != nil {
			t.Fatalf("unmarshal %s: %v", c.in, err)
		}
		if string(p) != c.want {
			t.Fatalf("got %q, want %q", p, c.want)
		}
	}
}

func TestRole_UnmarshalMixedPermissionList(t *testing.T) {
	raw := `{"id":"r1","name":"editor","permissions":["view_dashboard",{"name":"edit_profile"}]}`
	var r Role
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatal(err)
	}
	if !r.HasPermission("view_dashboard") || !r.HasPermission("edit_profile") {
		t.Fatalf("mixed permission list not normalized: %+v", r.Permissions)
	}
	if r.HasPermission("manage_users") {
		t.Fatal("permission not granted must be false")
	}
}

func TestRoleRef_FullObject(t *testing.T) {
	raw := `{"id":"r1","name":"Admin","permissions":["manage_users"]}`
	var ref RoleRef
	if err := json.Unmarshal([]byte(raw), &ref); err != nil {
		t.Fatal(err)
	}
	if ref.Degraded() || ref.Missing() {
		t.Fatal("full role must not be degraded/missing")
	}
	if !ref.IsAdmin() {
		t.Fatal("IsAdmin must be case-insensitive")
	}
	if !ref.HasPermission("manage_users") {
		t.Fatal("expected manage_users")
	}
}

func TestRoleRef_BareStringIsDegraded(t *testing.T) {
	var ref RoleRef
	if err := json.Unmarshal([]byte(`"ADMIN"`), &ref); err != nil {
		t.Fatal(err)
	}
	if !ref.Degraded() {
		t.Fatal("bare string role must be degraded")
	}
	// El nombre sí se conoce: IsAdmin funciona por nombre.
	if !ref.IsAdmin() {
		t.Fatal("degraded admin role must still be admin by name")
	}
	// Los permisos no: nunca adivinamos.
	if ref.Permissions() != nil {
		t.Fatal("degraded role must report permissions unavailable")
	}
	if ref.HasPermission("manage_users") {
		t.Fatal("degraded role must not grant permissions")
	}
}

func TestRoleRef_NullIsMissing(t *testing.T) {
	var ref RoleRef
	if err := json.Unmarshal([]byte(`null`), &ref); err != nil {
		t.Fatal(err)
	}
	if !ref.Missing() {
		t.Fatal("null role must be missing")
	}
	if ref.IsAdmin() || ref.HasPermission("view_dashboard") {
		t.Fatal("missing role grants nothing")
	}
}

func TestRoleRef_MarshalRoundTrip(t *testing.T) {
	full := RoleRefOf(Role{ID: "r1", Name: "editor", Permissions: []Permission{"edit_profile"}})
	b, err := json.Marshal(full)
	if err != nil {
		t.Fatal(err)
	}
	var back RoleRef
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.Name() != "editor" || !back.HasPermission("edit_profile") {
		t.Fatalf("round trip lost data: %s", b)
	}

	degraded := DegradedRoleRef("viewer")
	b, err = json.Marshal(degraded)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"viewer"` {
		t.Fatalf("degraded role must marshal as bare name, got %s", b)
	}
}

func TestRoleList_FindByID(t *testing.T) {
	roles := RoleList{
		{ID: "r1", Name: "admin"},
		{ID: "r2", Name: "editor"},
	}
	if _, ok := roles.FindByID("r2"); !ok {
		t.Fatal("expected r2")
	}
	// Rol borrado mientras seguía asignado: el lookup retorna false, no
	// revienta.
	if _, ok := roles.FindByID("r-deleted"); ok {
		t.Fatal("unknown id must not resolve")
	}
}
