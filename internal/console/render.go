package console

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dropDatabas3/rbacadm/internal/rbac"
)

// Render* produce texto plano para la terminal. Separado del servicio para
// que las vistas se puedan testear como strings.

// RenderNotification formatea la notificación única de una acción.
func RenderNotification(n Notification) string {
	switch n.Level {
	case LevelError:
		return "error: " + n.Message
	case LevelWarn:
		return "warning: " + n.Message
	default:
		return n.Message
	}
}

// RenderDashboard formatea cualquiera de las dos variantes del dashboard.
func RenderDashboard(d *Dashboard) string {
	if d == nil {
		return ""
	}
	if d.Admin != nil {
		return fmt.Sprintf("Users: %d\nRoles: %d\n", d.Admin.UserCount, d.Admin.RoleCount)
	}

	u := d.User
	var b strings.Builder
	fmt.Fprintf(&b, "%s <%s>\n", u.Name, u.Email)
	fmt.Fprintf(&b, "Role: %s\n", orDash(u.RoleName))
	if u.PermissionsUnavailable {
		b.WriteString(PermissionsUnavailableText + "\n")
		return b.String()
	}
	b.WriteString("Permissions:\n")
	for _, p := range u.Permissions {
		fmt.Fprintf(&b, "  - %s\n", p)
	}
	return b.String()
}

// RenderUsers formatea la lista de usuarios como tabla. Las filas no
// editables por el actor se marcan como de sólo lectura.
func RenderUsers(rows []UserRow) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\t")
	for _, row := range rows {
		role := orDash(row.User.Role.Name())
		if row.User.Role.Degraded() {
			role += " (details unavailable)"
		}
		if !row.Editable {
			role += " [read-only]"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", row.User.ID, row.User.Name, row.User.Email, role)
	}
	w.Flush()
	return b.String()
}

// RenderRoles formatea el catálogo de roles.
func RenderRoles(roles rbac.RoleList) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPERMISSIONS\t")
	for _, r := range roles {
		perms := make([]string, 0, len(r.Permissions))
		for _, p := range r.Permissions {
			perms = append(perms, string(p))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", r.ID, r.Name, strings.Join(perms, ", "))
	}
	w.Flush()
	return b.String()
}

// RenderProfile formatea la vista de perfil.
func RenderProfile(p Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name:  %s\n", p.Name)
	fmt.Fprintf(&b, "Email: %s\n", p.Email)
	fmt.Fprintf(&b, "Role:  %s\n", orDash(p.RoleName))
	if p.IsAdmin {
		b.WriteString("Administrator access\n")
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
