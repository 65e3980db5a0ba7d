package auth

// AdminRole holders pass every permission check.
const AdminRole = "admin"

// defaultAliases maps the backend's legacy short permission names to their
// canonical {resource}:{action} form. Both spellings are accepted at call
// sites; unknown names pass through verbatim.
var defaultAliases = map[string]string{
	"view_bookings":  "bookings:read",
	"edit_bookings":  "bookings:write",
	"view_payments":  "payments:read",
	"edit_payments":  "payments:write",
	"view_reports":   "reports:read",
	"manage_users":   "users:admin",
	"view_dashboard": "dashboard:read",
}

// Gate checks identities against named permissions. The legacy alias table
// is resolved once at construction; checks are pure functions afterwards.
type Gate struct {
	aliases map[string]string
}

// NewGate builds a gate from the default alias table merged with extra
// entries (extra wins on conflict). extra may be nil.
func NewGate(extra map[string]string) *Gate {
	aliases := make(map[string]string, len(defaultAliases)+len(extra))
	for k, v := range defaultAliases {
		aliases[k] = v
	}
	for k, v := range extra {
		aliases[k] = v
	}
	return &Gate{aliases: aliases}
}

// Canonical resolves a legacy permission name to its canonical form.
// Unmapped names are returned unchanged.
func (g *Gate) Canonical(name string) string {
	if canonical, ok := g.aliases[name]; ok {
		return canonical
	}
	return name
}

// Require fails with ForbiddenError unless the identity holds the named
// permission (in either spelling) or has the admin role.
func (g *Gate) Require(id Identity, permission string) error {
	canonical := g.Canonical(permission)
	if id.Role == AdminRole || id.Has(canonical) || id.Has(permission) {
		return nil
	}
	return &ForbiddenError{Required: canonical, Role: id.Role}
}

// RequireAny succeeds if the identity holds at least one of the named
// permissions.
func (g *Gate) RequireAny(id Identity, permissions ...string) error {
	for _, p := range permissions {
		if g.Require(id, p) == nil {
			return nil
		}
	}
	required := ""
	if len(permissions) > 0 {
		required = g.Canonical(permissions[0])
	}
	return &ForbiddenError{Required: required, Role: id.Role}
}
