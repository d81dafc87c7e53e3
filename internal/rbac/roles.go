package rbac

// Role names. Keep these stable; they are carried in access tokens.
const (
	RoleAdmin    = "admin"    // everything, including IVR overrides
	RoleOperator = "operator" // call control and messaging
	RoleViewer   = "viewer"   // read-only call data
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// IsKnownRole reports whether role is one the API understands.
func IsKnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleOperator, RoleViewer:
		return true
	}
	return false
}
