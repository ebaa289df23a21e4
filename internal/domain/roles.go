package domain

// Role is an ordered privilege tier. Higher tiers get longer execution
// budgets, larger row caps, and fewer table restrictions.
type Role string

// Privilege tiers, lowest to highest.
const (
	RoleViewer  Role = "viewer"
	RoleAnalyst Role = "analyst"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Tier returns the numeric privilege level. Unknown roles map to the
// viewer tier so a typo never grants privilege.
func (r Role) Tier() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleManager:
		return 2
	case RoleAnalyst:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r carries at least the privilege of other.
func (r Role) AtLeast(other Role) bool {
	return r.Tier() >= other.Tier()
}

// Valid reports whether r names a known tier.
func (r Role) Valid() bool {
	switch r {
	case RoleViewer, RoleAnalyst, RoleManager, RoleAdmin:
		return true
	}
	return false
}
