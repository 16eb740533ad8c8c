package auth

import "strings"

// Role is the condominium role of an actor
type Role string

const (
	// RoleResident is a unit owner or tenant
	RoleResident Role = "resident"
	// RoleStaff is building staff (i.e. doorman, maintenance)
	RoleStaff Role = "staff"
	// RoleCouncil is a member of the condominium council
	RoleCouncil Role = "council"
	// RoleViceSyndic is the deputy building manager
	RoleViceSyndic Role = "vice_syndic"
	// RoleSyndic is the building manager
	RoleSyndic Role = "syndic"
	// RoleAdmin is a platform administrator
	RoleAdmin Role = "admin"
)

var roleHierarchy = map[Role]int{
	RoleResident:   0,
	RoleStaff:      1,
	RoleCouncil:    2,
	RoleViceSyndic: 3,
	RoleSyndic:     4,
	RoleAdmin:      5,
}

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// IsAtLeast checks if this role meets the minimum required level
func (r Role) IsAtLeast(minRole Role) bool {
	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// IsManagement is true for roles that run the condominium
func (r Role) IsManagement() bool {
	return r.IsAtLeast(RoleViceSyndic)
}

func (r Role) String() string {
	return string(r)
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []Role {
	return []Role{
		RoleResident,
		RoleStaff,
		RoleCouncil,
		RoleViceSyndic,
		RoleSyndic,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a Role. Hyphens, spaces and case
// are normalized so "Vice-Syndic" and "vice_syndic" are the same role.
func ParseRole(roleStr string) (Role, bool) {
	normalized := strings.ToLower(strings.TrimSpace(roleStr))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	role := Role(normalized)
	return role, role.IsValid()
}
