package models

// Team is a provider group (GitHub team, Google group, Azure group).
type Team struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Role tiers in ascending order of privilege.
type Role int

const (
	RoleNone Role = iota
	RoleApprover
	RolePlatformApprover
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleApprover:
		return "Approver"
	case RolePlatformApprover:
		return "Platform Approver"
	case RoleAdmin:
		return "Admin"
	default:
		return ""
	}
}

// PermissionSet is the backend's answer to POST /permissions.
type PermissionSet struct {
	IsApprover             bool   `json:"isApprover"`
	IsAdmin                bool   `json:"isAdmin"`
	IsPlatformApprover     bool   `json:"isPlatformApprover"`
	ApproverGroups         []Team `json:"approverGroups,omitempty"`
	AdminGroups            []Team `json:"adminGroups,omitempty"`
	PlatformApproverGroups []Team `json:"platformApproverGroups,omitempty"`
}

// HighestRole returns the top-ranked role flag that is set.
// Admin outranks Platform Approver, which outranks Approver.
func (p PermissionSet) HighestRole() Role {
	switch {
	case p.IsAdmin:
		return RoleAdmin
	case p.IsPlatformApprover:
		return RolePlatformApprover
	case p.IsApprover:
		return RoleApprover
	default:
		return RoleNone
	}
}

// CanApprove reports whether any approving role is held.
func (p PermissionSet) CanApprove() bool {
	return p.IsApprover || p.IsAdmin || p.IsPlatformApprover
}

// CanQueryAnyUser reports whether history may be searched for other users.
func (p PermissionSet) CanQueryAnyUser() bool {
	return p.IsAdmin || p.IsPlatformApprover
}

// Teams returns every group behind the permission flags, without
// duplicates, in approver, platform, admin order.
func (p PermissionSet) Teams() []Team {
	seen := make(map[string]struct{})
	var out []Team
	for _, groups := range [][]Team{p.ApproverGroups, p.PlatformApproverGroups, p.AdminGroups} {
		for _, g := range groups {
			if _, ok := seen[g.ID]; ok {
				continue
			}
			seen[g.ID] = struct{}{}
			out = append(out, g)
		}
	}
	return out
}
