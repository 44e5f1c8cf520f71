package rbac

// Role is the closed set of sales-organization roles. The zero value is
// RoleUnknown so that a missing or unrecognized role string never gains
// privileges by accident.
type Role int

const (
	RoleUnknown Role = iota
	RoleSeniorExecutive
	RoleAssistantManager
	RoleManager
	RoleSeniorManager
	RoleGeneralManager
	RoleSeniorGeneralManager
	RolePresident
)

var roleNames = map[Role]string{
	RoleSeniorExecutive:      "senior-executive",
	RoleAssistantManager:     "assistant-manager",
	RoleManager:              "manager",
	RoleSeniorManager:        "senior-manager",
	RoleGeneralManager:       "general-manager",
	RoleSeniorGeneralManager: "senior-general-manager",
	RolePresident:            "president",
}

// ParseRole maps a stored role string to its Role value. Unknown or empty
// strings map to RoleUnknown.
func ParseRole(s string) Role {
	switch s {
	case "president":
		return RolePresident
	case "senior-general-manager":
		return RoleSeniorGeneralManager
	case "general-manager":
		return RoleGeneralManager
	case "senior-manager":
		return RoleSeniorManager
	case "manager":
		return RoleManager
	case "assistant-manager":
		return RoleAssistantManager
	case "senior-executive":
		return RoleSeniorExecutive
	default:
		return RoleUnknown
	}
}

// String returns the canonical role name, or "unknown".
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Known reports whether the role belongs to the closed set.
func (r Role) Known() bool {
	_, ok := roleNames[r]
	return ok
}

// Rank returns the position of the role in the organizational ordering.
// Higher values outrank lower ones. RoleUnknown ranks below every known role.
func (r Role) Rank() int {
	if !r.Known() {
		return 0
	}
	return int(r)
}

// Outranks reports whether r sits strictly above other in the rank table.
// Always false when either role is unknown.
func (r Role) Outranks(other Role) bool {
	if !r.Known() || !other.Known() {
		return false
	}
	return r.Rank() > other.Rank()
}

// CanAssignRole reports whether an actor holding actingRole may install a user
// holding managerRole as someone's manager. The proposed manager must rank at
// least as high as the actor (peer or above); unknown roles are denied.
func CanAssignRole(actingRole, managerRole Role) bool {
	if !actingRole.Known() || !managerRole.Known() {
		return false
	}
	return managerRole.Rank() >= actingRole.Rank()
}

// CanReassignReporting reports whether the role may run the reporting-line
// reassignment operation at all. Senior managers and above qualify.
func CanReassignReporting(role Role) bool {
	return role.Known() && role.Rank() >= RoleSeniorManager.Rank()
}
