package enums

import "fmt"

// Role is the numeric entitlement tier carried on a license. The numeric
// values are part of the client wire contract and must not be renumbered.
type Role int16

const (
	RoleDemo  Role = 1
	RoleFull  Role = 2
	RoleAdmin Role = 9
)

var roleLabels = map[Role]string{
	RoleDemo:  "demo",
	RoleFull:  "full",
	RoleAdmin: "admin",
}

// Label returns the human-readable name for the role.
func (r Role) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return "unknown"
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	_, ok := roleLabels[r]
	return ok
}

// ParseRoleLabel converts a role name back into a Role.
func ParseRoleLabel(value string) (Role, error) {
	for role, label := range roleLabels {
		if label == value {
			return role, nil
		}
	}
	return 0, fmt.Errorf("invalid role label %q", value)
}
