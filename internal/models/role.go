package models

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleViewer Role = "VIEWER"

	// Pre-unification vocabulary, rewritten by the role migration.
	LegacyRoleContributor Role = "CONTRIBUTOR"
	LegacyRoleReader      Role = "READER"
)

// ParseRole accepts only the unified vocabulary.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleMember, RoleViewer:
		return Role(s), true
	}
	return "", false
}

func (r Role) String() string {
	return string(r)
}
