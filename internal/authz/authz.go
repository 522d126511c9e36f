// Package authz is the authorization gate every tenant-scoped operation
// calls before doing any work. It never reads or writes role storage; it
// only compares the role resolved into a Context.
package authz

import (
	"github.com/dimitrije/shipyard/internal/apperror"
	"github.com/dimitrije/shipyard/internal/models"
)

// Context is the identity the data service resolved from a verified
// cross-service token.
type Context struct {
	UserID     string      `json:"user_id"`
	Username   string      `json:"username"`
	AvatarURL  string      `json:"avatar_url,omitempty"`
	Login      string      `json:"login,omitempty"`
	TenantID   string      `json:"tenant_id"`
	TenantRole models.Role `json:"tenant_role,omitempty"`
}

var (
	readRoles  = []models.Role{models.RoleAdmin, models.RoleMember, models.RoleViewer}
	writeRoles = []models.Role{models.RoleAdmin, models.RoleMember}
	adminRoles = []models.Role{models.RoleAdmin}
)

func CanRead(role models.Role) bool {
	return hasRole(role, readRoles)
}

func CanWrite(role models.Role) bool {
	return hasRole(role, writeRoles)
}

func IsAdmin(role models.Role) bool {
	return hasRole(role, adminRoles)
}

// RequireRead fails unless the context carries any tenant role.
func RequireRead(c *Context) error {
	return require(c, readRoles)
}

// RequireWrite fails for viewers and for callers with no role.
func RequireWrite(c *Context) error {
	return require(c, writeRoles)
}

func RequireAdmin(c *Context) error {
	return require(c, adminRoles)
}

// Capabilities summarises what the context's role allows.
type Capabilities struct {
	Read  bool `json:"read"`
	Write bool `json:"write"`
	Admin bool `json:"admin"`
}

func CapabilitiesOf(role models.Role) Capabilities {
	return Capabilities{
		Read:  CanRead(role),
		Write: CanWrite(role),
		Admin: IsAdmin(role),
	}
}

func require(c *Context, allowed []models.Role) error {
	var actual models.Role
	if c != nil {
		actual = c.TenantRole
	}
	if hasRole(actual, allowed) {
		return nil
	}

	required := make([]string, len(allowed))
	for i, r := range allowed {
		required[i] = r.String()
	}
	return apperror.Forbidden(required, actual.String())
}

func hasRole(role models.Role, allowed []models.Role) bool {
	if role == "" {
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
