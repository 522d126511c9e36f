package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Tenant struct {
	ID           string      `json:"id"`
	Kind         AccountType `json:"kind"`
	DisplayName  string      `json:"display_name"`
	AccountLogin string      `json:"account_login"`
	DatabaseName string      `json:"database_name"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type UserTenantRole struct {
	UserID    uuid.UUID `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      *User     `json:"user,omitempty"`
}

// TenantMembership is a tenant joined with the caller's role in it.
type TenantMembership struct {
	Tenant Tenant `json:"tenant"`
	Role   Role   `json:"role"`
}

// TenantIDFor derives the tenant identifier from the account's immutable
// GitHub id, never from its login.
func TenantIDFor(kind AccountType, accountID int64) string {
	if kind == AccountTypeOrganization {
		return fmt.Sprintf("org_%d", accountID)
	}
	return fmt.Sprintf("user_%d", accountID)
}

// TenantDatabaseName is the namespace that holds the tenant's records.
func TenantDatabaseName(tenantID string) string {
	return "tenant_" + tenantID
}

// ParseTenantID reverses TenantIDFor.
func ParseTenantID(id string) (AccountType, int64, error) {
	var (
		kind AccountType
		rest string
	)
	switch {
	case strings.HasPrefix(id, "org_"):
		kind, rest = AccountTypeOrganization, strings.TrimPrefix(id, "org_")
	case strings.HasPrefix(id, "user_"):
		kind, rest = AccountTypeUser, strings.TrimPrefix(id, "user_")
	default:
		return "", 0, fmt.Errorf("malformed tenant id %q", id)
	}
	accountID, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || accountID <= 0 {
		return "", 0, fmt.Errorf("malformed tenant id %q", id)
	}
	return kind, accountID, nil
}
