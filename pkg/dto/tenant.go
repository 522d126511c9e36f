package dto

type TenantResponse struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	DisplayName  string `json:"display_name"`
	AccountLogin string `json:"account_login"`
	Role         string `json:"role"`
	Active       bool   `json:"active"`
}

type TenantListResponse struct {
	Tenants        []TenantResponse `json:"tenants"`
	ActiveTenantID *string          `json:"active_tenant_id"`
}

type SwitchTenantRequest struct {
	TenantID string `json:"tenant_id"`
}

type MemberResponse struct {
	UserID    string `json:"user_id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Role      string `json:"role"`
}

type MemberListResponse struct {
	TenantID string           `json:"tenant_id"`
	Members  []MemberResponse `json:"members"`
}

type InstallationResponse struct {
	InstallationID  int64  `json:"installation_id"`
	AccountLogin    string `json:"account_login"`
	AccountType     string `json:"account_type"`
	RepositoryCount int    `json:"repository_count"`
	Status          string `json:"status"`
}

type InstallationListResponse struct {
	TenantID      string                 `json:"tenant_id"`
	Installations []InstallationResponse `json:"installations"`
}
