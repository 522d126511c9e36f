package dto

type CapabilitiesResponse struct {
	Read  bool `json:"read"`
	Write bool `json:"write"`
	Admin bool `json:"admin"`
}

// ContextResponse is the data service's view of the caller.
type ContextResponse struct {
	UserID       string               `json:"user_id"`
	Username     string               `json:"username"`
	AvatarURL    string               `json:"avatar_url,omitempty"`
	Login        string               `json:"login,omitempty"`
	TenantID     string               `json:"tenant_id"`
	TenantRole   string               `json:"tenant_role"`
	Capabilities CapabilitiesResponse `json:"capabilities"`
}
