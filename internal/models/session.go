package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionUser is the identity snapshot stored with a session.
type SessionUser struct {
	ID        uuid.UUID `json:"id"`
	GitHubID  int64     `json:"github_id"`
	Login     string    `json:"login"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func SnapshotUser(u *User) SessionUser {
	snap := SessionUser{
		ID:        u.ID,
		GitHubID:  u.GitHubID,
		Login:     u.Login,
		Name:      u.DisplayName(),
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.AvatarURL != nil {
		snap.AvatarURL = *u.AvatarURL
	}
	return snap
}

type Session struct {
	ID             string      `json:"-"`
	User           SessionUser `json:"user"`
	ActiveTenantID *string     `json:"active_tenant_id,omitempty"`
	ExpiresAt      time.Time   `json:"expires_at"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
