package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AccountType string

const (
	AccountTypeUser         AccountType = "USER"
	AccountTypeOrganization AccountType = "ORGANIZATION"
)

type InstallationStatus string

const (
	InstallationActive    InstallationStatus = "active"
	InstallationSuspended InstallationStatus = "suspended"
)

type Installation struct {
	InstallationID    int64              `json:"installation_id"`
	AccountID         int64              `json:"account_id"`
	AccountLogin      string             `json:"account_login"`
	AccountType       AccountType        `json:"account_type"`
	InstallerGitHubID *int64             `json:"installer_github_id,omitempty"`
	Permissions       json.RawMessage    `json:"permissions"`
	RepositoryCount   int                `json:"repository_count"`
	Status            InstallationStatus `json:"status"`
	InstalledAt       time.Time          `json:"installed_at"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

type UserInstallationRole struct {
	UserID         uuid.UUID `json:"user_id"`
	InstallationID int64     `json:"installation_id"`
	OrgName        string    `json:"org_name"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
