package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dimitrije/shipyard/internal/models"
)

const (
	ActionCreated                = "created"
	ActionDeleted                = "deleted"
	ActionSuspend                = "suspend"
	ActionUnsuspend              = "unsuspend"
	ActionNewPermissionsAccepted = "new_permissions_accepted"
)

// InstallationEvent is the subset of GitHub's installation payload the
// registry consumes.
type InstallationEvent struct {
	Action       string `json:"action"`
	Installation struct {
		ID      int64 `json:"id"`
		Account struct {
			ID    int64  `json:"id"`
			Login string `json:"login"`
			Type  string `json:"type"`
		} `json:"account"`
		Permissions json.RawMessage `json:"permissions"`
		CreatedAt   flexTime        `json:"created_at"`
	} `json:"installation"`
	Repositories []json.RawMessage `json:"repositories"`
	Sender       struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
	} `json:"sender"`
}

// ParseInstallationEvent decodes and validates a raw payload.
func ParseInstallationEvent(payload []byte) (*InstallationEvent, error) {
	var ev InstallationEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode installation event: %w", err)
	}
	if ev.Installation.ID <= 0 {
		return nil, fmt.Errorf("installation.id is missing")
	}
	if ev.Installation.Account.Login == "" || ev.Installation.Account.ID <= 0 {
		return nil, fmt.Errorf("installation.account is incomplete")
	}
	if _, err := ev.AccountType(); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (e *InstallationEvent) AccountType() (models.AccountType, error) {
	switch strings.ToLower(e.Installation.Account.Type) {
	case "organization":
		return models.AccountTypeOrganization, nil
	case "user":
		return models.AccountTypeUser, nil
	}
	return "", fmt.Errorf("unsupported account type %q", e.Installation.Account.Type)
}

// ToInstallation maps the event onto a registry row. Deliveries without an
// installation timestamp fall back to now.
func (e *InstallationEvent) ToInstallation(now time.Time) models.Installation {
	kind, _ := e.AccountType()

	inst := models.Installation{
		InstallationID:  e.Installation.ID,
		AccountID:       e.Installation.Account.ID,
		AccountLogin:    e.Installation.Account.Login,
		AccountType:     kind,
		Permissions:     e.Installation.Permissions,
		RepositoryCount: len(e.Repositories),
		Status:          models.InstallationActive,
		InstalledAt:     now,
	}
	if len(inst.Permissions) == 0 {
		inst.Permissions = json.RawMessage(`{}`)
	}
	if !e.Installation.CreatedAt.IsZero() {
		inst.InstalledAt = e.Installation.CreatedAt.Time
	}
	if e.Action == ActionSuspend {
		inst.Status = models.InstallationSuspended
	}
	if e.Sender.ID > 0 {
		sender := e.Sender.ID
		inst.InstallerGitHubID = &sender
	}
	return inst
}

// flexTime accepts both the RFC 3339 strings and the unix seconds GitHub
// has used for installation timestamps.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var secs int64
	if err := json.Unmarshal(b, &secs); err == nil {
		t.Time = time.Unix(secs, 0).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
