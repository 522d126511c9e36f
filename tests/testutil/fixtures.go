package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/dimitrije/shipyard/internal/database"
	"github.com/dimitrije/shipyard/internal/models"
	"github.com/dimitrije/shipyard/internal/webhook"
)

// Fixtures provides factory methods for creating test data
type Fixtures struct {
	db      *database.DB
	counter int
}

// NewFixtures creates a new fixtures factory
func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{db: db}
}

// CreateUser creates a test user with default values
func (f *Fixtures) CreateUser(t *testing.T, opts ...UserOption) *models.User {
	t.Helper()
	f.counter++

	user := &models.User{
		GitHubID: int64(1000 + f.counter),
		Login:    fmt.Sprintf("user%d", f.counter),
		Name:     fmt.Sprintf("Test User %d", f.counter),
		Email:    fmt.Sprintf("user%d@example.com", f.counter),
		Role:     models.RoleMember,
	}

	for _, opt := range opts {
		opt(user)
	}

	ctx := context.Background()
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO users (github_id, login, name, email, avatar_url, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, user.GitHubID, user.Login, user.Name, user.Email, user.AvatarURL, user.Role).Scan(
		&user.ID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user
}

// UserOption configures a test user
type UserOption func(*models.User)

// WithGitHubID sets the user's GitHub account id
func WithGitHubID(id int64) UserOption {
	return func(u *models.User) {
		u.GitHubID = id
	}
}

// WithLogin sets the user's GitHub login
func WithLogin(login string) UserOption {
	return func(u *models.User) {
		u.Login = login
	}
}

// WithRole sets the user's global role
func WithRole(role models.Role) UserOption {
	return func(u *models.User) {
		u.Role = role
	}
}

// WithAvatar sets the user's avatar URL
func WithAvatar(url string) UserOption {
	return func(u *models.User) {
		u.AvatarURL = &url
	}
}

// InstallationPayload describes a GitHub installation webhook body
type InstallationPayload struct {
	Action         string
	InstallationID int64
	AccountID      int64
	AccountLogin   string
	AccountType    string
	SenderID       int64
	Repositories   int
}

// Bytes renders the payload the way GitHub would send it
func (p InstallationPayload) Bytes(t *testing.T) []byte {
	t.Helper()

	repos := make([]map[string]any, p.Repositories)
	for i := range repos {
		repos[i] = map[string]any{"id": i + 1, "name": fmt.Sprintf("repo-%d", i+1)}
	}

	body, err := json.Marshal(map[string]any{
		"action": p.Action,
		"installation": map[string]any{
			"id": p.InstallationID,
			"account": map[string]any{
				"id":    p.AccountID,
				"login": p.AccountLogin,
				"type":  p.AccountType,
			},
			"permissions": map[string]string{"contents": "read", "metadata": "read"},
			"created_at":  "2024-05-01T10:00:00Z",
		},
		"repositories": repos,
		"sender":       map[string]any{"id": p.SenderID, "login": "sender"},
	})
	if err != nil {
		t.Fatalf("failed to marshal installation payload: %v", err)
	}
	return body
}

// Event parses the payload into the registry's event type
func (p InstallationPayload) Event(t *testing.T) *webhook.InstallationEvent {
	t.Helper()
	ev, err := webhook.ParseInstallationEvent(p.Bytes(t))
	if err != nil {
		t.Fatalf("failed to parse installation payload: %v", err)
	}
	return ev
}

// DemoOrgInstallation is installation 123456 of organization demo-org,
// installed by GitHub user 42.
func DemoOrgInstallation() InstallationPayload {
	return InstallationPayload{
		Action:         webhook.ActionCreated,
		InstallationID: 123456,
		AccountID:      9001,
		AccountLogin:   "demo-org",
		AccountType:    "Organization",
		SenderID:       42,
		Repositories:   3,
	}
}
