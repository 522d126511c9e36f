package handlers

import (
	"context"

	"github.com/dimitrije/shipyard/internal/models"
	"github.com/dimitrije/shipyard/internal/oauth"
	"github.com/dimitrije/shipyard/internal/services"
	"github.com/dimitrije/shipyard/internal/webhook"
	"github.com/dimitrije/shipyard/pkg/dto"
	"github.com/google/uuid"
)

// UserServiceInterface defines the methods used by handlers from UserService
type UserServiceInterface interface {
	FindOrCreateFromGitHub(ctx context.Context, info *oauth.UserInfo) (*models.User, error)
}

// SessionServiceInterface defines the methods used by handlers from SessionService
type SessionServiceInterface interface {
	Create(ctx context.Context, user *models.User) (string, *models.Session, error)
	SetActiveTenant(ctx context.Context, sessionID, tenantID string) error
	Destroy(ctx context.Context, sessionID string) error
}

// OnboardingServiceInterface defines the methods used by handlers from OnboardingService
type OnboardingServiceInterface interface {
	Begin(ctx context.Context, sessionID string) (string, error)
	Complete(ctx context.Context, req services.SetupRequest) (*services.OnboardingResult, error)
}

// InstallationServiceInterface defines the methods used by handlers from InstallationService
type InstallationServiceInterface interface {
	ApplyEvent(ctx context.Context, ev *webhook.InstallationEvent) error
}

// TenantServiceInterface defines the methods used by handlers from TenantService
type TenantServiceInterface interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.TenantMembership, error)
	GetRole(ctx context.Context, userID uuid.UUID, tenantID string) (models.Role, bool, error)
}

// TokenIssuerInterface defines the methods used by handlers from CrossServiceTokenService
type TokenIssuerInterface interface {
	Issue(id services.Identity) (string, error)
}

// DataServiceClientInterface defines the data service calls the gateway proxies
type DataServiceClientInterface interface {
	Context(ctx context.Context, token string) (*dto.ContextResponse, error)
	Members(ctx context.Context, token string) (*dto.MemberListResponse, error)
	Installations(ctx context.Context, token string) (*dto.InstallationListResponse, error)
}

// MemberListerInterface defines the data service's read of tenant membership
type MemberListerInterface interface {
	ListMembers(ctx context.Context, tenantID string) ([]models.UserTenantRole, error)
}

// InstallationListerInterface defines the data service's read of installations
type InstallationListerInterface interface {
	ListByAccount(ctx context.Context, kind models.AccountType, accountID int64) ([]models.Installation, error)
}
