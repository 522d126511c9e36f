package testutil

import (
	"context"

	"github.com/dimitrije/shipyard/internal/models"
	"github.com/dimitrije/shipyard/internal/oauth"
	"github.com/dimitrije/shipyard/internal/services"
	"github.com/dimitrije/shipyard/internal/webhook"
	"github.com/dimitrije/shipyard/pkg/dto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockUserService mocks the UserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) FindOrCreateFromGitHub(ctx context.Context, info *oauth.UserInfo) (*models.User, error) {
	args := m.Called(ctx, info)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockSessionService mocks the SessionService
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Create(ctx context.Context, user *models.User) (string, *models.Session, error) {
	args := m.Called(ctx, user)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*models.Session), args.Error(2)
}

func (m *MockSessionService) Get(ctx context.Context, raw string) (*models.Session, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionService) SetActiveTenant(ctx context.Context, sessionID, tenantID string) error {
	args := m.Called(ctx, sessionID, tenantID)
	return args.Error(0)
}

func (m *MockSessionService) Destroy(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// MockOnboardingService mocks the OnboardingService
type MockOnboardingService struct {
	mock.Mock
}

func (m *MockOnboardingService) Begin(ctx context.Context, sessionID string) (string, error) {
	args := m.Called(ctx, sessionID)
	return args.String(0), args.Error(1)
}

func (m *MockOnboardingService) Complete(ctx context.Context, req services.SetupRequest) (*services.OnboardingResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.OnboardingResult), args.Error(1)
}

// MockInstallationService mocks the InstallationService
type MockInstallationService struct {
	mock.Mock
}

func (m *MockInstallationService) ApplyEvent(ctx context.Context, ev *webhook.InstallationEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// MockTenantService mocks the TenantService
type MockTenantService struct {
	mock.Mock
}

func (m *MockTenantService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.TenantMembership, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TenantMembership), args.Error(1)
}

func (m *MockTenantService) GetRole(ctx context.Context, userID uuid.UUID, tenantID string) (models.Role, bool, error) {
	args := m.Called(ctx, userID, tenantID)
	return args.Get(0).(models.Role), args.Bool(1), args.Error(2)
}

func (m *MockTenantService) ListMembers(ctx context.Context, tenantID string) ([]models.UserTenantRole, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserTenantRole), args.Error(1)
}

// MockInstallationLister mocks the read side of the InstallationService
type MockInstallationLister struct {
	mock.Mock
}

func (m *MockInstallationLister) ListByAccount(ctx context.Context, kind models.AccountType, accountID int64) ([]models.Installation, error) {
	args := m.Called(ctx, kind, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Installation), args.Error(1)
}

// MockTokenIssuer mocks the CrossServiceTokenService
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(id services.Identity) (string, error) {
	args := m.Called(id)
	return args.String(0), args.Error(1)
}

// MockDataServiceClient mocks the dataclient.Client
type MockDataServiceClient struct {
	mock.Mock
}

func (m *MockDataServiceClient) Context(ctx context.Context, token string) (*dto.ContextResponse, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ContextResponse), args.Error(1)
}

func (m *MockDataServiceClient) Members(ctx context.Context, token string) (*dto.MemberListResponse, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.MemberListResponse), args.Error(1)
}

func (m *MockDataServiceClient) Installations(ctx context.Context, token string) (*dto.InstallationListResponse, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.InstallationListResponse), args.Error(1)
}

// MockOAuthProvider mocks an oauth.Provider
type MockOAuthProvider struct {
	mock.Mock
}

func (m *MockOAuthProvider) GetConsentURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*oauth.UserInfo, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth.UserInfo), args.Error(1)
}
