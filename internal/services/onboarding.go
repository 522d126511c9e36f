package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dimitrije/shipyard/internal/metrics"
	"github.com/dimitrije/shipyard/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OnboardingState string

const (
	StateAwaitingRedirect     OnboardingState = "AWAITING_REDIRECT"
	StateRedirectReceived     OnboardingState = "REDIRECT_RECEIVED"
	StateInstallationResolved OnboardingState = "INSTALLATION_RESOLVED"
	StateTenantCommitted      OnboardingState = "TENANT_COMMITTED"
	StateFailed               OnboardingState = "FAILED"
)

// OnboardingFailure names why a setup callback did not commit a tenant.
// The values double as the error code shown to the frontend.
type OnboardingFailure string

const (
	FailureExpired   OnboardingFailure = "onboarding_expired"
	FailurePending   OnboardingFailure = "installation_pending"
	FailureForbidden OnboardingFailure = "installation_forbidden"
	FailureInvalid   OnboardingFailure = "invalid_request"
)

const (
	SetupActionInstall = "install"
	SetupActionUpdate  = "update"
	SetupActionRequest = "request"
)

// SetupRequest is what GitHub's redirect to the setup endpoint carries.
type SetupRequest struct {
	LinkValue      string
	InstallationID int64
	SetupAction    string
	TestUserID     string
}

type OnboardingResult struct {
	State    OnboardingState
	Failure  OnboardingFailure
	Tenant   *models.Tenant
	Role     models.Role
	Attempts int
}

func (r *OnboardingResult) Committed() bool {
	return r.State == StateTenantCommitted
}

func (r *OnboardingResult) outcome() string {
	if r.Committed() {
		return "tenant_committed"
	}
	return string(r.Failure)
}

func failed(cause OnboardingFailure) *OnboardingResult {
	return &OnboardingResult{State: StateFailed, Failure: cause}
}

// WaitPolicy bounds how long a setup callback waits for its installation
// webhook: Attempts lookups, doubling from Initial up to Max between them.
type WaitPolicy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

func DefaultWaitPolicy() WaitPolicy {
	return WaitPolicy{Attempts: 5, Initial: 250 * time.Millisecond, Max: 2 * time.Second}
}

func (p WaitPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.Max
	b.MaxElapsedTime = 0
	b.Reset()

	retries := p.Attempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

type OnboardingService struct {
	sessions      *SessionService
	users         *UserService
	installations *InstallationService
	tenants       *TenantService
	wait          WaitPolicy
	allowTestUser bool
	log           *zap.Logger
}

func NewOnboardingService(
	sessions *SessionService,
	users *UserService,
	installations *InstallationService,
	tenants *TenantService,
	wait WaitPolicy,
	allowTestUser bool,
	log *zap.Logger,
) *OnboardingService {
	return &OnboardingService{
		sessions:      sessions,
		users:         users,
		installations: installations,
		tenants:       tenants,
		wait:          wait,
		allowTestUser: allowTestUser,
		log:           log,
	}
}

// Begin puts a session into AWAITING_REDIRECT and returns the onboarding
// cookie value that will bring it back.
func (s *OnboardingService) Begin(ctx context.Context, sessionID string) (string, error) {
	return s.sessions.CreateOnboardingLink(ctx, sessionID)
}

// Complete drives a setup callback to TENANT_COMMITTED or FAILED. Domain
// failures come back as a result; a non-nil error means the store failed.
func (s *OnboardingService) Complete(ctx context.Context, req SetupRequest) (*OnboardingResult, error) {
	result, err := s.complete(ctx, req)
	if err != nil {
		s.log.Error("onboarding failed", zap.Int64("installation_id", req.InstallationID), zap.Error(err))
		return nil, err
	}

	metrics.RecordOnboardingOutcome(result.outcome())
	s.log.Info("onboarding finished",
		zap.Int64("installation_id", req.InstallationID),
		zap.String("state", string(result.State)),
		zap.String("failure", string(result.Failure)),
		zap.Int("attempts", result.Attempts),
	)
	return result, nil
}

type onboardingCaller struct {
	userID   uuid.UUID
	githubID int64
	session  *models.Session
}

func (s *OnboardingService) complete(ctx context.Context, req SetupRequest) (*OnboardingResult, error) {
	if req.InstallationID <= 0 {
		return failed(FailureInvalid), nil
	}
	switch req.SetupAction {
	case "", SetupActionInstall, SetupActionUpdate:
	case SetupActionRequest:
		// An organization owner still has to approve the install.
		return failed(FailurePending), nil
	default:
		return failed(FailureInvalid), nil
	}

	caller, cause, err := s.resolveCaller(ctx, req)
	if err != nil || cause != "" {
		if err != nil {
			return nil, err
		}
		return failed(cause), nil
	}

	inst, attempts, err := s.awaitInstallation(ctx, req.InstallationID)
	if errors.Is(err, ErrInstallationNotFound) {
		res := failed(FailurePending)
		res.Attempts = attempts
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	metrics.RecordOnboardingWait(attempts)

	role, ok, err := s.authorize(ctx, caller, inst)
	if err != nil {
		return nil, err
	}
	if !ok {
		res := failed(FailureForbidden)
		res.Attempts = attempts
		return res, nil
	}

	tenant, err := s.tenants.GrantAccess(ctx, TenantGrant{UserID: caller.userID, Installation: inst, Role: role})
	if err != nil {
		return nil, err
	}

	if caller.session != nil {
		if err := s.sessions.SetActiveTenant(ctx, caller.session.ID, tenant.ID); err != nil {
			return nil, err
		}
		if err := s.sessions.ConsumeOnboardingLink(ctx, req.LinkValue); err != nil {
			return nil, err
		}
	}

	return &OnboardingResult{
		State:    StateTenantCommitted,
		Tenant:   tenant,
		Role:     role,
		Attempts: attempts,
	}, nil
}

// resolveCaller recovers who is completing onboarding. The test_user_id
// override is honoured only when the service was built to allow it.
func (s *OnboardingService) resolveCaller(ctx context.Context, req SetupRequest) (*onboardingCaller, OnboardingFailure, error) {
	if req.TestUserID != "" && s.allowTestUser {
		id, err := uuid.Parse(req.TestUserID)
		if err != nil {
			return nil, FailureInvalid, nil
		}
		user, err := s.users.GetByID(ctx, id)
		if errors.Is(err, ErrUserNotFound) {
			return nil, FailureInvalid, nil
		}
		if err != nil {
			return nil, "", err
		}
		return &onboardingCaller{userID: user.ID, githubID: user.GitHubID}, "", nil
	}

	session, err := s.sessions.ResolveOnboardingLink(ctx, req.LinkValue)
	if errors.Is(err, ErrOnboardingLinkNotFound) {
		return nil, FailureExpired, nil
	}
	if err != nil {
		return nil, "", err
	}
	return &onboardingCaller{userID: session.User.ID, githubID: session.User.GitHubID, session: session}, "", nil
}

// awaitInstallation polls the registry because the webhook and the redirect
// travel independently and either may arrive first.
func (s *OnboardingService) awaitInstallation(ctx context.Context, installationID int64) (*models.Installation, int, error) {
	var (
		inst     *models.Installation
		attempts int
	)

	op := func() error {
		attempts++
		found, err := s.installations.GetByID(ctx, installationID)
		if errors.Is(err, ErrInstallationNotFound) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		inst = found
		return nil
	}

	if err := backoff.Retry(op, s.wait.backOff(ctx)); err != nil {
		if errors.Is(err, ErrInstallationNotFound) {
			return nil, attempts, ErrInstallationNotFound
		}
		return nil, attempts, fmt.Errorf("failed waiting for installation: %w", err)
	}
	return inst, attempts, nil
}

// authorize decides whether the caller may claim inst. The installer and,
// for personal accounts, the account owner become ADMIN. Anyone already
// granted a role on the installation keeps it.
func (s *OnboardingService) authorize(ctx context.Context, caller *onboardingCaller, inst *models.Installation) (models.Role, bool, error) {
	if inst.Status == models.InstallationSuspended {
		return "", false, nil
	}

	if inst.InstallerGitHubID != nil && *inst.InstallerGitHubID == caller.githubID {
		return models.RoleAdmin, true, nil
	}
	if inst.AccountType == models.AccountTypeUser && inst.AccountID == caller.githubID {
		return models.RoleAdmin, true, nil
	}

	existing, found, err := s.installations.FindInstallationRole(ctx, caller.userID, inst.InstallationID)
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, nil
	}
	role, ok := models.ParseRole(string(existing))
	return role, ok, nil
}
