package integration

import (
	"context"
	"testing"
	"time"

	"github.com/dimitrije/shipyard/internal/authz"
	"github.com/dimitrije/shipyard/internal/models"
	"github.com/dimitrije/shipyard/internal/services"
	"github.com/dimitrije/shipyard/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// beginOnboarding logs GitHub user 42 in and starts onboarding for them.
// It returns the raw session cookie value and the onboarding link.
func beginOnboarding(t *testing.T, tdb *testutil.TestDB, s *stack) (*models.User, string, string) {
	t.Helper()
	ctx := context.Background()

	user := testutil.NewFixtures(tdb.DB).CreateUser(t, testutil.WithGitHubID(42), testutil.WithLogin("octocat"))
	raw, session, err := s.sessions.Create(ctx, user)
	require.NoError(t, err)

	link, err := s.onboarding.Begin(ctx, session.ID)
	require.NoError(t, err)
	return user, raw, link
}

func assertCommittedToDemoOrg(t *testing.T, s *stack, user *models.User, sessionToken, link string, result *services.OnboardingResult) {
	t.Helper()
	ctx := context.Background()

	require.True(t, result.Committed(), "failure: %s", result.Failure)
	assert.Equal(t, "org_9001", result.Tenant.ID)
	assert.Equal(t, models.RoleAdmin, result.Role)

	role, ok, err := s.tenants.GetRole(ctx, user.ID, "org_9001")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.RoleAdmin, role)

	instRole, found, err := s.installations.FindInstallationRole(ctx, user.ID, 123456)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.RoleAdmin, instRole)

	session, err := s.sessions.Get(ctx, sessionToken)
	require.NoError(t, err)
	require.NotNil(t, session.ActiveTenantID)
	assert.Equal(t, "org_9001", *session.ActiveTenantID)

	// The link is single use.
	_, err = s.sessions.ResolveOnboardingLink(ctx, link)
	assert.ErrorIs(t, err, services.ErrOnboardingLinkNotFound)

	memberships, err := s.tenants.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, memberships, 1)
	assert.Equal(t, "demo-org", memberships[0].Tenant.AccountLogin)
}

func TestOnboarding_Integration_WebhookBeforeRedirect(t *testing.T) {
	tdb := setupTest(t)
	s := newStack(tdb, quickWait())
	ctx := context.Background()

	user, sessionToken, link := beginOnboarding(t, tdb, s)
	require.NoError(t, s.installations.ApplyEvent(ctx, testutil.DemoOrgInstallation().Event(t)))

	result, err := s.onboarding.Complete(ctx, services.SetupRequest{
		LinkValue:      link,
		InstallationID: 123456,
		SetupAction:    services.SetupActionInstall,
	})

	require.NoError(t, err)
	assertCommittedToDemoOrg(t, s, user, sessionToken, link, result)
	assert.Equal(t, 1, result.Attempts)
}

func TestOnboarding_Integration_RedirectBeforeWebhook(t *testing.T) {
	tdb := setupTest(t)
	s := newStack(tdb, services.WaitPolicy{Attempts: 10, Initial: 50 * time.Millisecond, Max: 200 * time.Millisecond})
	ctx := context.Background()

	user, sessionToken, link := beginOnboarding(t, tdb, s)

	event := testutil.DemoOrgInstallation().Event(t)
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = s.installations.ApplyEvent(context.Background(), event)
	}()

	result, err := s.onboarding.Complete(ctx, services.SetupRequest{
		LinkValue:      link,
		InstallationID: 123456,
		SetupAction:    services.SetupActionInstall,
	})

	require.NoError(t, err)
	assertCommittedToDemoOrg(t, s, user, sessionToken, link, result)
	assert.Greater(t, result.Attempts, 1)
}

func TestOnboarding_Integration_OrderingConvergesOnSameState(t *testing.T) {
	tdb := setupTest(t)
	s := newStack(tdb, quickWait())
	ctx := context.Background()

	user, _, link := beginOnboarding(t, tdb, s)
	require.NoError(t, s.installations.ApplyEvent(ctx, testutil.DemoOrgInstallation().Event(t)))

	first, err := s.onboarding.Complete(ctx, services.SetupRequest{LinkValue: link, InstallationID: 123456})
	require.NoError(t, err)
	require.True(t, first.Committed())

	// A redelivered webhook after commit changes neither tenant nor role.
	require.NoError(t, s.installations.ApplyEvent(ctx, testutil.DemoOrgInstallation().Event(t)))

	assert.Equal(t, 1, countRows(t, tdb, `SELECT COUNT(*) FROM tenants`))
	assert.Equal(t, 1, countRows(t, tdb, `SELECT COUNT(*) FROM user_tenant_roles WHERE user_id = $1`, user.ID))
	role, ok, err := s.tenants.GetRole(ctx, user.ID, "org_9001")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.RoleAdmin, role)
}

func TestOnboarding_Integration_MissingInstallationIsPending(t *testing.T) {
	tdb := setupTest(t)
	wait := quickWait()
	s := newStack(tdb, wait)
	ctx := context.Background()

	user, _, link := beginOnboarding(t, tdb, s)

	result, err := s.onboarding.Complete(ctx, services.SetupRequest{
		LinkValue:      link,
		InstallationID: 999999,
		SetupAction:    services.SetupActionInstall,
	})

	require.NoError(t, err)
	assert.False(t, result.Committed())
	assert.Equal(t, services.FailurePending, result.Failure)
	assert.Equal(t, wait.Attempts, result.Attempts)

	memberships, err := s.tenants.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, memberships)

	// The link survives so a later retry can still complete.
	_, err = s.sessions.ResolveOnboardingLink(ctx, link)
	assert.NoError(t, err)
}

func TestOnboarding_Integration_StrangerIsForbidden(t *testing.T) {
	tdb := setupTest(t)
	s := newStack(tdb, quickWait())
	ctx := context.Background()

	_, _, link := beginOnboarding(t, tdb, s)

	payload := testutil.DemoOrgInstallation()
	payload.SenderID = 77
	require.NoError(t, s.installations.ApplyEvent(ctx, payload.Event(t)))

	result, err := s.onboarding.Complete(ctx, services.SetupRequest{LinkValue: link, InstallationID: 123456})

	require.NoError(t, err)
	assert.Equal(t, services.FailureForbidden, result.Failure)
	assert.Equal(t, 0, countRows(t, tdb, `SELECT COUNT(*) FROM tenants`))
}

func TestOnboarding_Integration_UnknownLinkIsExpired(t *testing.T) {
	tdb := setupTest(t)
	s := newStack(tdb, quickWait())

	result, err := s.onboarding.Complete(context.Background(), services.SetupRequest{
		LinkValue:      "never-issued",
		InstallationID: 123456,
	})

	require.NoError(t, err)
	assert.Equal(t, services.FailureExpired, result.Failure)
}

func TestOnboarding_Integration_CommittedRoleFlowsIntoToken(t *testing.T) {
	tdb := setupTest(t)
	s := newStack(tdb, quickWait())
	ctx := context.Background()

	user, _, link := beginOnboarding(t, tdb, s)
	require.NoError(t, s.installations.ApplyEvent(ctx, testutil.DemoOrgInstallation().Event(t)))
	result, err := s.onboarding.Complete(ctx, services.SetupRequest{LinkValue: link, InstallationID: 123456})
	require.NoError(t, err)
	require.True(t, result.Committed())

	role, ok, err := s.tenants.GetRole(ctx, user.ID, result.Tenant.ID)
	require.NoError(t, err)
	require.True(t, ok)

	tokens := testutil.TestTokenService()
	token, err := tokens.Issue(services.Identity{UserID: user.ID.String(), TenantID: result.Tenant.ID, TenantRole: role})
	require.NoError(t, err)

	claims, valid := tokens.Verify(token)
	require.True(t, valid)
	assert.NoError(t, authz.RequireAdmin(claims.AuthzContext()))
}
