package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dimitrije/shipyard/internal/middleware"
	"github.com/dimitrije/shipyard/internal/models"
	"github.com/dimitrije/shipyard/pkg/dto"
	"github.com/dimitrije/shipyard/tests/testutil"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testCallerID = "3f1c2b8e-0a44-4c1e-9d1e-5b7a1f2c3d4e"

func setupDataTest(t *testing.T) (*testutil.MockTenantService, *testutil.MockInstallationLister, http.Handler) {
	t.Helper()
	members := new(testutil.MockTenantService)
	installations := new(testutil.MockInstallationLister)
	handler := NewDataHandler(members, installations)

	app := drift.New()
	internal := app.Group("/internal/v1")
	internal.Use(middleware.CrossServiceAuth(testutil.TestTokenService()))
	internal.Get("/context", handler.Context)
	internal.Get("/tenant/members", handler.Members)
	internal.Get("/tenant/installations", handler.Installations)

	return members, installations, app
}

func dataRequest(t *testing.T, path string, role models.Role) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", testutil.AuthHeader(testutil.GenerateTestToken(t, testCallerID, "org_9001", role)))
	return req
}

func TestDataHandler_Context_Capabilities(t *testing.T) {
	tests := []struct {
		role  models.Role
		write bool
		admin bool
	}{
		{models.RoleAdmin, true, true},
		{models.RoleMember, true, false},
		{models.RoleViewer, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			_, _, app := setupDataTest(t)

			rec := httptest.NewRecorder()
			app.ServeHTTP(rec, dataRequest(t, "/internal/v1/context", tt.role))

			require.Equal(t, http.StatusOK, rec.Code)
			var resp dto.ContextResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, testCallerID, resp.UserID)
			assert.Equal(t, "org_9001", resp.TenantID)
			assert.True(t, resp.Capabilities.Read)
			assert.Equal(t, tt.write, resp.Capabilities.Write)
			assert.Equal(t, tt.admin, resp.Capabilities.Admin)
		})
	}
}

func TestDataHandler_Context_NoRoleIsForbidden(t *testing.T) {
	_, _, app := setupDataTest(t)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, dataRequest(t, "/internal/v1/context", ""))

	require.Equal(t, http.StatusForbidden, rec.Code)
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unknown", resp.Actual)
}

func TestDataHandler_Context_AnonymousIsUnauthorized(t *testing.T) {
	_, _, app := setupDataTest(t)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/v1/context", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDataHandler_Members(t *testing.T) {
	members, _, app := setupDataTest(t)
	avatar := "https://avatars.example/octocat"

	members.On("ListMembers", mock.Anything, "org_9001").Return([]models.UserTenantRole{
		{
			UserID:   uuid.MustParse(testCallerID),
			TenantID: "org_9001",
			Role:     models.RoleAdmin,
			User:     &models.User{Login: "octocat", AvatarURL: &avatar},
		},
	}, nil)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, dataRequest(t, "/internal/v1/tenant/members", models.RoleViewer))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.MemberListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Members, 1)
	assert.Equal(t, "octocat", resp.Members[0].Login)
	assert.Equal(t, "octocat", resp.Members[0].Name)
	assert.Equal(t, avatar, resp.Members[0].AvatarURL)
	assert.Equal(t, "ADMIN", resp.Members[0].Role)
	members.AssertExpectations(t)
}

func TestDataHandler_Members_StoreError(t *testing.T) {
	members, _, app := setupDataTest(t)

	members.On("ListMembers", mock.Anything, "org_9001").Return(nil, errors.New("connection refused"))

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, dataRequest(t, "/internal/v1/tenant/members", models.RoleMember))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDataHandler_Installations_RequiresAdmin(t *testing.T) {
	for _, role := range []models.Role{models.RoleMember, models.RoleViewer} {
		t.Run(role.String(), func(t *testing.T) {
			_, installations, app := setupDataTest(t)

			rec := httptest.NewRecorder()
			app.ServeHTTP(rec, dataRequest(t, "/internal/v1/tenant/installations", role))

			require.Equal(t, http.StatusForbidden, rec.Code)
			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, []string{"ADMIN"}, resp.Required)
			assert.Equal(t, role.String(), resp.Actual)
			installations.AssertNotCalled(t, "ListByAccount", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDataHandler_Installations_Admin(t *testing.T) {
	_, installations, app := setupDataTest(t)

	installations.On("ListByAccount", mock.Anything, models.AccountTypeOrganization, int64(9001)).Return([]models.Installation{
		{
			InstallationID:  123456,
			AccountLogin:    "demo-org",
			AccountType:     models.AccountTypeOrganization,
			RepositoryCount: 3,
			Status:          models.InstallationActive,
		},
	}, nil)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, dataRequest(t, "/internal/v1/tenant/installations", models.RoleAdmin))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.InstallationListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "org_9001", resp.TenantID)
	require.Len(t, resp.Installations, 1)
	assert.Equal(t, int64(123456), resp.Installations[0].InstallationID)
	installations.AssertExpectations(t)
}
