package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimitrije/shipyard/internal/authz"
	"github.com/dimitrije/shipyard/internal/models"
	"github.com/dimitrije/shipyard/internal/services"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService() *services.CrossServiceTokenService {
	return services.NewCrossServiceTokenService("test-secret-key", 15*time.Minute)
}

func newProtectedApp(tokens TokenVerifier) http.Handler {
	app := drift.New()
	app.Use(CrossServiceAuth(tokens))
	app.Get("/protected", func(c *drift.Context) {
		_ = c.JSON(http.StatusOK, GetAuthzContext(c))
	})
	return app
}

func serve(app http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func TestCrossServiceAuth_MissingAuthorizationHeader(t *testing.T) {
	app := newProtectedApp(newTestTokenService())

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/protected", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestCrossServiceAuth_InvalidAuthorizationFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer scheme", "Token some-token"},
		{"only bearer", "Bearer"},
	}

	app := newProtectedApp(newTestTokenService())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", tt.header)

			rec := serve(app, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "invalid authorization header format")
		})
	}
}

func TestCrossServiceAuth_RejectsBadTokens(t *testing.T) {
	foreign := services.NewCrossServiceTokenService("someone-elses-secret", 15*time.Minute)
	foreignToken, err := foreign.Issue(services.Identity{UserID: "u-1"})
	require.NoError(t, err)

	expiring := services.NewCrossServiceTokenService("test-secret-key", -time.Minute)
	expiredToken, err := expiring.Issue(services.Identity{UserID: "u-1"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", foreignToken},
		{"expired", expiredToken},
	}

	app := newProtectedApp(newTestTokenService())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)

			rec := serve(app, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "invalid or expired token")
		})
	}
}

func TestCrossServiceAuth_ValidTokenExposesCaller(t *testing.T) {
	tokens := newTestTokenService()
	token, err := tokens.Issue(services.Identity{
		UserID:     "8b0e7a8e-6a0c-4a53-9b7e-1f0e3c1d2a11",
		Username:   "Octo Cat",
		Login:      "octocat",
		TenantID:   "org_9001",
		TenantRole: models.RoleAdmin,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "bearer "+token)

	rec := serve(newProtectedApp(tokens), req)

	require.Equal(t, http.StatusOK, rec.Code)

	var ac authz.Context
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ac))
	assert.Equal(t, "8b0e7a8e-6a0c-4a53-9b7e-1f0e3c1d2a11", ac.UserID)
	assert.Equal(t, "octocat", ac.Login)
	assert.Equal(t, "org_9001", ac.TenantID)
	assert.Equal(t, models.RoleAdmin, ac.TenantRole)
}
