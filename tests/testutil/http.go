package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimitrije/shipyard/internal/models"
	"github.com/dimitrije/shipyard/internal/services"
)

const TestCrossServiceSecret = "test-secret-key-for-testing-only"

// TestTokenService creates a CrossServiceTokenService with test configuration
func TestTokenService() *services.CrossServiceTokenService {
	return services.NewCrossServiceTokenService(TestCrossServiceSecret, 15*time.Minute)
}

// GenerateTestToken mints a cross-service token for userID acting in tenantID
func GenerateTestToken(t *testing.T, userID, tenantID string, role models.Role) string {
	t.Helper()
	token, err := TestTokenService().Issue(services.Identity{
		UserID:     userID,
		Username:   "Test User",
		Login:      "test-user",
		TenantID:   tenantID,
		TenantRole: role,
	})
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// AuthHeader returns an Authorization header value with a Bearer token
func AuthHeader(token string) string {
	return "Bearer " + token
}

// HTTPTestClient provides helper methods for HTTP testing
type HTTPTestClient struct {
	t       *testing.T
	handler http.Handler
}

// NewHTTPTestClient creates a new HTTP test client
func NewHTTPTestClient(t *testing.T, handler http.Handler) *HTTPTestClient {
	return &HTTPTestClient{t: t, handler: handler}
}

// Request makes an HTTP request and returns the response
func (c *HTTPTestClient) Request(method, path string, body any, headers map[string]string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	c.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("failed to marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

// GET makes a GET request
func (c *HTTPTestClient) GET(path string, headers map[string]string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return c.Request(http.MethodGet, path, nil, headers, cookies...)
}

// POST makes a POST request
func (c *HTTPTestClient) POST(path string, body any, headers map[string]string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return c.Request(http.MethodPost, path, body, headers, cookies...)
}

// ParseJSON parses the response body as JSON
func ParseJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to parse response JSON: %v", err)
	}
}

// AssertStatus asserts the response status code
func AssertStatus(t *testing.T, rec *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rec.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rec.Code, rec.Body.String())
	}
}

// ResponseCookie returns the cookie named name set on the response, if any
func ResponseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}
