package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dimitrije/shipyard/internal/logger"
	"github.com/dimitrije/shipyard/internal/webhook"
	"github.com/dimitrije/shipyard/pkg/dto"
	"github.com/dimitrije/shipyard/tests/testutil"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testWebhookSecret = "webhook-test-secret"

func setupWebhookTest(t *testing.T) (*testutil.MockInstallationService, http.Handler) {
	t.Helper()
	installations := new(testutil.MockInstallationService)
	handler := NewWebhookHandler(testWebhookSecret, installations)

	app := drift.New()
	app.Post("/webhook/github", handler.HandleGitHub)
	return installations, app
}

func webhookRequest(event string, body []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.EventHeader, event)
	req.Header.Set(webhook.DeliveryHeader, "72d3162e-cc78-11e3-81ab-4c9367dc0958")
	if signature != "" {
		req.Header.Set(webhook.SignatureHeader, signature)
	}
	return req
}

func TestWebhookHandler_AppliesInstallationEvent(t *testing.T) {
	installations, app := setupWebhookTest(t)
	body := testutil.DemoOrgInstallation().Bytes(t)

	installations.On("ApplyEvent", mock.Anything, mock.MatchedBy(func(ev *webhook.InstallationEvent) bool {
		return ev.Installation.ID == 123456 && ev.Installation.Account.Login == "demo-org"
	})).Return(nil)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, webhookRequest("installation", body, webhook.Sign(body, testWebhookSecret)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "processed", resp.Status)
	assert.Equal(t, "installation", resp.Event)
	installations.AssertExpectations(t)
}

func TestWebhookHandler_RejectsBadSignatures(t *testing.T) {
	body := testutil.DemoOrgInstallation().Bytes(t)

	tests := []struct {
		name      string
		signature string
	}{
		{"missing", ""},
		{"wrong secret", webhook.Sign(body, "someone-else")},
		{"sha1 scheme", "sha1=0123456789abcdef0123456789abcdef01234567"},
		{"not hex", "sha256=zzzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			installations, app := setupWebhookTest(t)

			rec := httptest.NewRecorder()
			app.ServeHTTP(rec, webhookRequest("installation", body, tt.signature))

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			installations.AssertNotCalled(t, "ApplyEvent", mock.Anything, mock.Anything)
		})
	}
}

func TestWebhookHandler_LogsSignatureRejectionReason(t *testing.T) {
	body := testutil.DemoOrgInstallation().Bytes(t)

	tests := []struct {
		name      string
		signature string
		reason    error
	}{
		{"missing", "", webhook.ErrMissingSignature},
		{"not hex", "sha256=zzzz", webhook.ErrMalformedSignature},
		{"wrong secret", webhook.Sign(body, "someone-else"), webhook.ErrSignatureMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, app := setupWebhookTest(t)
			core, logs := observer.New(zapcore.DebugLevel)

			req := webhookRequest("installation", body, tt.signature)
			req = req.WithContext(logger.WithContext(req.Context(), zap.New(core)))

			rec := httptest.NewRecorder()
			app.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			entries := logs.FilterMessage("webhook signature rejected").All()
			require.Len(t, entries, 1)
			assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
			assert.Equal(t, tt.reason.Error(), entries[0].ContextMap()["error"])
		})
	}
}

func TestWebhookHandler_RejectsTamperedBody(t *testing.T) {
	installations, app := setupWebhookTest(t)
	body := testutil.DemoOrgInstallation().Bytes(t)
	signature := webhook.Sign(body, testWebhookSecret)

	tampered := bytes.Replace(body, []byte("demo-org"), []byte("evil-org"), 1)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, webhookRequest("installation", tampered, signature))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	installations.AssertNotCalled(t, "ApplyEvent", mock.Anything, mock.Anything)
}

func TestWebhookHandler_Ping(t *testing.T) {
	installations, app := setupWebhookTest(t)
	body := []byte(`{"zen":"Keep it logically awesome.","hook_id":1}`)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, webhookRequest("ping", body, webhook.Sign(body, testWebhookSecret)))

	assert.Equal(t, http.StatusOK, rec.Code)
	installations.AssertNotCalled(t, "ApplyEvent", mock.Anything, mock.Anything)
}

func TestWebhookHandler_IgnoresOtherEvents(t *testing.T) {
	installations, app := setupWebhookTest(t)
	body := []byte(`{"ref":"refs/heads/main"}`)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, webhookRequest("push", body, webhook.Sign(body, testWebhookSecret)))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	installations.AssertNotCalled(t, "ApplyEvent", mock.Anything, mock.Anything)
}

func TestWebhookHandler_MalformedInstallationPayload(t *testing.T) {
	installations, app := setupWebhookTest(t)
	body := []byte(`{"action":"created","installation":{"id":0}}`)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, webhookRequest("installation", body, webhook.Sign(body, testWebhookSecret)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	installations.AssertNotCalled(t, "ApplyEvent", mock.Anything, mock.Anything)
}

func TestWebhookHandler_StoreFailure(t *testing.T) {
	installations, app := setupWebhookTest(t)
	body := testutil.DemoOrgInstallation().Bytes(t)

	installations.On("ApplyEvent", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, webhookRequest("installation", body, webhook.Sign(body, testWebhookSecret)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	installations.AssertExpectations(t)
}

func TestWebhookHandler_EmptySecretRejectsEverything(t *testing.T) {
	installations := new(testutil.MockInstallationService)
	handler := NewWebhookHandler("", installations)
	app := drift.New()
	app.Post("/webhook/github", handler.HandleGitHub)

	body := testutil.DemoOrgInstallation().Bytes(t)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, webhookRequest("installation", body, webhook.Sign(body, "")))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	installations.AssertNotCalled(t, "ApplyEvent", mock.Anything, mock.Anything)
}
