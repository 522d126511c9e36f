package handlers

import (
	"io"
	"net/http"

	"github.com/dimitrije/shipyard/internal/logger"
	"github.com/dimitrije/shipyard/internal/metrics"
	"github.com/dimitrije/shipyard/internal/webhook"
	"github.com/dimitrije/shipyard/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
	"go.uber.org/zap"
)

// GitHub caps webhook payloads at 25 MB.
const maxWebhookBody = 25 << 20

const (
	eventPing         = "ping"
	eventInstallation = "installation"
)

type WebhookHandler struct {
	secret              string
	installationService InstallationServiceInterface
}

func NewWebhookHandler(secret string, installationService InstallationServiceInterface) *WebhookHandler {
	return &WebhookHandler{secret: secret, installationService: installationService}
}

// HandleGitHub verifies the delivery against the exact bytes received
// before anything parses them.
func (h *WebhookHandler) HandleGitHub(c *drift.Context) {
	event := c.GetHeader(webhook.EventHeader)
	delivery := c.GetHeader(webhook.DeliveryHeader)
	log := logger.FromContext(c.Request.Context()).With(
		zap.String("event", event),
		zap.String("delivery_id", delivery),
	)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		metrics.RecordWebhookDelivery(event, "unreadable")
		c.BadRequest("failed to read body")
		return
	}

	if err := webhook.CheckSignature(body, c.GetHeader(webhook.SignatureHeader), h.secret); err != nil {
		metrics.RecordWebhookDelivery(event, "bad_signature")
		log.Debug("webhook signature rejected", zap.Error(err))
		c.Unauthorized("invalid signature")
		return
	}

	resp := dto.WebhookResponse{Event: event, DeliveryID: delivery}

	switch event {
	case eventPing:
		metrics.RecordWebhookDelivery(event, "processed")
		resp.Status = "pong"
		_ = c.JSON(http.StatusOK, resp)

	case eventInstallation:
		ev, err := webhook.ParseInstallationEvent(body)
		if err != nil {
			metrics.RecordWebhookDelivery(event, "malformed")
			log.Warn("malformed installation payload", zap.Error(err))
			c.BadRequest("malformed installation payload")
			return
		}

		if err := h.installationService.ApplyEvent(c.Request.Context(), ev); err != nil {
			metrics.RecordWebhookDelivery(event, "failed")
			log.Error("failed to apply installation event",
				zap.Int64("installation_id", ev.Installation.ID),
				zap.String("action", ev.Action),
				zap.Error(err),
			)
			c.InternalServerError("failed to apply installation event")
			return
		}

		metrics.RecordWebhookDelivery(event, "processed")
		log.Info("installation event applied",
			zap.Int64("installation_id", ev.Installation.ID),
			zap.String("action", ev.Action),
		)
		resp.Status = "processed"
		_ = c.JSON(http.StatusOK, resp)

	default:
		metrics.RecordWebhookDelivery(event, "ignored")
		resp.Status = "ignored"
		_ = c.JSON(http.StatusAccepted, resp)
	}
}
