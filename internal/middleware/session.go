package middleware

import (
	"context"
	"errors"

	"github.com/dimitrije/shipyard/internal/cookies"
	"github.com/dimitrije/shipyard/internal/logger"
	"github.com/dimitrije/shipyard/internal/models"
	"github.com/dimitrije/shipyard/internal/services"
	"github.com/m1z23r/drift/pkg/drift"
	"go.uber.org/zap"
)

const SessionKey = "session"

type SessionLookup interface {
	Get(ctx context.Context, raw string) (*models.Session, error)
}

// Session requires a live gateway session cookie.
func Session(sessions SessionLookup, sessionCookies *cookies.SessionCookies) drift.HandlerFunc {
	return func(c *drift.Context) {
		raw, ok := sessionCookies.Get(c.Request)
		if !ok {
			c.Unauthorized("not authenticated")
			return
		}

		session, err := sessions.Get(c.Request.Context(), raw)
		if errors.Is(err, services.ErrSessionNotFound) {
			sessionCookies.Clear(c.Response)
			c.Unauthorized("session expired")
			return
		}
		if err != nil {
			logger.FromContext(c.Request.Context()).Error("session lookup failed", zap.Error(err))
			c.InternalServerError("failed to load session")
			return
		}

		c.Set(SessionKey, session)

		c.Next()
	}
}

func GetSession(c *drift.Context) *models.Session {
	if v, ok := c.Get(SessionKey); ok {
		if s, ok := v.(*models.Session); ok {
			return s
		}
	}
	return nil
}
