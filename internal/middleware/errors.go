package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dimitrije/shipyard/internal/apperror"
	"github.com/dimitrije/shipyard/internal/logger"
	"github.com/dimitrije/shipyard/internal/metrics"
	"github.com/dimitrije/shipyard/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
	"go.uber.org/zap"
)

// RespondError maps err onto an HTTP response. Authorization denials keep
// their required-role context so callers can explain the refusal.
func RespondError(c *drift.Context, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(err))
		c.InternalServerError("internal server error")
		return
	}

	switch {
	case errors.Is(err, apperror.ErrForbidden):
		metrics.RecordAuthorizationDenial(strings.Join(appErr.Required, ","))
		_ = c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error:    "FORBIDDEN",
			Message:  appErr.Message,
			Required: appErr.Required,
			Actual:   appErr.Actual,
		})
	case errors.Is(err, apperror.ErrUnauthenticated):
		c.Unauthorized(appErr.Message)
	case errors.Is(err, apperror.ErrNotFound):
		c.NotFound(appErr.Message)
	case errors.Is(err, apperror.ErrValidation):
		c.BadRequest(appErr.Message)
	default:
		logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(err))
		c.InternalServerError("internal server error")
	}
}
