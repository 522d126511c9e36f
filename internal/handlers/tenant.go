package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dimitrije/shipyard/internal/dataclient"
	"github.com/dimitrije/shipyard/internal/logger"
	"github.com/dimitrije/shipyard/internal/middleware"
	"github.com/dimitrije/shipyard/internal/models"
	"github.com/dimitrije/shipyard/internal/services"
	"github.com/dimitrije/shipyard/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
	"go.uber.org/zap"
)

type TenantHandler struct {
	tenantService  TenantServiceInterface
	sessionService SessionServiceInterface
	tokenIssuer    TokenIssuerInterface
	dataService    DataServiceClientInterface
}

func NewTenantHandler(
	tenantService TenantServiceInterface,
	sessionService SessionServiceInterface,
	tokenIssuer TokenIssuerInterface,
	dataService DataServiceClientInterface,
) *TenantHandler {
	return &TenantHandler{
		tenantService:  tenantService,
		sessionService: sessionService,
		tokenIssuer:    tokenIssuer,
		dataService:    dataService,
	}
}

func (h *TenantHandler) Me(c *drift.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		c.Unauthorized("not authenticated")
		return
	}

	u := session.User
	_ = c.JSON(http.StatusOK, dto.MeResponse{
		User: dto.UserResponse{
			ID:        u.ID,
			GitHubID:  u.GitHubID,
			Login:     u.Login,
			Name:      u.Name,
			Email:     u.Email,
			AvatarURL: u.AvatarURL,
			Role:      u.Role.String(),
		},
		ActiveTenantID: session.ActiveTenantID,
	})
}

func (h *TenantHandler) List(c *drift.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		c.Unauthorized("not authenticated")
		return
	}

	memberships, err := h.tenantService.ListForUser(c.Request.Context(), session.User.ID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	resp := dto.TenantListResponse{
		Tenants:        make([]dto.TenantResponse, len(memberships)),
		ActiveTenantID: session.ActiveTenantID,
	}
	for i, m := range memberships {
		resp.Tenants[i] = dto.TenantResponse{
			ID:           m.Tenant.ID,
			Kind:         string(m.Tenant.Kind),
			DisplayName:  m.Tenant.DisplayName,
			AccountLogin: m.Tenant.AccountLogin,
			Role:         m.Role.String(),
			Active:       session.ActiveTenantID != nil && *session.ActiveTenantID == m.Tenant.ID,
		}
	}

	_ = c.JSON(http.StatusOK, resp)
}

func (h *TenantHandler) Switch(c *drift.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.SwitchTenantRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.TenantID == "" {
		c.BadRequest("tenant_id is required")
		return
	}

	ctx := c.Request.Context()

	role, ok, err := h.tenantService.GetRole(ctx, session.User.ID, req.TenantID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	if !ok {
		c.Forbidden("not a member of this tenant")
		return
	}

	if err := h.sessionService.SetActiveTenant(ctx, session.ID, req.TenantID); err != nil {
		middleware.RespondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, dto.TenantResponse{ID: req.TenantID, Role: role.String(), Active: true})
}

func (h *TenantHandler) Context(c *drift.Context) {
	h.proxy(c, func(ctx context.Context, token string) (any, error) {
		return h.dataService.Context(ctx, token)
	})
}

func (h *TenantHandler) Members(c *drift.Context) {
	h.proxy(c, func(ctx context.Context, token string) (any, error) {
		return h.dataService.Members(ctx, token)
	})
}

func (h *TenantHandler) Installations(c *drift.Context) {
	h.proxy(c, func(ctx context.Context, token string) (any, error) {
		return h.dataService.Installations(ctx, token)
	})
}

// proxy mints a token for the caller's active tenant and forwards the call.
// The role is read again from the store so a revoked membership is never
// carried into a fresh token.
func (h *TenantHandler) proxy(c *drift.Context, call func(ctx context.Context, token string) (any, error)) {
	session := middleware.GetSession(c)
	if session == nil {
		c.Unauthorized("not authenticated")
		return
	}
	if session.ActiveTenantID == nil {
		_ = c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   "NO_ACTIVE_TENANT",
			Message: "select a tenant first",
		})
		return
	}

	ctx := c.Request.Context()
	tenantID := *session.ActiveTenantID

	role, ok, err := h.tenantService.GetRole(ctx, session.User.ID, tenantID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	if !ok {
		c.Forbidden("not a member of this tenant")
		return
	}

	token, err := h.tokenIssuer.Issue(identityFor(session, tenantID, role))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	out, err := call(ctx, token)
	if err != nil {
		var statusErr *dataclient.StatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusForbidden {
			_ = c.JSON(http.StatusForbidden, statusErr.Body)
			return
		}
		logger.FromContext(ctx).Error("data service call failed", zap.Error(err))
		c.BadGateway("data service unavailable")
		return
	}

	_ = c.JSON(http.StatusOK, out)
}

func identityFor(session *models.Session, tenantID string, role models.Role) services.Identity {
	return services.Identity{
		UserID:     session.User.ID.String(),
		Username:   session.User.Name,
		AvatarURL:  session.User.AvatarURL,
		Login:      session.User.Login,
		TenantID:   tenantID,
		TenantRole: role,
	}
}
