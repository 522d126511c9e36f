package handlers

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dimitrije/shipyard/internal/config"
	"github.com/dimitrije/shipyard/internal/cookies"
	"github.com/dimitrije/shipyard/internal/logger"
	"github.com/dimitrije/shipyard/internal/middleware"
	"github.com/dimitrije/shipyard/internal/oauth"
	"github.com/dimitrije/shipyard/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
	"go.uber.org/zap"
)

const stateTTL = 10 * time.Minute

type AuthHandler struct {
	cfg               *config.Config
	provider          oauth.Provider
	userService       UserServiceInterface
	sessionService    SessionServiceInterface
	onboardingService OnboardingServiceInterface
	tenantService     TenantServiceInterface
	sessionCookies    *cookies.SessionCookies
	onboardingCookies *cookies.OnboardingCookies
	states            sync.Map
}

type stateData struct {
	expiresAt time.Time
}

func NewAuthHandler(
	cfg *config.Config,
	provider oauth.Provider,
	userService UserServiceInterface,
	sessionService SessionServiceInterface,
	onboardingService OnboardingServiceInterface,
	tenantService TenantServiceInterface,
	sessionCookies *cookies.SessionCookies,
	onboardingCookies *cookies.OnboardingCookies,
) *AuthHandler {
	return &AuthHandler{
		cfg:               cfg,
		provider:          provider,
		userService:       userService,
		sessionService:    sessionService,
		onboardingService: onboardingService,
		tenantService:     tenantService,
		sessionCookies:    sessionCookies,
		onboardingCookies: onboardingCookies,
	}
}

// CleanupStates drops abandoned login states until ctx is done.
func (h *AuthHandler) CleanupStates(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweepStates(time.Now())
		}
	}
}

func (h *AuthHandler) sweepStates(now time.Time) {
	h.states.Range(func(key, value any) bool {
		if sd, ok := value.(stateData); ok && now.After(sd.expiresAt) {
			h.states.Delete(key)
		}
		return true
	})
}

func (h *AuthHandler) Login(c *drift.Context) {
	state, err := oauth.GenerateState()
	if err != nil {
		c.InternalServerError("failed to generate state")
		return
	}

	h.states.Store(state, stateData{expiresAt: time.Now().Add(stateTTL)})

	redirect(c, h.provider.GetConsentURL(state))
}

func (h *AuthHandler) Callback(c *drift.Context) {
	log := logger.FromContext(c.Request.Context())

	state := c.QueryParam("state")
	if state == "" {
		h.redirectWithError(c, "missing_state")
		return
	}

	sd, ok := h.states.LoadAndDelete(state)
	if !ok {
		h.redirectWithError(c, "invalid_state")
		return
	}
	if sdTyped, ok := sd.(stateData); !ok || time.Now().After(sdTyped.expiresAt) {
		h.redirectWithError(c, "invalid_state")
		return
	}

	code := c.QueryParam("code")
	if code == "" {
		h.redirectWithError(c, "missing_code")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	userInfo, err := h.provider.ExchangeCode(ctx, code)
	if err != nil {
		log.Warn("github code exchange failed", zap.Error(err))
		h.redirectWithError(c, "github_exchange_failed")
		return
	}

	user, err := h.userService.FindOrCreateFromGitHub(ctx, userInfo)
	if err != nil {
		log.Error("failed to upsert user", zap.Int64("github_id", userInfo.GitHubID), zap.Error(err))
		h.redirectWithError(c, "login_failed")
		return
	}

	raw, session, err := h.sessionService.Create(ctx, user)
	if err != nil {
		log.Error("failed to create session", zap.String("user_id", user.ID.String()), zap.Error(err))
		h.redirectWithError(c, "login_failed")
		return
	}
	h.sessionCookies.Set(c.Response, raw)

	memberships, err := h.tenantService.ListForUser(ctx, user.ID)
	if err != nil {
		log.Error("failed to list tenants", zap.String("user_id", user.ID.String()), zap.Error(err))
		h.redirectWithError(c, "login_failed")
		return
	}

	if len(memberships) == 0 {
		h.startOnboarding(ctx, c, session.ID)
		return
	}

	if session.ActiveTenantID == nil {
		if err := h.sessionService.SetActiveTenant(ctx, session.ID, memberships[0].Tenant.ID); err != nil {
			log.Error("failed to select tenant", zap.Error(err))
			h.redirectWithError(c, "login_failed")
			return
		}
	}

	redirect(c, h.cfg.FrontendURL+"/")
}

// Install sends a signed-in user to GitHub to add another installation.
func (h *AuthHandler) Install(c *drift.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		c.Unauthorized("not authenticated")
		return
	}
	h.startOnboarding(c.Request.Context(), c, session.ID)
}

func (h *AuthHandler) startOnboarding(ctx context.Context, c *drift.Context, sessionID string) {
	if h.cfg.GitHub.AppSlug == "" {
		h.redirectWithError(c, "app_not_configured")
		return
	}

	link, err := h.onboardingService.Begin(ctx, sessionID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to begin onboarding", zap.Error(err))
		h.redirectWithError(c, "login_failed")
		return
	}
	h.onboardingCookies.Set(c.Response, link)

	redirect(c, "https://github.com/apps/"+url.PathEscape(h.cfg.GitHub.AppSlug)+"/installations/new")
}

func (h *AuthHandler) Logout(c *drift.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		c.Unauthorized("not authenticated")
		return
	}

	if err := h.sessionService.Destroy(c.Request.Context(), session.ID); err != nil {
		logger.FromContext(c.Request.Context()).Error("failed to destroy session", zap.Error(err))
		c.InternalServerError("failed to log out")
		return
	}

	h.sessionCookies.Clear(c.Response)
	h.onboardingCookies.Clear(c.Response)

	_ = c.JSON(http.StatusOK, dto.LogoutResponse{Message: "logged out"})
}

func (h *AuthHandler) redirectWithError(c *drift.Context, code string) {
	redirect(c, h.cfg.FrontendURL+"/login?error="+url.QueryEscape(code))
}

func redirect(c *drift.Context, target string) {
	http.Redirect(c.Response, c.Request, target, http.StatusFound)
	c.Abort()
}
