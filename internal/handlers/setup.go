package handlers

import (
	"net/url"
	"strconv"

	"github.com/dimitrije/shipyard/internal/cookies"
	"github.com/dimitrije/shipyard/internal/services"
	"github.com/m1z23r/drift/pkg/drift"
)

// SetupHandler receives GitHub's redirect after an app installation.
type SetupHandler struct {
	frontendURL       string
	onboardingService OnboardingServiceInterface
	onboardingCookies *cookies.OnboardingCookies
}

func NewSetupHandler(frontendURL string, onboardingService OnboardingServiceInterface, onboardingCookies *cookies.OnboardingCookies) *SetupHandler {
	return &SetupHandler{
		frontendURL:       frontendURL,
		onboardingService: onboardingService,
		onboardingCookies: onboardingCookies,
	}
}

func (h *SetupHandler) Setup(c *drift.Context) {
	installationID, err := strconv.ParseInt(c.QueryParam("installation_id"), 10, 64)
	if err != nil || installationID <= 0 {
		c.BadRequest("installation_id must be a positive integer")
		return
	}

	link, _ := h.onboardingCookies.Get(c.Request)

	result, err := h.onboardingService.Complete(c.Request.Context(), services.SetupRequest{
		LinkValue:      link,
		InstallationID: installationID,
		SetupAction:    c.QueryParam("setup_action"),
		TestUserID:     c.QueryParam("test_user_id"),
	})
	if err != nil {
		c.InternalServerError("failed to complete onboarding")
		return
	}

	if result.Committed() {
		h.onboardingCookies.Clear(c.Response)
		redirect(c, h.frontendURL+"/?onboarding=success&tenant="+url.QueryEscape(result.Tenant.ID))
		return
	}

	// A pending or forbidden outcome keeps the cookie so the user can retry
	// once the installation is approved or the webhook lands.
	if result.Failure == services.FailureExpired {
		h.onboardingCookies.Clear(c.Response)
	}
	redirect(c, h.frontendURL+"/onboarding?error="+url.QueryEscape(string(result.Failure)))
}
