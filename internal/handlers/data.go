package handlers

import (
	"net/http"

	"github.com/dimitrije/shipyard/internal/apperror"
	"github.com/dimitrije/shipyard/internal/authz"
	"github.com/dimitrije/shipyard/internal/middleware"
	"github.com/dimitrije/shipyard/internal/models"
	"github.com/dimitrije/shipyard/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

// DataHandler serves the data service's tenant-scoped reads. Every route
// passes the authorization gate before touching storage.
type DataHandler struct {
	memberLister       MemberListerInterface
	installationLister InstallationListerInterface
}

func NewDataHandler(memberLister MemberListerInterface, installationLister InstallationListerInterface) *DataHandler {
	return &DataHandler{memberLister: memberLister, installationLister: installationLister}
}

func (h *DataHandler) Context(c *drift.Context) {
	ac := middleware.GetAuthzContext(c)
	if err := authz.RequireRead(ac); err != nil {
		middleware.RespondError(c, err)
		return
	}

	caps := authz.CapabilitiesOf(ac.TenantRole)
	_ = c.JSON(http.StatusOK, dto.ContextResponse{
		UserID:     ac.UserID,
		Username:   ac.Username,
		AvatarURL:  ac.AvatarURL,
		Login:      ac.Login,
		TenantID:   ac.TenantID,
		TenantRole: ac.TenantRole.String(),
		Capabilities: dto.CapabilitiesResponse{
			Read:  caps.Read,
			Write: caps.Write,
			Admin: caps.Admin,
		},
	})
}

func (h *DataHandler) Members(c *drift.Context) {
	ac := middleware.GetAuthzContext(c)
	if err := authz.RequireRead(ac); err != nil {
		middleware.RespondError(c, err)
		return
	}

	members, err := h.memberLister.ListMembers(c.Request.Context(), ac.TenantID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	resp := dto.MemberListResponse{
		TenantID: ac.TenantID,
		Members:  make([]dto.MemberResponse, len(members)),
	}
	for i, m := range members {
		member := dto.MemberResponse{UserID: m.UserID.String(), Role: m.Role.String()}
		if m.User != nil {
			member.Login = m.User.Login
			member.Name = m.User.DisplayName()
			if m.User.AvatarURL != nil {
				member.AvatarURL = *m.User.AvatarURL
			}
		}
		resp.Members[i] = member
	}

	_ = c.JSON(http.StatusOK, resp)
}

func (h *DataHandler) Installations(c *drift.Context) {
	ac := middleware.GetAuthzContext(c)
	if err := authz.RequireAdmin(ac); err != nil {
		middleware.RespondError(c, err)
		return
	}

	kind, accountID, err := models.ParseTenantID(ac.TenantID)
	if err != nil {
		middleware.RespondError(c, apperror.ValidationFailed(err.Error()))
		return
	}

	installations, err := h.installationLister.ListByAccount(c.Request.Context(), kind, accountID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	resp := dto.InstallationListResponse{
		TenantID:      ac.TenantID,
		Installations: make([]dto.InstallationResponse, len(installations)),
	}
	for i, inst := range installations {
		resp.Installations[i] = dto.InstallationResponse{
			InstallationID:  inst.InstallationID,
			AccountLogin:    inst.AccountLogin,
			AccountType:     string(inst.AccountType),
			RepositoryCount: inst.RepositoryCount,
			Status:          string(inst.Status),
		}
	}

	_ = c.JSON(http.StatusOK, resp)
}
