package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/rbac"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

type RolesHandler struct {
	RolesService *service.RolesService
}

// ServeHTTP changes a user's stored role
//
//	@Summary		Set user role
//	@Description	Stores a new role for the user and evicts its cached role in this process.
//	@Tags			Roles
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"User id"
//	@Param			request	body		authsdk.SetRoleRequest	true	"New role (user or admin)"
//	@Success		200		{object}	httpx.Envelope
//	@Failure		400		{object}	httpx.Envelope	"Unknown role"
//	@Failure		404		{object}	httpx.Envelope	"Unknown user"
//	@Security		BearerAuth
//	@Router			/api/admin/users/{id}/role [put].
func (h *RolesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.SetRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		httpx.WriteError(w, httpx.ErrBadRequest.WithMessage("role must be user or admin"))
		return
	}

	userID := r.PathValue("id")
	if err := h.RolesService.SetRole(ctx, userID, role); err != nil {
		if errors.Is(err, rbac.ErrUserNotFound) {
			log.Warn("role change for unknown user", "user_id", userID)
			httpx.WriteError(w, httpx.ErrNotFound)
			return
		}
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteOK(w, "role updated", nil)
}
