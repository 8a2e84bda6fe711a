package http

import (
	"net/http"

	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
)

type AccountHandler struct {
	UserService       *service.UserService
	CredentialService *service.CredentialService
}

// HandleMe returns the signed-in user's profile.
//
//	@Summary		Current user
//	@Description	Returns the stored profile of the signed-in user. Never includes credential material.
//	@Tags			Account
//	@Produce		json
//	@Success		200	{object}	authsdk.Envelope[authsdk.ProfileResponse]
//	@Failure		401	{object}	httpx.Envelope	"Missing or invalid bearer"
//	@Security		BearerAuth
//	@Router			/api/v1/me [get].
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	stored, err := h.UserService.GetUserByID(r.Context(), u.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteOK(w, "", authsdk.ProfileResponse{
		ID:                stored.ID,
		Email:             stored.Email,
		Role:              stored.Role,
		PasswordUpdatedAt: stored.PasswordUpdatedAt,
	})
}

// HandleChangePassword changes the signed-in user's password.
//
//	@Summary		Change password
//	@Description	Verifies the current password and stores a new one (at least 8 characters).
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ChangePasswordRequest	true	"Current and new password"
//	@Success		200		{object}	httpx.Envelope
//	@Failure		400		{object}	httpx.Envelope	"Validation failed or incorrect credentials"
//	@Failure		401		{object}	httpx.Envelope	"Missing or invalid bearer"
//	@Security		BearerAuth
//	@Router			/api/v1/account/password [post].
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req authsdk.ChangePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	if err := h.CredentialService.ChangePassword(r.Context(), u.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteOK(w, "password updated", nil)
}
