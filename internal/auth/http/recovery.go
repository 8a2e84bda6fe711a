package http

import (
	"net/http"

	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
)

type RecoveryHandler struct {
	RecoveryService *service.RecoveryService
}

// HandleForgot starts password recovery.
//
//	@Summary		Forgot password
//	@Description	Always answers 200 with a sealed code. A code is only mailed when the address is registered.
//	@Tags			Recovery
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ForgotPasswordRequest	true	"Account email"
//	@Success		200		{object}	authsdk.Envelope[authsdk.EncryptedCodeResponse]
//	@Failure		400		{object}	httpx.Envelope
//	@Failure		429		{object}	httpx.Envelope
//	@Router			/api/v1/password/forgot [post].
func (h *RecoveryHandler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForgotPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	token, err := h.RecoveryService.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteOK(w, "if the address is registered a code has been sent", authsdk.EncryptedCodeResponse{EncryptedCode: token})
}

// HandleReset completes password recovery.
//
//	@Summary		Reset password
//	@Description	Verifies a reset code bound to the email and stores the new password.
//	@Tags			Recovery
//	@Accept			json
//	@Produce		json
//	@Param			X-CSRF-Token	header		string							true	"CSRF token"
//	@Param			request			body		authsdk.ResetPasswordRequest	true	"Email, code, encrypted code and new password"
//	@Success		200				{object}	httpx.Envelope
//	@Failure		400				{object}	httpx.Envelope	"Invalid or expired code, or weak password"
//	@Failure		403				{object}	httpx.Envelope	"CSRF check failed"
//	@Failure		429				{object}	httpx.Envelope
//	@Router			/api/v1/password/reset [post].
func (h *RecoveryHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	if err := h.RecoveryService.ResetPassword(r.Context(), req.Email, req.Code, req.EncryptedCode, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteOK(w, "password updated", nil)
}
