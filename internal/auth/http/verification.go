package http

import (
	"net/http"

	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
)

type VerificationHandler struct {
	VerificationService *service.VerificationService
}

// HandleIssue mails a code to the signed-in user.
//
//	@Summary		Issue verification code
//	@Description	Mails a 6-digit code to the signed-in user and returns it sealed. The code is valid for 15 minutes and is not stored server side.
//	@Tags			Verification
//	@Produce		json
//	@Success		200	{object}	authsdk.Envelope[authsdk.EncryptedCodeResponse]
//	@Failure		401	{object}	httpx.Envelope
//	@Security		BearerAuth
//	@Router			/api/v1/verification/codes [post].
func (h *VerificationHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	token, err := h.VerificationService.Issue(r.Context(), u.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteOK(w, "verification code sent", authsdk.EncryptedCodeResponse{EncryptedCode: token})
}

// HandleVerify checks a submitted code.
//
//	@Summary		Verify code
//	@Description	Checks a code against its sealed original. Every failure reads "invalid or expired code".
//	@Tags			Verification
//	@Accept			json
//	@Produce		json
//	@Param			X-CSRF-Token	header		string						true	"CSRF token"
//	@Param			request			body		authsdk.VerifyCodeRequest	true	"Code and encrypted code"
//	@Success		200				{object}	httpx.Envelope
//	@Failure		400				{object}	httpx.Envelope	"Invalid or expired code"
//	@Failure		403				{object}	httpx.Envelope	"CSRF check failed"
//	@Failure		429				{object}	httpx.Envelope
//	@Router			/api/v1/verification/verify [post].
func (h *VerificationHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyCodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.Code == "" || req.EncryptedCode == "" {
		httpx.WriteError(w, httpx.ErrBadRequest.WithMessage("code and encryptedCode are required"))
		return
	}

	if _, err := h.VerificationService.Verify(r.Context(), req.Code, req.EncryptedCode); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteOK(w, "code verified", nil)
}
