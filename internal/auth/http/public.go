package http

import (
	"net/http"

	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// CSRFHandler issues a double-submit token.
//
//	@Summary		CSRF token
//	@Description	Sets the anti-forgery cookie and returns the token to echo in the X-CSRF-Token header.
//	@Tags			Security
//	@Produce		json
//	@Success		200	{object}	authsdk.Envelope[authsdk.CSRFResponse]
//	@Router			/api/v1/csrf [get].
func CSRFHandler(cfg httpx.CSRFConfig) http.HandlerFunc {
	header := cfg.HeaderName
	if header == "" {
		header = httpx.CSRFHeaderName
	}

	return func(w http.ResponseWriter, r *http.Request) {
		token, err := httpx.IssueCSRFToken(w, cfg)
		if err != nil {
			slogx.FromContext(r.Context()).Error("failed to issue csrf token", "err", err)
			httpx.WriteError(w, httpx.ErrInternal)
			return
		}
		httpx.WriteOK(w, "", authsdk.CSRFResponse{Token: token, Header: header})
	}
}

// IntegrationScopeHandler echoes the presented API key's scopes.
//
//	@Summary		API key scopes
//	@Description	Returns the id, name and scopes of the key in X-API-Key.
//	@Tags			Integrations
//	@Produce		json
//	@Param			X-API-Key	header		string	true	"Integration key"
//	@Success		200			{object}	authsdk.Envelope[authsdk.ScopeResponse]
//	@Failure		401			{object}	httpx.Envelope	"Missing, unknown, expired or revoked key"
//	@Router			/api/v1/integrations/scope [get].
func IntegrationScopeHandler(w http.ResponseWriter, r *http.Request) {
	key, ok := httpx.APIKeyFrom(r.Context())
	if !ok {
		// API key checks switched off globally.
		httpx.WriteError(w, httpx.ErrInvalidAPIKey)
		return
	}

	scopes := key.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	httpx.WriteOK(w, "", authsdk.ScopeResponse{KeyID: key.ID, Name: key.Name, Scopes: scopes})
}
