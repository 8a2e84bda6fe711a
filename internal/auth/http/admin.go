package http

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
)

type AdminHandler struct {
	RolesService    *service.RolesService
	SettingsService *service.SettingsService
	APIKeyService   *service.APIKeyService
	Now             func() time.Time
}

func (h *AdminHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// HandleClearCache drops cached roles.
//
//	@Summary		Clear role cache
//	@Description	Drops one user's cached role, or all of them when no userId is given. Affects this process only.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ClearCacheRequest	false	"Optional user id"
//	@Success		200		{object}	authsdk.Envelope[authsdk.ClearCacheResponse]
//	@Failure		401		{object}	httpx.Envelope
//	@Failure		403		{object}	httpx.Envelope
//	@Security		BearerAuth
//	@Router			/api/admin/cache/clear [post].
func (h *AdminHandler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ClearCacheRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, err)
			return
		}
	}

	if req.UserID != "" {
		h.RolesService.ClearCache(r.Context(), req.UserID)
	} else {
		h.RolesService.ClearCache(r.Context())
	}

	httpx.WriteOK(w, "role cache cleared", authsdk.ClearCacheResponse{
		ClearedAt: h.now().UTC(),
		UserID:    req.UserID,
	})
}

func settingsResponse(s domain.Settings) authsdk.SettingsResponse {
	return authsdk.SettingsResponse{Collection: s.Collection, Data: s.Data, UpdatedAt: s.UpdatedAt}
}

// HandleGetSettings fetches a settings collection.
//
//	@Summary		Get settings
//	@Tags			Admin
//	@Produce		json
//	@Param			collection	path		string	true	"Collection name"
//	@Success		200			{object}	authsdk.Envelope[authsdk.SettingsResponse]
//	@Failure		404			{object}	httpx.Envelope
//	@Security		BearerAuth
//	@Router			/api/admin/settings/{collection} [get].
func (h *AdminHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.SettingsService.Get(r.Context(), r.PathValue("collection"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteOK(w, "", settingsResponse(s))
}

// HandlePutSettings replaces a settings collection.
//
//	@Summary		Replace settings
//	@Description	Replaces a collection with the JSON object in the body. The security collection only accepts api_keys_enabled, csrf_enabled and rate_limit_enabled.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Param			collection	path		string	true	"Collection name"
//	@Success		200			{object}	authsdk.Envelope[authsdk.SettingsResponse]
//	@Failure		400			{object}	httpx.Envelope
//	@Security		BearerAuth
//	@Router			/api/admin/settings/{collection} [put].
func (h *AdminHandler) HandlePutSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, httpx.MaxBodyBytes))
	if err != nil {
		httpx.WriteError(w, httpx.ErrBadRequest)
		return
	}

	s, err := h.SettingsService.Put(r.Context(), r.PathValue("collection"), json.RawMessage(body))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteOK(w, "settings updated", settingsResponse(s))
}

func apiKeyInfo(k domain.APIKey) authsdk.APIKeyInfo {
	scopes := k.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	return authsdk.APIKeyInfo{
		ID:         k.ID,
		Name:       k.Name,
		Scopes:     scopes,
		ExpiresAt:  k.ExpiresAt,
		Revoked:    k.Revoked,
		CreatedAt:  k.CreatedAt,
		LastUsedAt: k.LastUsedAt,
	}
}

// HandleMintAPIKey creates an integration key.
//
//	@Summary		Mint API key
//	@Description	Creates a key. The raw key is in this response only; the server keeps a fingerprint.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.MintAPIKeyRequest	true	"Key name, scopes and optional ttl"
//	@Success		201		{object}	authsdk.Envelope[authsdk.MintAPIKeyResponse]
//	@Failure		400		{object}	httpx.Envelope
//	@Security		BearerAuth
//	@Router			/api/admin/api-keys [post].
func (h *AdminHandler) HandleMintAPIKey(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req authsdk.MintAPIKeyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	k, raw, err := h.APIKeyService.Mint(r.Context(), service.MintRequest{
		Name:      req.Name,
		Scopes:    req.Scopes,
		TTL:       time.Duration(req.TTLSeconds) * time.Second,
		CreatedBy: u.ID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, httpx.Envelope{
		Success: true,
		Message: "api key created",
		Data:    authsdk.MintAPIKeyResponse{APIKeyInfo: apiKeyInfo(k), Key: raw},
	})
}

// HandleListAPIKeys lists keys without secrets.
//
//	@Summary		List API keys
//	@Tags			Admin
//	@Produce		json
//	@Success		200	{object}	authsdk.Envelope[authsdk.ListAPIKeysResponse]
//	@Security		BearerAuth
//	@Router			/api/admin/api-keys [get].
func (h *AdminHandler) HandleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.APIKeyService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := authsdk.ListAPIKeysResponse{Keys: make([]authsdk.APIKeyInfo, len(keys))}
	for i, k := range keys {
		out.Keys[i] = apiKeyInfo(k)
	}
	httpx.WriteOK(w, "", out)
}

// HandleRevokeAPIKey revokes a key.
//
//	@Summary		Revoke API key
//	@Tags			Admin
//	@Produce		json
//	@Param			id	path		string	true	"Key id"
//	@Success		200	{object}	httpx.Envelope
//	@Failure		404	{object}	httpx.Envelope
//	@Security		BearerAuth
//	@Router			/api/admin/api-keys/{id} [delete].
func (h *AdminHandler) HandleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := h.APIKeyService.Revoke(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteOK(w, "api key revoked", nil)
}
