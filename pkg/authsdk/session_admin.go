package authsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// ClearCache drops cached roles. An empty userID clears everything.
func (s *Session) ClearCache(ctx context.Context, userID string) (*ClearCacheResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/api/admin/cache/clear", ClearCacheRequest{UserID: userID})
	if err != nil {
		return nil, err
	}

	var out ClearCacheResponse
	if err := decodeEnvelope(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSettings fetches one settings collection.
func (s *Session) GetSettings(ctx context.Context, collection string) (*SettingsResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/api/admin/settings/"+url.PathEscape(collection), nil)
	if err != nil {
		return nil, err
	}

	var out SettingsResponse
	if err := decodeEnvelope(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutSettings replaces one settings collection with data.
func (s *Session) PutSettings(ctx context.Context, collection string, data json.RawMessage) (*SettingsResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPut, "/api/admin/settings/"+url.PathEscape(collection), data)
	if err != nil {
		return nil, err
	}

	var out SettingsResponse
	if err := decodeEnvelope(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// MintAPIKey creates an integration key. The raw key is only in this
// response.
func (s *Session) MintAPIKey(ctx context.Context, req MintAPIKeyRequest) (*MintAPIKeyResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/api/admin/api-keys", req)
	if err != nil {
		return nil, err
	}

	var out MintAPIKeyResponse
	if err := decodeEnvelope(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAPIKeys lists every key without secrets.
func (s *Session) ListAPIKeys(ctx context.Context) ([]APIKeyInfo, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/api/admin/api-keys", nil)
	if err != nil {
		return nil, err
	}

	var out ListAPIKeysResponse
	if err := decodeEnvelope(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Keys, nil
}

// RevokeAPIKey revokes a key by id.
func (s *Session) RevokeAPIKey(ctx context.Context, id string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/api/admin/api-keys/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, nil, http.StatusOK)
}

// SetRole changes a user's stored role.
func (s *Session) SetRole(ctx context.Context, userID, role string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPut, "/api/admin/users/"+url.PathEscape(userID)+"/role",
		SetRoleRequest{Role: role})
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, nil, http.StatusOK)
}
