package authsdk

import (
	"context"
	"net/http"
)

// FetchCSRF asks the server for a CSRF token. The cookie lands in the jar
// and the token is replayed on every later state-changing request.
func (c *SDKClient) FetchCSRF(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/v1/csrf", nil, nil)
	if err != nil {
		return err
	}

	var out CSRFResponse
	if err := decodeEnvelope(resp, &out, http.StatusOK); err != nil {
		return err
	}

	c.mu.Lock()
	c.csrfToken = out.Token
	c.mu.Unlock()
	return nil
}

// VerifyCode checks a code against the encrypted code it was issued with.
func (c *SDKClient) VerifyCode(ctx context.Context, code, encryptedCode string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/v1/verification/verify",
		VerifyCodeRequest{Code: code, EncryptedCode: encryptedCode}, nil)
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, nil, http.StatusOK)
}

// ForgotPassword starts recovery for email. It succeeds whether or not the
// address is registered.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/v1/password/forgot",
		ForgotPasswordRequest{Email: email}, nil)
	if err != nil {
		return "", err
	}

	var out EncryptedCodeResponse
	if err := decodeEnvelope(resp, &out, http.StatusOK); err != nil {
		return "", err
	}
	return out.EncryptedCode, nil
}

// ResetPassword completes recovery.
func (c *SDKClient) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/v1/password/reset", req, nil)
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, nil, http.StatusOK)
}

// IntegrationScope reports the scopes of apiKey.
func (c *SDKClient) IntegrationScope(ctx context.Context, apiKey string) (*ScopeResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/v1/integrations/scope", nil,
		map[string]string{"X-API-Key": apiKey})
	if err != nil {
		return nil, err
	}

	var out ScopeResponse
	if err := decodeEnvelope(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
