package authsdk

import (
	"context"
	"net/http"
)

// Me returns the signed-in user's profile.
func (s *Session) Me(ctx context.Context) (*ProfileResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/api/v1/me", nil)
	if err != nil {
		return nil, err
	}

	var out ProfileResponse
	if err := decodeEnvelope(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangePassword replaces the signed-in user's password.
func (s *Session) ChangePassword(ctx context.Context, current, newPassword string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/api/v1/account/password",
		ChangePasswordRequest{CurrentPassword: current, NewPassword: newPassword})
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, nil, http.StatusOK)
}

// IssueCode mails a verification code to the signed-in user and returns the
// encrypted form to submit alongside it.
func (s *Session) IssueCode(ctx context.Context) (string, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/api/v1/verification/codes", nil)
	if err != nil {
		return "", err
	}

	var out EncryptedCodeResponse
	if err := decodeEnvelope(resp, &out, http.StatusOK); err != nil {
		return "", err
	}
	return out.EncryptedCode, nil
}
