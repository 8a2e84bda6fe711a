package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/rbac"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// RecoveryService implements forgot/reset password on top of encrypted
// codes. Responses look the same whether or not the email is registered.
type RecoveryService struct {
	Store       store.Store
	Codes       *VerificationService
	Credentials *CredentialService
}

// ForgotPassword returns an encrypted reset code for email. A code is only
// mailed when the user exists; otherwise the token is a decoy nobody can
// redeem.
func (s *RecoveryService) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidArgument)
	}

	_, err := s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		slogx.FromContext(ctx).Info("password reset requested for unknown email")
		return s.Codes.issue(ctx, email, PurposeReset, false)
	case err != nil:
		return "", fmt.Errorf("load user: %w", err)
	}

	return s.Codes.issue(ctx, email, PurposeReset, true)
}

// ResetPassword checks the reset code bound to email and stores newPassword.
// An unknown email fails the same way as a wrong code.
func (s *RecoveryService) ResetPassword(ctx context.Context, email, code, token, newPassword string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidArgument)
	}
	if err := ValidateNewPassword(newPassword); err != nil {
		return err
	}

	if _, err := s.Codes.VerifyFor(ctx, code, token, PurposeReset, email); err != nil {
		return err
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		slogx.FromContext(ctx).Warn("password reset rejected: user vanished", slog.String("email", email))
		return ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	if err := s.Credentials.ResetPassword(ctx, u.ID, newPassword); err != nil {
		if errors.Is(err, rbac.ErrUserNotFound) {
			return ErrInvalidCode
		}
		return err
	}
	return nil
}
