package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/rbac"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// MinPasswordLength is counted in characters, not bytes.
const MinPasswordLength = 8

// CredentialService owns password changes. The salt is created with the user
// and reused for every later hash.
type CredentialService struct {
	Store store.Store
	Now   func() time.Time
}

func (s *CredentialService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ValidateNewPassword checks the length policy.
func ValidateNewPassword(pw string) error {
	if utf8.RuneCountInString(pw) < MinPasswordLength {
		return fmt.Errorf("%w: new password must be at least %d characters", ErrInvalidArgument, MinPasswordLength)
	}
	return nil
}

// ChangePassword verifies current against the stored credential and replaces
// it with newPassword. A wrong current password is ErrIncorrectCredentials;
// a stored hash that cannot be parsed is cryptox.ErrCorruptCredential.
func (s *CredentialService) ChangePassword(ctx context.Context, userID, current, newPassword string) error {
	l := slogx.FromContext(ctx)

	if current == "" {
		return fmt.Errorf("%w: current password is required", ErrInvalidArgument)
	}
	if err := ValidateNewPassword(newPassword); err != nil {
		return err
	}

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return rbac.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	ok, err := cryptox.VerifyPassword(ctx, current, u.Salt, u.PasswordHash)
	if err != nil {
		if errors.Is(err, cryptox.ErrCorruptCredential) {
			l.Error("stored credential is corrupt", slog.String("user_id", userID), slog.Any("error", err))
		}
		return err
	}
	if !ok {
		l.Warn("password change rejected: incorrect current password", slog.String("user_id", userID))
		return ErrIncorrectCredentials
	}

	return s.setPassword(ctx, userID, u.Salt, newPassword)
}

// ResetPassword replaces the password without checking the old one. Callers
// must have proven control of the account some other way.
func (s *CredentialService) ResetPassword(ctx context.Context, userID, newPassword string) error {
	if err := ValidateNewPassword(newPassword); err != nil {
		return err
	}

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return rbac.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	return s.setPassword(ctx, userID, u.Salt, newPassword)
}

func (s *CredentialService) setPassword(ctx context.Context, userID, salt, newPassword string) error {
	hash, err := cryptox.HashPassword(ctx, newPassword, salt)
	if err != nil {
		return err
	}

	if err := s.Store.Users().UpdatePassword(ctx, userID, hash, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return rbac.ErrUserNotFound
		}
		return fmt.Errorf("store password: %w", err)
	}

	slogx.FromContext(ctx).Info("password updated", slog.String("user_id", userID))
	return nil
}
