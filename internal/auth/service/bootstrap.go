package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/idx"
	"github.com/aussiebroadwan/warden/pkg/rbac"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

var ErrBootstrapFailedToCreateAdmin = errors.New("failed to create admin user")

type BootstrapService struct {
	Store store.Store
}

func (s *BootstrapService) IsBootstrapped(ctx context.Context) (bool, error) {
	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	return !empty, nil
}

// Bootstrap creates the first admin. It refuses once any user exists.
func (s *BootstrapService) Bootstrap(ctx context.Context, req domain.BootstrapData) (string, error) {
	l := slogx.FromContext(ctx)

	email := strings.TrimSpace(req.AdminEmail)
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: admin email is required", ErrInvalidArgument)
	}
	if err := ValidateNewPassword(req.AdminPassword); err != nil {
		return "", err
	}

	// 1. Check if already bootstrapped
	if bootstrapped, err := s.IsBootstrapped(ctx); err != nil {
		return "", err
	} else if bootstrapped {
		return "", ErrBootstrapAlready
	}

	// 2. Hash outside the transaction; the KDF is slow and sqlite has one connection
	salt, err := cryptox.GenerateSalt(cryptox.DefaultSaltLength)
	if err != nil {
		return "", err
	}
	passHash, err := cryptox.HashPassword(ctx, req.AdminPassword, salt)
	if err != nil {
		l.Error("failed to hash admin password", slog.Any("error", err))
		return "", ErrBootstrapFailedToCreateAdmin
	}

	// 3. Create the admin, re-checking emptiness under the transaction
	adminUserID := idx.New().String()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		empty, err := tx.Users().IsEmpty(ctx)
		if err != nil {
			return err
		}
		if !empty {
			return ErrBootstrapAlready
		}

		if err := tx.Users().CreateUser(ctx, domain.User{
			ID:           adminUserID,
			Email:        email,
			PasswordHash: passHash,
			Salt:         salt,
			Role:         rbac.RoleAdmin.String(),
		}); err != nil {
			l.Error("failed to create admin user",
				slog.String("admin_user_id", adminUserID),
				slog.Any("error", err),
			)
			return ErrBootstrapFailedToCreateAdmin
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	l.Info("successfully bootstrapped system", slog.String("admin_user_id", adminUserID))
	return adminUserID, nil
}
