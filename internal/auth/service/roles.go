package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/rbac"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// Invalidator drops cached roles. *rbac.Resolver satisfies it.
type Invalidator interface {
	Invalidate(ids ...string)
}

type RolesService struct {
	Store store.Store
	Cache Invalidator
}

// SetRole changes the stored role and evicts the cached one, so the change
// is visible to the next admin check in this process.
func (s *RolesService) SetRole(ctx context.Context, userID string, role rbac.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, role)
	}

	err := s.Store.Users().UpdateRole(ctx, userID, role.String())
	if errors.Is(err, store.ErrNotFound) {
		return rbac.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}

	if s.Cache != nil {
		s.Cache.Invalidate(userID)
	}

	slogx.FromContext(ctx).Info("role changed",
		slog.String("user_id", userID),
		slog.String("role", role.String()),
	)
	return nil
}

// ClearCache drops cached roles for ids, or every entry when ids is empty.
func (s *RolesService) ClearCache(ctx context.Context, ids ...string) {
	if s.Cache != nil {
		s.Cache.Invalidate(ids...)
	}
	slogx.FromContext(ctx).Info("role cache cleared", slog.Int("ids", len(ids)))
}
