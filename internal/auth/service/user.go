package service

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/rbac"
)

type UserService struct {
	Store store.Store
}

// GetUserByID fetches a user by id. A missing user is rbac.ErrUserNotFound.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, rbac.ErrUserNotFound
	}
	return u, err
}
