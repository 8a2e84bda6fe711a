package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/pkg/rbac"
)

// UserSourceAdapter adapts the store.Store interface to rbac.UserSource.
// This lets the rbac package read users without depending on the domain
// package directly.
type UserSourceAdapter struct {
	store Store
}

// NewUserSourceAdapter creates a new adapter that implements rbac.UserSource.
func NewUserSourceAdapter(store Store) *UserSourceAdapter {
	return &UserSourceAdapter{store: store}
}

// UserByID maps ErrNotFound onto rbac.ErrUserNotFound. Any other error is
// passed through untouched so the resolver fails closed on it.
func (a *UserSourceAdapter) UserByID(ctx context.Context, id string) (rbac.User, error) {
	u, err := a.store.Users().GetUserByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return rbac.User{}, rbac.ErrUserNotFound
	}
	if err != nil {
		return rbac.User{}, err
	}
	return domainUserToRBAC(u), nil
}

// domainUserToRBAC converts a stored user. An unrecognised role string is
// carried through verbatim so the resolver can reject it.
func domainUserToRBAC(u domain.User) rbac.User {
	role, err := rbac.ParseRole(u.Role)
	if err != nil {
		role = rbac.Role(u.Role)
	}

	var pwAt time.Time
	if u.PasswordUpdatedAt != nil {
		pwAt = *u.PasswordUpdatedAt
	}

	return rbac.User{
		ID:                u.ID,
		Email:             u.Email,
		PasswordHash:      u.PasswordHash,
		Salt:              u.Salt,
		Role:              role,
		PasswordUpdatedAt: pwAt,
	}
}
