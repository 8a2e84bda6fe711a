package service

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &BootstrapService{Store: st}

	t.Run("validation", func(t *testing.T) {
		_, err := svc.Bootstrap(ctx, domain.BootstrapData{AdminEmail: "nobody", AdminPassword: "longenough"})
		require.ErrorIs(t, err, ErrInvalidArgument)
		_, err = svc.Bootstrap(ctx, domain.BootstrapData{AdminEmail: "ops@example.com", AdminPassword: "short"})
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	done, err := svc.IsBootstrapped(ctx)
	require.NoError(t, err)
	require.False(t, done)

	id, err := svc.Bootstrap(ctx, domain.BootstrapData{AdminEmail: "ops@example.com", AdminPassword: "longenough"})
	require.NoError(t, err)

	u, err := st.Users().GetUserByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "admin", u.Role)
	ok, err := cryptox.VerifyPassword(ctx, "longenough", u.Salt, u.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.Bootstrap(ctx, domain.BootstrapData{AdminEmail: "second@example.com", AdminPassword: "longenough"})
	require.ErrorIs(t, err, ErrBootstrapAlready)
}
