package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/rbac"
	"github.com/stretchr/testify/require"
)

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	u := seedUser(t, st, "shopper@example.com", "old123456", "user")

	changedAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := &CredentialService{Store: st, Now: fixedClock(changedAt)}

	t.Run("wrong current password", func(t *testing.T) {
		err := svc.ChangePassword(ctx, u.ID, "old12345x", "new12345")
		require.ErrorIs(t, err, ErrIncorrectCredentials)
	})

	t.Run("new password too short", func(t *testing.T) {
		err := svc.ChangePassword(ctx, u.ID, "old123456", "new1234")
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("length counts characters", func(t *testing.T) {
		// 4 characters, 8 bytes.
		require.ErrorIs(t, ValidateNewPassword("éééé"), ErrInvalidArgument)
		require.NoError(t, ValidateNewPassword("éééééééé"))
	})

	t.Run("missing current password", func(t *testing.T) {
		err := svc.ChangePassword(ctx, u.ID, "", "new12345")
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("unknown user", func(t *testing.T) {
		err := svc.ChangePassword(ctx, "missing", "old123456", "new12345")
		require.ErrorIs(t, err, rbac.ErrUserNotFound)
	})

	t.Run("success keeps salt", func(t *testing.T) {
		require.NoError(t, svc.ChangePassword(ctx, u.ID, "old123456", "new12345"))

		got, err := st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, u.Salt, got.Salt)
		require.NotEqual(t, u.PasswordHash, got.PasswordHash)
		require.NotNil(t, got.PasswordUpdatedAt)
		require.True(t, changedAt.Equal(*got.PasswordUpdatedAt))

		ok, err := cryptox.VerifyPassword(ctx, "new12345", got.Salt, got.PasswordHash)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = cryptox.VerifyPassword(ctx, "old123456", got.Salt, got.PasswordHash)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("old password no longer accepted", func(t *testing.T) {
		err := svc.ChangePassword(ctx, u.ID, "old123456", "another123")
		require.ErrorIs(t, err, ErrIncorrectCredentials)
	})
}

func TestChangePasswordCorruptCredential(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.Users().CreateUser(ctx, domain.User{
		ID: "corrupt", Email: "broken@example.com", PasswordHash: "not-hex", Salt: "aa", Role: "user",
	}))

	svc := &CredentialService{Store: st}
	err := svc.ChangePassword(ctx, "corrupt", "whatever1", "new12345")
	require.ErrorIs(t, err, cryptox.ErrCorruptCredential)
	require.NotErrorIs(t, err, ErrIncorrectCredentials)
}
