package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func seedUser(t *testing.T, st *sqlite.Store, email, password, role string) domain.User {
	t.Helper()

	salt, err := cryptox.GenerateSalt(0)
	require.NoError(t, err)
	hash, err := cryptox.HashPassword(context.Background(), password, salt)
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		Salt:         salt,
		Role:         role,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type sentCode struct {
	email   string
	code    string
	purpose Purpose
}

type captureMailer struct {
	sent []sentCode
}

func (m *captureMailer) SendCode(_ context.Context, email, code string, purpose Purpose) error {
	m.sent = append(m.sent, sentCode{email: email, code: code, purpose: purpose})
	return nil
}

type countingObserver map[string]int

func (o countingObserver) ObserveVerification(outcome string) { o[outcome]++ }

func newCodec(t *testing.T) *cryptox.SecretCodec {
	t.Helper()
	c, err := cryptox.NewSecretCodec([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return c
}
