package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWT_ALGORITHM", "WARDEN_DATABASE_FILE",
		"ROLE_CACHE_TTL", "ROLE_CACHE_SIZE", "VERIFICATION_CODE_TTL", "ENV", "COOKIE_SECURE", "PORT",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	require.Equal(t, "HS256", cfg.JWTAlgorithm)
	require.Equal(t, "warden.db", cfg.DatabaseFile)
	require.Equal(t, 30*time.Second, cfg.RoleCacheTTL)
	require.Equal(t, 10_000, cfg.RoleCacheSize)
	require.Equal(t, 15*time.Minute, cfg.VerificationCodeTTL)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "/login", cfg.LoginPath)
	require.Nil(t, cfg.Audience)
	require.False(t, cfg.CookieSecure, "dev serves plain HTTP")
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("AUTH_AUDIENCE", "storefront, admin-console,")
	t.Setenv("ROLE_CACHE_TTL", "5s")
	t.Setenv("VERIFICATION_CODE_TTL", "10") // bare minutes
	t.Setenv("ROLE_CACHE_SIZE", "not-a-number")
	t.Setenv("ENV", "prod")
	t.Setenv("PORT", "9090")

	cfg := LoadConfig()
	require.Equal(t, []string{"storefront", "admin-console"}, cfg.Audience)
	require.Equal(t, 5*time.Second, cfg.RoleCacheTTL)
	require.Equal(t, 10*time.Minute, cfg.VerificationCodeTTL)
	require.Equal(t, 10_000, cfg.RoleCacheSize)
	require.Equal(t, 9090, cfg.Port)
	require.True(t, cfg.CookieSecure)

	t.Setenv("COOKIE_SECURE", "false")
	require.False(t, LoadConfig().CookieSecure)
}
