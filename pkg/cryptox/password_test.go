package cryptox

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateSalt(t *testing.T) {
	t.Run("default length", func(t *testing.T) {
		salt, err := GenerateSalt(0)
		require.NoError(t, err)
		require.Len(t, salt, DefaultSaltLength*2)

		_, err = hex.DecodeString(salt)
		require.NoError(t, err)
	})

	t.Run("custom length", func(t *testing.T) {
		salt, err := GenerateSalt(32)
		require.NoError(t, err)
		require.Len(t, salt, 64)
	})

	t.Run("unique", func(t *testing.T) {
		a, err := GenerateSalt(DefaultSaltLength)
		require.NoError(t, err)
		b, err := GenerateSalt(DefaultSaltLength)
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})
}

func TestHashPassword(t *testing.T) {
	ctx := context.Background()
	salt, err := GenerateSalt(DefaultSaltLength)
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"empty password", ""},
		{"unicode password", "пароль🔒密码"},
		{"whitespace password", "   spaces   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(ctx, tt.password, salt)
			require.NoError(t, err)

			// 64 byte key, lowercase hex
			require.Len(t, hash, 128)
			require.Equal(t, strings.ToLower(hash), hash)

			// Deterministic for the same salt
			again, err := HashPassword(ctx, tt.password, salt)
			require.NoError(t, err)
			require.Equal(t, hash, again)
		})
	}
}

func TestHashPassword_SaltChangesHash(t *testing.T) {
	ctx := context.Background()

	h1, err := HashPassword(ctx, "samepassword", "salt-one")
	require.NoError(t, err)
	h2, err := HashPassword(ctx, "samepassword", "salt-two")
	require.NoError(t, err)

	require.NotEqual(t, h1, h2)
}

func TestHashPassword_NormalizesUnicode(t *testing.T) {
	ctx := context.Background()

	// "é" as a single code point and as "e" + combining acute accent.
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"

	h1, err := HashPassword(ctx, composed, "salt")
	require.NoError(t, err)
	h2, err := HashPassword(ctx, decomposed, "salt")
	require.NoError(t, err)

	require.Equal(t, h1, h2)
}

func TestHashPassword_MissingSalt(t *testing.T) {
	_, err := HashPassword(context.Background(), "password", "")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestVerifyPassword_Success(t *testing.T) {
	ctx := context.Background()

	passwords := []string{"password123", "P@ssw0rd!#$%^&*()", "", "пароль🔒密码"}
	for _, p := range passwords {
		salt, err := GenerateSalt(DefaultSaltLength)
		require.NoError(t, err)

		hash, err := HashPassword(ctx, p, salt)
		require.NoError(t, err)

		ok, err := VerifyPassword(ctx, p, salt, hash)
		require.NoError(t, err)
		require.True(t, ok, "password %q should verify", p)
	}
}

func TestVerifyPassword_WrongPassword(t *testing.T) {
	ctx := context.Background()
	salt := "0123456789abcdef0123456789abcdef"

	hash, err := HashPassword(ctx, "correct-password", salt)
	require.NoError(t, err)

	tests := []struct {
		name          string
		wrongPassword string
	}{
		{"completely wrong", "wrong-password"},
		{"case difference", "Correct-Password"},
		{"extra space", "correct-password "},
		{"empty password", ""},
		{"similar password", "correct-passwor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := VerifyPassword(ctx, tt.wrongPassword, salt, hash)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestVerifyPassword_CorruptStoredHash(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		stored string
	}{
		{"empty", ""},
		{"not hex", "zz-not-hex"},
		{"odd length", "abc"},
		{"too short", strings.Repeat("ab", 32)},
		{"too long", strings.Repeat("ab", 65)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := VerifyPassword(ctx, "password", "salt", tt.stored)
			require.False(t, ok)
			require.ErrorIs(t, err, ErrCorruptCredential)
		})
	}
}

func TestVerifyPassword_MissingSalt(t *testing.T) {
	ok, err := VerifyPassword(context.Background(), "password", "", strings.Repeat("ab", 64))
	require.False(t, ok)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestVerifyPassword_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := VerifyPassword(ctx, "password", "salt", strings.Repeat("ab", 64))
	require.False(t, ok)
	require.ErrorIs(t, err, ErrHashingUnavailable)
	require.ErrorIs(t, err, context.Canceled)
}

func TestVerifyPassword_DistinctPasswordsNeverCollide(t *testing.T) {
	ctx := context.Background()
	salt := "fixed-salt"

	passwords := []string{"alpha-1", "alpha-2", "beta", "gamma gamma"}
	for i, p1 := range passwords {
		hash, err := HashPassword(ctx, p1, salt)
		require.NoError(t, err)

		for j, p2 := range passwords {
			if i == j {
				continue
			}
			ok, err := VerifyPassword(ctx, p2, salt, hash)
			require.NoError(t, err)
			require.False(t, ok, "%q must not verify against hash of %q", p2, p1)
		}
	}
}

// The comparison must not exit early: a stored hash that differs in its first
// byte should take as long to reject as one that differs in its last byte.
func TestVerifyPassword_TimingIndependentOfMismatchPosition(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test skipped in short mode")
	}

	ctx := context.Background()
	salt := "timing-salt"
	password := "timing-password"

	hash, err := HashPassword(ctx, password, salt)
	require.NoError(t, err)
	raw, err := hex.DecodeString(hash)
	require.NoError(t, err)

	first := append([]byte(nil), raw...)
	first[0] ^= 0xFF
	last := append([]byte(nil), raw...)
	last[len(last)-1] ^= 0xFF

	firstHex := hex.EncodeToString(first)
	lastHex := hex.EncodeToString(last)

	measure := func(stored string) time.Duration {
		best := time.Duration(1<<63 - 1)
		for range 8 {
			start := time.Now()
			ok, err := VerifyPassword(ctx, password, salt, stored)
			elapsed := time.Since(start)
			require.NoError(t, err)
			require.False(t, ok)
			best = min(best, elapsed)
		}
		return best
	}

	dFirst := measure(firstHex)
	dLast := measure(lastHex)

	diff := dFirst - dLast
	if diff < 0 {
		diff = -diff
	}
	require.Less(t, diff, max(dFirst, dLast)/2,
		"first-byte mismatch %v vs last-byte mismatch %v", dFirst, dLast)
}

func TestGeneratePassword(t *testing.T) {
	for range 10 {
		password, err := GeneratePassword()
		require.NoError(t, err)
		require.Equal(t, 12, len(password), "password should be 12 characters")

		for _, char := range password {
			valid := (char >= 'a' && char <= 'z') ||
				(char >= 'A' && char <= 'Z') ||
				(char >= '0' && char <= '9')
			require.True(t, valid, "password should only contain alphanumeric characters")
		}
	}
}

func TestPasswordWorkflow_ChangePassword(t *testing.T) {
	ctx := context.Background()

	salt, err := GenerateSalt(DefaultSaltLength)
	require.NoError(t, err)

	// 1. Existing credential
	oldHash, err := HashPassword(ctx, "old123456", salt)
	require.NoError(t, err)

	// 2. Rotate to a new password, keeping the salt
	newHash, err := HashPassword(ctx, "new12345", salt)
	require.NoError(t, err)

	// 3. Old password no longer matches the stored hash, new one does
	ok, err := VerifyPassword(ctx, "old123456", salt, newHash)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = VerifyPassword(ctx, "new12345", salt, newHash)
	require.NoError(t, err)
	require.True(t, ok)

	require.NotEqual(t, oldHash, newHash)
}
