package cryptox

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrInvalidArgument is a caller contract violation (e.g. missing salt).
	ErrInvalidArgument = errors.New("cryptox: invalid argument")

	// ErrCorruptCredential reports a stored hash that cannot be decoded. It is
	// kept distinct from a plain mismatch so operators can alert on it.
	ErrCorruptCredential = errors.New("cryptox: corrupt stored credential")

	// ErrHashingUnavailable reports a KDF failure or a request deadline that
	// expired while the KDF was running.
	ErrHashingUnavailable = errors.New("cryptox: hashing unavailable")
)

// PasswordParams is a versioned scrypt parameter set. Stored hashes are only
// comparable when produced by the same parameter set.
type PasswordParams struct {
	Version int
	N       int // CPU/memory cost
	R       int // Block size
	P       int // Parallelism
	KeyLen  int // Derived key length in bytes
}

// PasswordParamsV1 is the active parameter set.
var PasswordParamsV1 = PasswordParams{
	Version: 1,
	N:       1 << 14,
	R:       8,
	P:       1,
	KeyLen:  64,
}

// DefaultSaltLength is the number of random bytes in a generated salt.
const DefaultSaltLength = 16

// GenerateSalt returns length cryptographically secure random bytes, hex
// encoded. A non-positive length falls back to DefaultSaltLength.
func GenerateSalt(length int) (string, error) {
	if length <= 0 {
		length = DefaultSaltLength
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashPassword derives a 64 byte scrypt key from the NFKC normalized password
// and the salt string, returned as lowercase hex. The result is deterministic
// for a given password and salt.
func HashPassword(ctx context.Context, password, salt string) (string, error) {
	key, err := derivePasswordKey(ctx, password, salt, PasswordParamsV1)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

// VerifyPassword recomputes the hash for password and salt and compares it to
// expectedHex in constant time.
//
// A malformed expectedHex yields (false, ErrCorruptCredential). Callers must
// still present the same generic failure to the client.
func VerifyPassword(ctx context.Context, password, salt, expectedHex string) (bool, error) {
	if salt == "" {
		return false, fmt.Errorf("%w: salt is required", ErrInvalidArgument)
	}

	expected, err := hex.DecodeString(expectedHex)
	if err != nil || len(expected) != PasswordParamsV1.KeyLen {
		// Still run the KDF so a corrupt record costs the same as a real check.
		_, _ = derivePasswordKey(ctx, password, salt, PasswordParamsV1)
		return false, ErrCorruptCredential
	}

	computed, err := derivePasswordKey(ctx, password, salt, PasswordParamsV1)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// derivePasswordKey runs scrypt off the caller's goroutine so a cancelled or
// expired context returns promptly. The KDF itself cannot be interrupted and
// finishes in the background.
func derivePasswordKey(ctx context.Context, password, salt string, params PasswordParams) ([]byte, error) {
	if salt == "" {
		return nil, fmt.Errorf("%w: salt is required", ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHashingUnavailable, err)
	}

	type result struct {
		key []byte
		err error
	}
	done := make(chan result, 1)

	go func() {
		normalized := norm.NFKC.String(password)
		key, err := scrypt.Key([]byte(normalized), []byte(salt), params.N, params.R, params.P, params.KeyLen)
		done <- result{key: key, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrHashingUnavailable, res.err)
		}
		return res.key, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrHashingUnavailable, ctx.Err())
	}
}

// GeneratePassword returns a random 12 character alphanumeric password.
func GeneratePassword() (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 12
	password := make([]byte, length)
	for i := range password {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random password: %w", err)
		}
		password[i] = charset[n.Int64()]
	}
	return string(password), nil
}
