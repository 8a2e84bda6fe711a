package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// MinHS256SecretLength is the shortest shared secret accepted for HS256.
const MinHS256SecretLength = 32

// HS256Verifier validates JWTs signed with a shared HMAC-SHA256 secret.
type HS256Verifier struct {
	secret []byte
	opts   VerifyOptions
}

// NewVerifierHS256 creates a verifier for the given shared secret.
func NewVerifierHS256(secret []byte, opts VerifyOptions) (*HS256Verifier, error) {
	if len(secret) < MinHS256SecretLength {
		return nil, errors.New("jwtx: HS256 secret must be at least 32 bytes")
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &HS256Verifier{secret: s, opts: opts}, nil
}

// Verify validates the JWT string and returns its parsed Claims.
func (v *HS256Verifier) Verify(tokenStr string) (Claims, error) {
	return parse(tokenStr, jwt.SigningMethodHS256.Alg(), v.opts, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
}
