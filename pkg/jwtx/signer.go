package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Signer is our interface for anything that can sign JWTs. The service
// itself only verifies; signers back the dev token tool and tests.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
}

// NewSignerEdDSA creates an EdDSA signer from PEM bytes.
// Ed25519 keys must be in PKCS8 format.
func NewSignerEdDSA(kid string, pemKey []byte) (*EdDSASigner, error) {
	return newEdDSASigner(kid, pemKey)
}

// HS256Signer signs with a shared HMAC-SHA256 secret.
type HS256Signer struct {
	kid    string
	secret []byte
}

// NewSignerHS256 creates an HS256 signer. The secret must satisfy
// MinHS256SecretLength so anything it signs is verifiable.
func NewSignerHS256(kid string, secret []byte) (*HS256Signer, error) {
	if len(secret) < MinHS256SecretLength {
		return nil, errors.New("jwtx: HS256 secret must be at least 32 bytes")
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &HS256Signer{kid: kid, secret: s}, nil
}

func (s *HS256Signer) Alg() string { return jwt.SigningMethodHS256.Alg() }
func (s *HS256Signer) KID() string { return s.kid }

// Sign returns the compact serialization of claims.
func (s *HS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.secret)
}
