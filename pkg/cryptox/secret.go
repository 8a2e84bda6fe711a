package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/crypto/hkdf"
)

// ErrInvalidToken is returned for any envelope that cannot be decoded,
// authenticated or parsed. The cause is deliberately not exposed.
var ErrInvalidToken = errors.New("cryptox: invalid token")

// Envelope layout (all offsets in bytes):
//
//	[0]      version
//	[1:17]   salt (HKDF salt for the per-token key)
//	[17:29]  iv (GCM nonce)
//	[29:]    ciphertext || 16 byte GCM tag
//
// The header (version, salt, iv) is authenticated as additional data, so a
// change to any byte of the envelope fails to open.
const (
	envelopeVersion = 1
	envelopeSaltLen = 16
	envelopeIVLen   = 12
	envelopeHeader  = 1 + envelopeSaltLen + envelopeIVLen
	envelopeMinLen  = envelopeHeader + 16

	secretKeyInfo = "warden/secret-codec/v1"
)

var envelopeEncoding = base64.RawURLEncoding.Strict()

// SecretCodec seals small JSON payloads (verification codes, reset tokens)
// into an opaque tamper-evident string using AES-256-GCM.
//
// A SecretCodec is safe for concurrent use.
type SecretCodec struct {
	secret []byte
}

// NewSecretCodec returns a codec keyed by the process-wide secret.
func NewSecretCodec(secret []byte) (*SecretCodec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty secret", ErrInvalidArgument)
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &SecretCodec{secret: s}, nil
}

// Encode serializes payload to JSON and seals it into an envelope string.
func (c *SecretCodec) Encode(payload any) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	header := make([]byte, envelopeHeader)
	header[0] = envelopeVersion
	if _, err := io.ReadFull(rand.Reader, header[1:]); err != nil {
		return "", fmt.Errorf("failed to generate salt and iv: %w", err)
	}
	salt := header[1 : 1+envelopeSaltLen]
	iv := header[1+envelopeSaltLen:]

	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, iv, plaintext, header)

	envelope := make([]byte, 0, len(header)+len(sealed))
	envelope = append(envelope, header...)
	envelope = append(envelope, sealed...)
	return envelopeEncoding.EncodeToString(envelope), nil
}

// Decode opens token and unmarshals the payload into out. Every failure,
// whatever the cause, is reported as ErrInvalidToken.
func (c *SecretCodec) Decode(token string, out any) error {
	raw, err := envelopeEncoding.DecodeString(token)
	if err != nil {
		return ErrInvalidToken
	}
	if len(raw) < envelopeMinLen || raw[0] != envelopeVersion {
		return ErrInvalidToken
	}

	header := raw[:envelopeHeader]
	salt := header[1 : 1+envelopeSaltLen]
	iv := header[1+envelopeSaltLen:]

	gcm, err := c.aead(salt)
	if err != nil {
		return ErrInvalidToken
	}

	plaintext, err := gcm.Open(nil, iv, raw[envelopeHeader:], header)
	if err != nil || len(plaintext) == 0 {
		return ErrInvalidToken
	}

	if err := json.Unmarshal(plaintext, out); err != nil {
		return ErrInvalidToken
	}
	return nil
}

// aead derives the per-token AES-256 key from the process secret and salt.
func (c *SecretCodec) aead(salt []byte) (cipher.AEAD, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, c.secret, salt, []byte(secretKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// LoadSecretKey loads the codec secret from, in order:
//  1. the file at path (if path is set)
//  2. the WARDEN_SECRET_KEY environment variable
//  3. a random ephemeral key (development only: tokens die with the process)
//
// The material is stretched to 32 bytes with SHA-256.
func LoadSecretKey(path string, logger *slog.Logger) ([]byte, error) {
	var keyMaterial []byte

	switch {
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read secret key file: %w", err)
		}
		keyMaterial = data
	case os.Getenv("WARDEN_SECRET_KEY") != "":
		keyMaterial = []byte(os.Getenv("WARDEN_SECRET_KEY"))
	default:
		keyMaterial = make([]byte, 32)
		if _, err := rand.Read(keyMaterial); err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral secret key: %w", err)
		}
		if logger != nil {
			logger.Warn("using ephemeral secret key, issued codes will not survive a restart")
		}
	}

	sum := sha256.Sum256(keyMaterial)
	return sum[:], nil
}
