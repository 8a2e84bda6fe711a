package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/warden/pkg/jwtx"
)

var ErrUnsupportedAlgorithm = errors.New("unsupported bearer algorithm")

// InitVerifier builds the bearer verifier for the configured algorithm.
//
// Supported algorithms:
//   - "HS256": shared secret from AUTH_JWT_SECRET (at least 32 bytes).
//   - "EdDSA": Ed25519 public keys from the PEM file in
//     AUTH_JWT_PUBLIC_KEY_FILE, selected by kid.
//
// Warden never signs bearers; the identity provider does.
func InitVerifier(cfg Config, logger *slog.Logger) (jwtx.Verifier, error) {
	opts := jwtx.VerifyOptions{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
	}

	switch strings.ToUpper(cfg.JWTAlgorithm) {
	case "HS256":
		v, err := jwtx.NewVerifierHS256([]byte(cfg.JWTSecret), opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize HS256 verifier: %w", err)
		}
		logger.Info("bearer verifier ready", "algorithm", "HS256", "issuer", cfg.Issuer)
		return v, nil

	case "EDDSA":
		if cfg.JWTPublicKeyFile == "" {
			return nil, errors.New("AUTH_JWT_PUBLIC_KEY_FILE is required for EdDSA")
		}
		keys, err := jwtx.LoadKeySetFile(cfg.JWTPublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load bearer public keys: %w", err)
		}
		logger.Info("bearer verifier ready", "algorithm", "EdDSA", "issuer", cfg.Issuer, "key_file", cfg.JWTPublicKeyFile)
		return jwtx.NewVerifierEdDSA(keys, opts), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, cfg.JWTAlgorithm)
	}
}
