package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/idx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// APIKeyPrefix marks raw keys so they are recognisable in logs and secret
// scanners.
const APIKeyPrefix = "wk_"

type APIKeyService struct {
	Store store.Store
	Now   func() time.Time
}

func (s *APIKeyService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// MintRequest describes a new key. A zero TTL never expires.
type MintRequest struct {
	Name      string
	Scopes    []string
	TTL       time.Duration
	CreatedBy string
}

// Mint creates a key and returns the raw value. It is not recoverable later.
func (s *APIKeyService) Mint(ctx context.Context, req MintRequest) (domain.APIKey, string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.APIKey{}, "", fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if req.TTL < 0 {
		return domain.APIKey{}, "", fmt.Errorf("%w: ttl must not be negative", ErrInvalidArgument)
	}
	for _, sc := range req.Scopes {
		if sc == "" || strings.ContainsAny(sc, " \t\n") {
			return domain.APIKey{}, "", fmt.Errorf("%w: invalid scope %q", ErrInvalidArgument, sc)
		}
	}

	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	raw := APIKeyPrefix + secret

	now := s.now().UTC()
	k := domain.APIKey{
		ID:        idx.New().String(),
		Name:      name,
		KeyHash:   cryptox.FingerprintToken(raw),
		Scopes:    req.Scopes,
		CreatedBy: req.CreatedBy,
		CreatedAt: now,
	}
	if req.TTL > 0 {
		exp := now.Add(req.TTL)
		k.ExpiresAt = &exp
	}

	if err := s.Store.APIKeys().CreateAPIKey(ctx, k); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("store api key: %w", err)
	}

	slogx.FromContext(ctx).Info("api key minted",
		slog.String("key_id", k.ID),
		slog.String("name", k.Name),
		slog.String("created_by", req.CreatedBy),
	)
	return k, raw, nil
}

func (s *APIKeyService) List(ctx context.Context) ([]domain.APIKey, error) {
	return s.Store.APIKeys().ListAPIKeys(ctx)
}

func (s *APIKeyService) Revoke(ctx context.Context, id string) error {
	err := s.Store.APIKeys().RevokeAPIKey(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrAPIKeyNotFound
	}
	if err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("api key revoked", slog.String("key_id", id))
	return nil
}

// LookupAPIKey implements httpx.APIKeyLookup. Unknown, revoked and expired
// keys all report ok=false.
func (s *APIKeyService) LookupAPIKey(ctx context.Context, raw string) (httpx.APIKey, bool, error) {
	if !strings.HasPrefix(raw, APIKeyPrefix) {
		return httpx.APIKey{}, false, nil
	}

	k, err := s.Store.APIKeys().GetAPIKeyByHash(ctx, cryptox.FingerprintToken(raw))
	if errors.Is(err, store.ErrNotFound) {
		return httpx.APIKey{}, false, nil
	}
	if err != nil {
		return httpx.APIKey{}, false, fmt.Errorf("load api key: %w", err)
	}

	now := s.now()
	if !k.Active(now) {
		slogx.FromContext(ctx).Warn("inactive api key presented",
			slog.String("key_id", k.ID),
			slog.Bool("revoked", k.Revoked),
		)
		return httpx.APIKey{}, false, nil
	}

	if err := s.Store.APIKeys().TouchAPIKey(ctx, k.ID, now.UTC()); err != nil {
		slogx.FromContext(ctx).Warn("failed to record api key use", slog.String("key_id", k.ID), slog.Any("error", err))
	}

	return httpx.APIKey{ID: k.ID, Name: k.Name, Scopes: k.Scopes, ExpiresAt: k.ExpiresAt}, true, nil
}
