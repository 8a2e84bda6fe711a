package httpx

import (
	"context"
	"time"
)

// APIKey describes a presented integration key after a successful lookup.
// The raw key never travels past the lookup.
type APIKey struct {
	ID        string
	Name      string
	Scopes    []string
	ExpiresAt *time.Time
}

type apiKeyCtxKey struct{}

// ContextWithAPIKey attaches a validated API key to ctx.
func ContextWithAPIKey(ctx context.Context, k APIKey) context.Context {
	return context.WithValue(ctx, apiKeyCtxKey{}, k)
}

// APIKeyFrom returns the API key attached to ctx, if any.
func APIKeyFrom(ctx context.Context) (APIKey, bool) {
	k, ok := ctx.Value(apiKeyCtxKey{}).(APIKey)
	return k, ok
}

func scopesFromCtx(ctx context.Context) []string {
	if k, ok := APIKeyFrom(ctx); ok {
		return k.Scopes
	}
	return nil
}
