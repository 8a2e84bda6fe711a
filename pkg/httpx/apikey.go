package httpx

import (
	"context"
	"net/http"
	"strings"
)

// APIKeyHeader carries integration keys.
const APIKeyHeader = "X-API-Key"

// APIKeyLookup resolves a raw presented key. ok is false when the key is
// unknown, revoked or expired; err is reserved for backend failures.
type APIKeyLookup interface {
	LookupAPIKey(ctx context.Context, raw string) (key APIKey, ok bool, err error)
}

// APIKeyLookupFunc adapts a function to APIKeyLookup.
type APIKeyLookupFunc func(ctx context.Context, raw string) (APIKey, bool, error)

func (f APIKeyLookupFunc) LookupAPIKey(ctx context.Context, raw string) (APIKey, bool, error) {
	return f(ctx, raw)
}

func presentedAPIKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(APIKeyHeader))
}
