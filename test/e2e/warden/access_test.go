package warden_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestAccessTiers checks each tier against a running container.
func TestAccessTiers(t *testing.T) {
	baseURL := setupWardenContainer(t, nil)
	client := authsdk.NewSDKClient(baseURL)
	ctx := t.Context()

	t.Run("authenticated tier needs a bearer", func(t *testing.T) {
		_, err := client.NewSession("").Me(ctx)
		require.True(t, authsdk.IsUnauthorized(err), "got %v", err)
	})

	t.Run("bearer for an unknown user", func(t *testing.T) {
		_, err := client.NewSession(signBearer(t, "01J0000000000000000000000", "ghost@example.com", "user")).Me(ctx)
		require.True(t, authsdk.IsUnauthorized(err), "got %v", err)
	})

	t.Run("admin claim without a stored user", func(t *testing.T) {
		_, err := client.NewSession(signBearer(t, "01J0000000000000000000000", "ghost@example.com", "admin")).ListAPIKeys(ctx)
		require.True(t, authsdk.IsUnauthorized(err), "got %v", err)
	})

	t.Run("public verify needs csrf", func(t *testing.T) {
		err := client.VerifyCode(ctx, "000000", "garbage")
		require.True(t, authsdk.IsForbidden(err), "got %v", err)

		require.NoError(t, client.FetchCSRF(ctx))
		err = client.VerifyCode(ctx, "000000", "garbage")
		require.True(t, authsdk.IsBadRequest(err), "got %v", err)
	})

	t.Run("forgot password never enumerates", func(t *testing.T) {
		known, err := client.ForgotPassword(ctx, adminEmail)
		require.NoError(t, err)
		unknown, err := client.ForgotPassword(ctx, "nobody@example.com")
		require.NoError(t, err)
		require.NotEmpty(t, known)
		require.NotEmpty(t, unknown)
	})

	t.Run("integration scope needs a key", func(t *testing.T) {
		_, err := client.IntegrationScope(ctx, "wk_unknown")
		require.True(t, authsdk.IsUnauthorized(err), "got %v", err)
	})
}

// TestRouteGate checks page redirects against a running container.
func TestRouteGate(t *testing.T) {
	baseURL := setupWardenContainer(t, nil)
	noFollow := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	get := func(t *testing.T, path, bearer string) *http.Response {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, baseURL+path, nil)
		require.NoError(t, err)
		if bearer != "" {
			req.AddCookie(&http.Cookie{Name: "warden_session", Value: bearer})
		}
		resp, err := noFollow.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp := get(t, "/admin/x", "")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/login?callbackUrl=%2Fadmin%2Fx", resp.Header.Get("Location"))

	resp = get(t, "/admin/x", signBearer(t, "u-1", "shopper@example.com", "user"))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	resp = get(t, "/admin/x", signBearer(t, "u-2", adminEmail, "admin"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
