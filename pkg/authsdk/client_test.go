package authsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, env Envelope[any]) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func TestCSRFReplay(t *testing.T) {
	t.Parallel()

	var gotHeader, gotCookie string
	var gotReset ResetPasswordRequest

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/csrf", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "warden_csrf", Value: "tok-1", Path: "/"})
		writeEnvelope(w, http.StatusOK, Envelope[any]{Success: true, Data: CSRFResponse{Token: "tok-1", Header: CSRFHeader}})
	})
	mux.HandleFunc("POST /api/v1/password/reset", func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(CSRFHeader)
		if c, err := r.Cookie("warden_csrf"); err == nil {
			gotCookie = c.Value
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReset)
		writeEnvelope(w, http.StatusOK, Envelope[any]{Success: true, Message: "password updated"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewSDKClient(srv.URL + "/")
	ctx := context.Background()

	require.NoError(t, c.FetchCSRF(ctx))

	req := ResetPasswordRequest{Email: "shopper@example.com", Code: "482913", EncryptedCode: "AQ", NewPassword: "new12345"}
	require.NoError(t, c.ResetPassword(ctx, req))

	require.Equal(t, "tok-1", gotHeader)
	require.Equal(t, "tok-1", gotCookie)
	require.Equal(t, req, gotReset)
}

func TestErrorResponses(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/verification/verify", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusBadRequest, Envelope[any]{Error: "invalid or expired code"})
	})
	mux.HandleFunc("POST /api/v1/password/forgot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "42")
		writeEnvelope(w, http.StatusTooManyRequests, Envelope[any]{Error: "too many requests"})
	})
	mux.HandleFunc("GET /api/v1/integrations/scope", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusUnauthorized)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewSDKClient(srv.URL)
	ctx := context.Background()

	t.Run("envelope message", func(t *testing.T) {
		err := c.VerifyCode(ctx, "000000", "AQ")
		require.True(t, IsBadRequest(err))

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, "invalid or expired code", apiErr.Message)
	})

	t.Run("retry after", func(t *testing.T) {
		_, err := c.ForgotPassword(ctx, "shopper@example.com")
		require.True(t, IsTooManyRequests(err))

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, "42", apiErr.RetryAfter)
	})

	t.Run("non envelope body", func(t *testing.T) {
		_, err := c.IntegrationScope(ctx, "wk_nope")
		require.True(t, IsUnauthorized(err))
		require.False(t, IsForbidden(err))

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusText(http.StatusUnauthorized), apiErr.Message)
	})

	t.Run("unknown route", func(t *testing.T) {
		_, err := c.NewSession("bearer").Me(ctx)
		require.True(t, IsNotFound(err))
	})
}

func TestGetReadiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		status       int
		body         string
		wantDegraded bool
		wantErr      func(error) bool
	}{
		{"ready", http.StatusOK, `{"status":"ok","checks":{"database":"ok","verifier":"ok"}}`, false, nil},
		{"limiter down", http.StatusOK, `{"status":"degraded","checks":{"database":"ok","verifier":"ok","limiter":"error: dial"}}`, true, nil},
		{"database down", http.StatusServiceUnavailable, `{"status":"degraded","checks":{"database":"error: closed","verifier":"ok"}}`, true, IsUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/readyz", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			health, err := NewSDKClient(srv.URL).GetReadiness(context.Background())
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.True(t, tt.wantErr(err))
			}
			require.NotNil(t, health)
			require.Equal(t, tt.wantDegraded, health.Degraded())
			require.NotNil(t, health.Checks)
		})
	}

	t.Run("unavailable without a report", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "proxy says no", http.StatusServiceUnavailable)
		}))
		t.Cleanup(srv.Close)

		health, err := NewSDKClient(srv.URL).GetReadiness(context.Background())
		require.Nil(t, health)
		require.True(t, IsUnavailable(err))
	})
}
