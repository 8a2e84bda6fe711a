package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe with checks for the database, the bearer verifier and, when configured, the shared rate limiter
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	verifier jwtx.Verifier,
	limiterPing func(context.Context) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{
			Database: "ok",
			Verifier: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if verifier == nil {
			checks.Verifier = "error: no verifier configured"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		// The limiter fails open, so an outage degrades but does not fail readiness.
		if limiterPing != nil {
			checks.Limiter = "ok"
			if err := limiterPing(r.Context()); err != nil {
				checks.Limiter = "error: " + err.Error()
				overallStatus = "degraded"
			}
		}

		response := authsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
