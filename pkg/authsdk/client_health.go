package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Health statuses reported by /livez and /readyz.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// Degraded reports whether any dependency check failed. A degraded /readyz
// can still answer 200 when only the shared rate limiter is down.
func (h *HealthResponse) Degraded() bool {
	return h.Status == HealthDegraded
}

// GetLiveness reports whether the process is up.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.getHealth(ctx, "/livez")
}

// GetReadiness reports dependency health. When the server answers 503 the
// decoded report is returned together with an *APIError, so callers can see
// which check failed; IsUnavailable matches that error.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.getHealth(ctx, "/readyz")
}

func (c *SDKClient) getHealth(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var health HealthResponse
	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.Unmarshal(body, &health); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &health, nil
	case http.StatusServiceUnavailable:
		if err := json.Unmarshal(body, &health); err != nil || health.Status == "" {
			return nil, parseErrorResponse(resp, body)
		}
		return &health, &APIError{StatusCode: resp.StatusCode, Message: health.Status}
	default:
		return nil, parseErrorResponse(resp, body)
	}
}
