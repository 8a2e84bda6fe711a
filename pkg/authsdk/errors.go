package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string

	// RetryAfter is set from the Retry-After header on 429 responses.
	RetryAfter string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("warden: %d %s", e.StatusCode, e.Message)
}

func statusIs(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

func IsUnauthorized(err error) bool    { return statusIs(err, http.StatusUnauthorized) }
func IsForbidden(err error) bool       { return statusIs(err, http.StatusForbidden) }
func IsNotFound(err error) bool        { return statusIs(err, http.StatusNotFound) }
func IsBadRequest(err error) bool      { return statusIs(err, http.StatusBadRequest) }
func IsTooManyRequests(err error) bool { return statusIs(err, http.StatusTooManyRequests) }
func IsUnavailable(err error) bool     { return statusIs(err, http.StatusServiceUnavailable) }

// parseErrorResponse turns an error body into an *APIError. Bodies that are
// not an envelope fall back to the status text.
func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RetryAfter: resp.Header.Get("Retry-After"),
	}

	var env Envelope[json.RawMessage]
	if err := json.Unmarshal(body, &env); err == nil && env.Error != "" {
		apiErr.Message = env.Error
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
