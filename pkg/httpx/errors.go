package httpx

import (
	"errors"
	"net/http"
)

// APIError is a failure with a fixed status and a client-safe message. The
// message is what the client sees; the cause stays in the logs.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// WriteError writes this APIError as a failure envelope.
func (e *APIError) WriteError(w http.ResponseWriter) {
	WriteJSON(w, e.Status, Envelope{Success: false, Error: e.Message})
}

// WithMessage returns a copy of e carrying a different client message.
func (e *APIError) WithMessage(msg string) *APIError {
	return &APIError{Status: e.Status, Message: msg}
}

// Is matches on status so wrapped variants from WithMessage still compare
// equal to the predefined error.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Status == e.Status
}

var (
	ErrBadRequest = &APIError{
		Status:  http.StatusBadRequest,
		Message: "invalid request",
	}
	ErrUnauthorized = &APIError{
		Status:  http.StatusUnauthorized,
		Message: "authentication required",
	}
	ErrForbidden = &APIError{
		Status:  http.StatusForbidden,
		Message: "insufficient permissions",
	}
	ErrNotFound = &APIError{
		Status:  http.StatusNotFound,
		Message: "not found",
	}
	ErrTooManyRequests = &APIError{
		Status:  http.StatusTooManyRequests,
		Message: "too many requests, please try again later",
	}
	ErrInternal = &APIError{
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
	}

	ErrInvalidCSRF   = ErrForbidden.WithMessage("invalid or missing CSRF token")
	ErrInvalidAPIKey = ErrUnauthorized.WithMessage("invalid API key")
)

// WriteError writes err as an envelope. An *APIError anywhere in the chain
// sets the status and message; anything else is a 500.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		apiErr.WriteError(w)
		return
	}
	ErrInternal.WriteError(w)
}
