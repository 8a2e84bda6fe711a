package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/rbac"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

var (
	errIncorrectCredentials = httpx.ErrBadRequest.WithMessage("incorrect credentials")
	errInvalidCode          = httpx.ErrBadRequest.WithMessage("invalid or expired code")
)

// writeServiceError maps service errors onto the status contract. The
// client sees a generic message; the cause goes to the request log.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		msg := strings.TrimPrefix(err.Error(), service.ErrInvalidArgument.Error()+": ")
		httpx.WriteError(w, httpx.ErrBadRequest.WithMessage(msg))
	case errors.Is(err, service.ErrIncorrectCredentials):
		httpx.WriteError(w, errIncorrectCredentials)
	case service.IsVerificationFailure(err):
		httpx.WriteError(w, errInvalidCode)
	case errors.Is(err, rbac.ErrUserNotFound):
		httpx.WriteError(w, httpx.ErrUnauthorized)
	case errors.Is(err, service.ErrAPIKeyNotFound), errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, httpx.ErrNotFound)
	case errors.Is(err, cryptox.ErrCorruptCredential):
		log.Error("corrupt stored credential", "err", err)
		httpx.WriteError(w, httpx.ErrInternal)
	default:
		log.Error("request failed", "err", err)
		httpx.WriteError(w, httpx.ErrInternal)
	}
}

// currentUser returns the user the access policy attached. Handlers behind
// Authenticated or AdminOnly always have one.
func currentUser(w http.ResponseWriter, r *http.Request) (rbac.User, bool) {
	u, ok := rbac.UserFrom(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.ErrUnauthorized)
	}
	return u, ok
}
