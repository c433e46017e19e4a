package auth

import (
	"errors"
	"net/http"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMalformedToken     = errors.New("malformed token")
	ErrInvalidSignature   = errors.New("invalid token signature")
	ErrExpired            = errors.New("token expired")
	ErrCityMismatch       = errors.New("city mismatch")
	ErrUpstreamLookup     = errors.New("credential store unavailable")
	ErrUserNotFound       = errors.New("user not found")
)

type ErrLoginLocked struct {
	Until time.Time
}

func (e ErrLoginLocked) Error() string {
	return "login temporarily locked"
}

// StatusFor maps a core error onto the HTTP status the edge reports. Every
// credential and token failure collapses into 401 so callers cannot tell
// them apart.
func StatusFor(err error) (int, string) {
	var lockedErr ErrLoginLocked
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrMalformedToken),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrExpired):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrCityMismatch):
		return http.StatusForbidden, "forbidden"
	case errors.As(err, &lockedErr):
		return http.StatusTooManyRequests, "login temporarily locked"
	case errors.Is(err, ErrUpstreamLookup):
		return http.StatusServiceUnavailable, "service unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
