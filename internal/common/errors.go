// Package common defines shared constants and sentinel errors used across
// the storefront identity service and its clients. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Input errors. Wrap ErrValidation with the field detail:
	// fmt.Errorf("%w: email is required", common.ErrValidation).
	ErrValidation = errors.New("validation error")
	ErrEmailTaken = errors.New("email already registered")

	// Credential errors. ErrInvalidCredentials never says which half was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoToken            = errors.New("no token")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrUnknownToken       = errors.New("unknown token")
	ErrUserGone           = errors.New("user no longer exists")
	ErrForbidden          = errors.New("forbidden")

	// Password reset.
	ErrInvalidOrExpired = errors.New("reset token is invalid or has expired")

	// Upstream identity provider handshake failed.
	ErrOAuthFailure = errors.New("oauth failure")

	ErrRateLimited = errors.New("rate limit exceeded")

	// Startup errors.
	ErrMissingSecret = errors.New("signing secret is not configured")
)

// IsSessionError reports whether err is one of the kinds that the caller
// sees as a uniform "session invalid" outcome.
func IsSessionError(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrUnknownToken) ||
		errors.Is(err, ErrUserGone)
}
