package authcore

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown identifier or a wrong
	// secret. Both cases are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned when the principal is locked or revoked.
	ErrAccountLocked = errors.New("account locked")
	// ErrLoginRateLimited is returned when the failure budget for the
	// identifier or client IP is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is returned when a principal refreshes too often.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrTokenInvalid covers malformed, forged, wrong-kind and future-dated tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned once now reaches exp plus the clock skew allowance.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned for tokens revoked before expiry.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrRefreshAlreadyUsed is returned when a refresh token has already been consumed.
	ErrRefreshAlreadyUsed = errors.New("refresh token already used")
	// ErrUnavailable is returned when the credential store or rate limiter
	// fails or times out. It is safe to retry idempotent calls.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrDuplicateIdentifier is returned by Register when the identifier is taken.
	ErrDuplicateIdentifier = errors.New("identifier already registered")
	// ErrPrincipalNotFound is returned by Principal for unknown ids.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrInvalidRole is returned by Register for roles outside the configured set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidRegistration is returned by Register for malformed identifiers
	// or secrets that fail the hashing policy.
	ErrInvalidRegistration = errors.New("invalid registration request")
	// ErrSigningKeyUnavailable is returned when the current key cannot sign.
	ErrSigningKeyUnavailable = errors.New("signing key unavailable")
	// ErrEngineNotReady is returned by methods on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
