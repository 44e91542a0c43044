package jwt

import "errors"

var (
	// ErrMalformed is returned when a token is not a structurally valid compact JWS.
	ErrMalformed = errors.New("malformed token")
	// ErrInvalidSignature covers tampered signatures, algorithm substitution and unknown key ids.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrInvalidClaims is returned when a verified token lacks a required claim or
	// carries values that do not match this deployment.
	ErrInvalidClaims = errors.New("invalid token claims")
	// ErrNoSigningKey is returned when the current key cannot sign.
	ErrNoSigningKey = errors.New("signing key unavailable")
	// ErrInvalidKey is returned for unusable key material.
	ErrInvalidKey = errors.New("invalid key")
	// ErrMethodMismatch is returned when keys of different algorithms are combined.
	ErrMethodMismatch = errors.New("signing method mismatch")
)
