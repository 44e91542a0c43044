package middleware

import "errors"

var (
	// ErrMissingToken is passed to the guard's ErrorWriter when the request
	// carries no bearer token.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInsufficientScope is passed to RequireScope's ErrorWriter when the
	// claims lack the required role.
	ErrInsufficientScope = errors.New("insufficient scope")
)
